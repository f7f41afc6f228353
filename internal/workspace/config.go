package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfigFile is the per-workspace configuration file name.
const ProjectConfigFile = ".agentbench.yaml"

// ProjectConfig is optional per-workspace configuration read from
// .agentbench.yaml at the workspace root.
type ProjectConfig struct {
	Lint      LintConfig      `yaml:"lint"`
	DevServer DevServerConfig `yaml:"devServer"`
}

// LintConfig configures the linter invoked by the read_lints tool.
type LintConfig struct {
	// Command is the shell command that prints lint diagnostics, one per
	// line. Empty means no linter is configured.
	Command string `yaml:"command"`
}

// DevServerConfig configures the preview dev server for a workspace.
type DevServerConfig struct {
	// Command is the shell command that starts the dev server. It may
	// contain a $PORT placeholder which is substituted with the
	// allocated port.
	Command string `yaml:"command"`
	// Port pins the dev server to a fixed port instead of allocating one.
	Port int `yaml:"port"`
}

// LoadProjectConfig reads .agentbench.yaml from the workspace root. A
// missing file yields an empty config and no error.
func LoadProjectConfig(root string) (*ProjectConfig, error) {
	data, err := os.ReadFile(filepath.Join(root, ProjectConfigFile))
	if os.IsNotExist(err) {
		return &ProjectConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ProjectConfigFile, err)
	}
	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ProjectConfigFile, err)
	}
	return &cfg, nil
}
