// Package config provides configuration management for agentbench.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for agentbench.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Preview   PreviewConfig   `mapstructure:"preview"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// AgentConfig holds the external coding-agent process configuration.
type AgentConfig struct {
	// Binary is the path to the agent executable.
	Binary string `mapstructure:"binary"`

	// Args are extra arguments passed before the per-run flags.
	Args []string `mapstructure:"args"`

	// DefaultModel is used when a run request does not name a model.
	DefaultModel string `mapstructure:"defaultModel"`

	// StructuredOutput selects the agent's NDJSON event-stream mode.
	// When false the agent's raw output is relayed as plain output events.
	StructuredOutput bool `mapstructure:"structuredOutput"`

	// StreamMode selects how terminal commands are streamed:
	// "pipe" (line-buffered stdout/stderr) or "pty" (full terminal emulation).
	StreamMode string `mapstructure:"streamMode"`
}

// WorkspaceConfig holds workspace root and retention configuration.
type WorkspaceConfig struct {
	// Root is the directory containing one subdirectory per workspace.
	Root string `mapstructure:"root"`

	// DBPath is the SQLite database tracking workspace records.
	DBPath string `mapstructure:"dbPath"`

	// RetentionAge is how long an inactive workspace is kept, in hours.
	// Zero disables the retention sweep.
	RetentionAge int `mapstructure:"retentionAge"`
}

// PreviewConfig holds dev-server preview configuration.
type PreviewConfig struct {
	// Host is the address dev servers are expected to listen on.
	Host string `mapstructure:"host"`
}

// NATSConfig holds NATS messaging configuration.
// An empty URL selects the in-memory event bus.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RetentionAgeDuration returns the workspace retention age as a time.Duration.
func (w *WorkspaceConfig) RetentionAgeDuration() time.Duration {
	return time.Duration(w.RetentionAge) * time.Hour
}

// detectDefaultLogFormat returns the appropriate log format based on environment.
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("AGENTBENCH_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Agent defaults
	v.SetDefault("agent.binary", "agent")
	v.SetDefault("agent.args", []string{})
	v.SetDefault("agent.defaultModel", "default")
	v.SetDefault("agent.structuredOutput", true)
	v.SetDefault("agent.streamMode", "pipe")

	// Workspace defaults
	v.SetDefault("workspace.root", "./workspaces")
	v.SetDefault("workspace.dbPath", "./agentbench.db")
	v.SetDefault("workspace.retentionAge", 0)

	// Preview defaults
	v.SetDefault("preview.host", "127.0.0.1")

	// NATS defaults - empty URL means use in-memory event bus
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "agentbench")
	v.SetDefault("nats.maxReconnects", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix AGENTBENCH_ with snake_case naming.
// Config file should be named config.yaml and placed in the current directory
// or /etc/agentbench/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults first
	setDefaults(v)

	// Configure environment variables
	v.SetEnvPrefix("AGENTBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit bindings for snake_case env vars (camelCase config keys).
	// AutomaticEnv does not handle camelCase to SNAKE_CASE conversion.
	_ = v.BindEnv("agent.binary", "AGENTBENCH_AGENT_BINARY")
	_ = v.BindEnv("agent.defaultModel", "AGENTBENCH_AGENT_DEFAULT_MODEL")
	_ = v.BindEnv("agent.streamMode", "AGENTBENCH_AGENT_STREAM_MODE")
	_ = v.BindEnv("workspace.root", "AGENTBENCH_WORKSPACE_ROOT")
	_ = v.BindEnv("workspace.dbPath", "AGENTBENCH_WORKSPACE_DB_PATH")

	// Configure config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/agentbench/")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if cfg.Agent.Binary == "" {
		errs = append(errs, "agent.binary is required")
	}
	if cfg.Agent.StreamMode != "pipe" && cfg.Agent.StreamMode != "pty" {
		errs = append(errs, "agent.streamMode must be one of: pipe, pty")
	}

	if cfg.Workspace.Root == "" {
		errs = append(errs, "workspace.root is required")
	}
	if cfg.Workspace.RetentionAge < 0 {
		errs = append(errs, "workspace.retentionAge must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
