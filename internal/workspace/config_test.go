package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProjectConfig(t *testing.T) {
	t.Run("missing file yields empty config", func(t *testing.T) {
		cfg, err := LoadProjectConfig(t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, cfg.Lint.Command)
		assert.Empty(t, cfg.DevServer.Command)
	})

	t.Run("parses lint and dev server sections", func(t *testing.T) {
		root := t.TempDir()
		data := []byte(`
lint:
  command: "npx eslint --format unix ."
devServer:
  command: "npm run dev -- --port $PORT"
  port: 0
`)
		require.NoError(t, os.WriteFile(filepath.Join(root, ProjectConfigFile), data, 0o644))

		cfg, err := LoadProjectConfig(root)
		require.NoError(t, err)
		assert.Equal(t, "npx eslint --format unix .", cfg.Lint.Command)
		assert.Equal(t, "npm run dev -- --port $PORT", cfg.DevServer.Command)
		assert.Zero(t, cfg.DevServer.Port)
	})

	t.Run("invalid yaml returns an error", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, ProjectConfigFile), []byte("lint: ["), 0o644))

		_, err := LoadProjectConfig(root)
		require.Error(t, err)
	})
}
