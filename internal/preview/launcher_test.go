package preview

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/agentbench/agentbench/internal/common/errors"
	"github.com/agentbench/agentbench/internal/workspace"
)

func TestResolveCommand(t *testing.T) {
	t.Run("fixed port substitutes placeholder", func(t *testing.T) {
		command, port, err := resolveCommand(workspace.DevServerConfig{
			Command: "npm run dev -- --port $PORT",
			Port:    5173,
		})
		require.NoError(t, err)
		assert.Equal(t, 5173, port)
		assert.Equal(t, "npm run dev -- --port 5173", command)
	})

	t.Run("placeholder gets an allocated port", func(t *testing.T) {
		command, port, err := resolveCommand(workspace.DevServerConfig{
			Command: "vite --port ${PORT}",
		})
		require.NoError(t, err)
		assert.Greater(t, port, 0)
		assert.NotContains(t, command, "PORT")
	})

	t.Run("no placeholder still yields a port", func(t *testing.T) {
		command, port, err := resolveCommand(workspace.DevServerConfig{
			Command: "npm run dev",
		})
		require.NoError(t, err)
		assert.Greater(t, port, 0)
		assert.Equal(t, "npm run dev", command)
	})
}

func newTestLauncher(t *testing.T, projectYAML string) (*Launcher, *Manager, string) {
	t.Helper()
	log := newTestLogger(t)

	store, err := workspace.NewSQLiteStore(filepath.Join(t.TempDir(), "workspaces.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	root := t.TempDir()
	if projectYAML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(root, workspace.ProjectConfigFile), []byte(projectYAML), 0o644))
	}
	ws := &workspace.Workspace{Name: "test", Path: root}
	require.NoError(t, store.Create(context.Background(), ws))

	mgr := NewManager(nil, log)
	launcher := NewLauncher(mgr, workspace.NewResolver(store), "127.0.0.1", log)
	t.Cleanup(launcher.StopAll)
	return launcher, mgr, ws.ID
}

func TestLauncherRequiresConfiguredCommand(t *testing.T) {
	launcher, _, wsID := newTestLauncher(t, "")

	_, err := launcher.Start(context.Background(), wsID)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestLauncherRegistersWhenPortListens(t *testing.T) {
	// Stand in for the dev server's socket: the test listens on the
	// configured port while the launched command just sleeps.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()
	port := listener.Addr().(*net.TCPAddr).Port

	yaml := "devServer:\n  command: \"sleep 30\"\n  port: " + strconv.Itoa(port) + "\n"
	launcher, mgr, wsID := newTestLauncher(t, yaml)

	got, err := launcher.Start(context.Background(), wsID)
	require.NoError(t, err)
	assert.Equal(t, port, got)

	require.Eventually(t, func() bool {
		_, ok := mgr.GetPreviewTarget(wsID)
		return ok
	}, 5*time.Second, 25*time.Millisecond)

	// A second start while running is rejected.
	_, err = launcher.Start(context.Background(), wsID)
	require.Error(t, err)

	require.True(t, launcher.Stop(wsID))
	require.Eventually(t, func() bool {
		_, ok := mgr.GetPreviewTarget(wsID)
		return !ok
	}, 5*time.Second, 25*time.Millisecond)

	assert.False(t, launcher.Stop(wsID), "stop after exit returns false")
}

func TestLauncherCleansUpWhenCommandExits(t *testing.T) {
	yaml := "devServer:\n  command: \"true\"\n  port: 59999\n"
	launcher, mgr, wsID := newTestLauncher(t, yaml)

	_, err := launcher.Start(context.Background(), wsID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		launcher.mu.Lock()
		defer launcher.mu.Unlock()
		return len(launcher.servers) == 0
	}, 5*time.Second, 25*time.Millisecond)

	_, ok := mgr.GetPreviewTarget(wsID)
	assert.False(t, ok)
}
