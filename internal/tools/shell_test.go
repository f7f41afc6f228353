package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drainRecorder consumes a command stream on its own goroutine and
// exposes what it saw once the stream closes.
type drainRecorder struct {
	onSpawn   func(cmd *Command)
	streamed  []byte
	exitCalls int
	exitCode  *int
	done      chan struct{}
}

func (d *drainRecorder) options() ExecuteOptions {
	d.done = make(chan struct{})
	return ExecuteOptions{
		OnCommand: func(cmd *Command) {
			if d.onSpawn != nil {
				d.onSpawn(cmd)
			}
			go func() {
				defer close(d.done)
				for event := range cmd.Stream {
					if event.Exit {
						d.exitCalls++
						d.exitCode = event.ExitCode
						continue
					}
					d.streamed = append(d.streamed, event.Chunk...)
				}
			}()
		},
	}
}

func (d *drainRecorder) wait() {
	if d.done != nil {
		<-d.done
	}
}

func TestRunTerminalCmdStreamsOutput(t *testing.T) {
	router, wsID, _ := newTestRouter(t)

	var spawned bool
	rec := &drainRecorder{}
	rec.onSpawn = func(cmd *Command) {
		spawned = true
		assert.Empty(t, rec.streamed, "output must not arrive before the command hand-off")
	}

	result := router.Execute(context.Background(), wsID, call("c1", ToolRunTerminalCmd, map[string]any{
		"command": "printf 'line one\\nline two\\n'",
	}), rec.options())
	rec.wait()

	require.True(t, result.Success, result.Error)
	assert.True(t, spawned)
	assert.Equal(t, "line one\nline two\n", string(rec.streamed))
	assert.Equal(t, "line one\nline two\n", result.Output)
	assert.Equal(t, 1, rec.exitCalls)
	require.NotNil(t, rec.exitCode)
	assert.Equal(t, 0, *rec.exitCode)
	require.NotNil(t, result.ExitCode)
	assert.Equal(t, 0, *result.ExitCode)
}

func TestRunTerminalCmdNonZeroExit(t *testing.T) {
	router, wsID, _ := newTestRouter(t)

	rec := &drainRecorder{}
	result := router.Execute(context.Background(), wsID, call("c1", ToolRunTerminalCmd, map[string]any{
		"command": "exit 3",
	}), rec.options())
	rec.wait()

	assert.False(t, result.Success)
	require.NotNil(t, rec.exitCode)
	assert.Equal(t, 3, *rec.exitCode)
}

func TestRunTerminalCmdKill(t *testing.T) {
	router, wsID, _ := newTestRouter(t)

	rec := &drainRecorder{}
	rec.onSpawn = func(cmd *Command) {
		// Kill immediately, before the command can finish.
		_ = cmd.Kill()
	}
	result := router.Execute(context.Background(), wsID, call("c1", ToolRunTerminalCmd, map[string]any{
		"command": "sleep 30",
	}), rec.options())
	rec.wait()

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "killed")
	assert.Equal(t, 1, rec.exitCalls)
	assert.Nil(t, rec.exitCode, "killed command reports no exit code")
	assert.Nil(t, result.ExitCode)
}

func TestRunTerminalCmdContextCancel(t *testing.T) {
	router, wsID, _ := newTestRouter(t)

	ctx, cancel := context.WithCancel(context.Background())
	rec := &drainRecorder{}
	rec.onSpawn = func(cmd *Command) { cancel() }
	result := router.Execute(ctx, wsID, call("c1", ToolRunTerminalCmd, map[string]any{
		"command": "sleep 30",
	}), rec.options())
	rec.wait()

	assert.False(t, result.Success)
	assert.Nil(t, result.ExitCode)
}

func TestRunTerminalCmdMissingCommand(t *testing.T) {
	router, wsID, _ := newTestRouter(t)

	result := router.Execute(context.Background(), wsID, call("c1", ToolRunTerminalCmd, nil), ExecuteOptions{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "requires a command")
}

func TestRunTerminalCmdRunsInWorkspaceDir(t *testing.T) {
	router, wsID, root := newTestRouter(t)

	result := router.Execute(context.Background(), wsID, call("c1", ToolRunTerminalCmd, map[string]any{
		"command": "pwd",
	}), ExecuteOptions{})
	require.True(t, result.Success, result.Error)
	assert.Contains(t, result.Output, filepath.Base(root))
}
