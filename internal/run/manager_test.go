package run

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentbench/agentbench/internal/commandreg"
	"github.com/agentbench/agentbench/internal/common/config"
	"github.com/agentbench/agentbench/internal/common/logger"
	"github.com/agentbench/agentbench/internal/tools"
	"github.com/agentbench/agentbench/internal/workspace"
)

// runRecorder collects callback invocations behind a mutex so tests can
// poll them while the stream loop runs.
type runRecorder struct {
	mu        sync.Mutex
	outputs   []string
	toolCalls []tools.ToolCall
	results   []tools.ToolResult
	completed bool
	cancelled bool
	failedMsg string
	terminal  bool
}

func (r *runRecorder) callbacks() Callbacks {
	return Callbacks{
		OnOutput: func(runID, text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.outputs = append(r.outputs, text)
		},
		OnToolCall: func(runID string, call tools.ToolCall) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.toolCalls = append(r.toolCalls, call)
		},
		OnToolResult: func(runID string, result tools.ToolResult) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.results = append(r.results, result)
		},
		OnCompleted: func(runID string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completed = true
			r.terminal = true
		},
		OnFailed: func(runID, message string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.failedMsg = message
			r.terminal = true
		},
		OnCancelled: func(runID string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.cancelled = true
			r.terminal = true
		},
	}
}

func (r *runRecorder) isTerminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terminal
}

// newTestManager builds a manager whose "agent" is /bin/sh running the
// given script. Extra per-run flags land in the script's positional
// arguments, where they are harmless.
func newTestManager(t *testing.T, script string, structured bool) (*Manager, string) {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console"})
	require.NoError(t, err)

	store, err := workspace.NewSQLiteStore(filepath.Join(t.TempDir(), "workspaces.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ws := &workspace.Workspace{Name: "test", Path: t.TempDir()}
	require.NoError(t, store.Create(context.Background(), ws))

	resolver := workspace.NewResolver(store)
	router := tools.NewRouter(resolver, tools.NewLastEditStore(), tools.StreamModePipe, log)
	commands := commandreg.NewRegistry(log)

	cfg := config.AgentConfig{
		Binary:           "/bin/sh",
		Args:             []string{"-c", script},
		DefaultModel:     "test-model",
		StructuredOutput: structured,
	}
	return NewManager(cfg, router, resolver, commands, nil, log), ws.ID
}

func waitTerminal(t *testing.T, rec *runRecorder) {
	t.Helper()
	require.Eventually(t, rec.isTerminal, 5*time.Second, 10*time.Millisecond)
}

func TestRunCompletesAndStreamsOutput(t *testing.T) {
	script := `echo '{"type":"output","text":"hello from agent"}'`
	mgr, wsID := newTestManager(t, script, false)

	rec := &runRecorder{}
	runID, err := mgr.Start(context.Background(), StartParams{WorkspaceID: wsID, Prompt: "do it"}, rec.callbacks())
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	waitTerminal(t, rec)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.True(t, rec.completed)
	assert.Contains(t, rec.outputs, "hello from agent")
}

func TestRunDispatchesToolCallBeforeCompletion(t *testing.T) {
	// The agent asks for a directory listing, waits for the result on
	// stdin, then reports success.
	script := `echo '{"type":"tool_call","call_id":"t1","tool":"list_dir","args":{"relative_workspace_path":"."}}'
read result
echo '{"type":"result","success":true,"text":"done"}'`
	mgr, wsID := newTestManager(t, script, true)

	rec := &runRecorder{}
	_, err := mgr.Start(context.Background(), StartParams{WorkspaceID: wsID, Prompt: "list files"}, rec.callbacks())
	require.NoError(t, err)
	waitTerminal(t, rec)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.True(t, rec.completed)
	require.Len(t, rec.toolCalls, 1)
	assert.Equal(t, "list_dir", rec.toolCalls[0].Tool)
	require.Len(t, rec.results, 1)
	assert.True(t, rec.results[0].Success)
	assert.Equal(t, "t1", rec.results[0].CallID)
}

func TestRunFailsOnNonZeroExit(t *testing.T) {
	mgr, wsID := newTestManager(t, `echo boom >&2; exit 1`, false)

	rec := &runRecorder{}
	_, err := mgr.Start(context.Background(), StartParams{WorkspaceID: wsID, Prompt: "x"}, rec.callbacks())
	require.NoError(t, err)
	waitTerminal(t, rec)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.False(t, rec.completed)
	assert.Contains(t, rec.failedMsg, "boom")
}

func TestRunFailsOnAgentReportedFailure(t *testing.T) {
	script := `echo '{"type":"result","success":false,"text":"could not finish"}'`
	mgr, wsID := newTestManager(t, script, false)

	rec := &runRecorder{}
	_, err := mgr.Start(context.Background(), StartParams{WorkspaceID: wsID, Prompt: "x"}, rec.callbacks())
	require.NoError(t, err)
	waitTerminal(t, rec)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, "could not finish", rec.failedMsg)
}

func TestRunSpawnFailure(t *testing.T) {
	mgr, wsID := newTestManager(t, ``, false)
	mgr.cfg.Binary = "/no/such/agent-binary"

	rec := &runRecorder{}
	_, err := mgr.Start(context.Background(), StartParams{WorkspaceID: wsID, Prompt: "x"}, rec.callbacks())
	require.NoError(t, err)
	waitTerminal(t, rec)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Contains(t, rec.failedMsg, "failed to spawn agent process")
}

func TestRunUnknownWorkspaceFails(t *testing.T) {
	mgr, _ := newTestManager(t, `echo hi`, false)

	rec := &runRecorder{}
	_, err := mgr.Start(context.Background(), StartParams{WorkspaceID: "missing", Prompt: "x"}, rec.callbacks())
	require.NoError(t, err)
	waitTerminal(t, rec)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Contains(t, rec.failedMsg, "invalid workspace")
}

func TestSecondRunRejectedWhileActive(t *testing.T) {
	mgr, wsID := newTestManager(t, `sleep 5`, false)

	rec := &runRecorder{}
	runID, err := mgr.Start(context.Background(), StartParams{WorkspaceID: wsID, Prompt: "x"}, rec.callbacks())
	require.NoError(t, err)

	_, err = mgr.Start(context.Background(), StartParams{WorkspaceID: wsID, Prompt: "y"}, Callbacks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run already in progress")

	require.True(t, mgr.Cancel(runID))
	waitTerminal(t, rec)

	rec.mu.Lock()
	cancelled := rec.cancelled
	rec.mu.Unlock()
	assert.True(t, cancelled)

	// After the terminal state a new run is accepted again.
	rec2 := &runRecorder{}
	mgr.cfg.Args = []string{"-c", `echo ok`}
	_, err = mgr.Start(context.Background(), StartParams{WorkspaceID: wsID, Prompt: "z"}, rec2.callbacks())
	require.NoError(t, err)
	waitTerminal(t, rec2)
}

func TestCancelUnknownRun(t *testing.T) {
	mgr, _ := newTestManager(t, `echo hi`, false)
	assert.False(t, mgr.Cancel("nope"))
}
