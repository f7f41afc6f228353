package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentbench/agentbench/internal/common/logger"
	"github.com/agentbench/agentbench/internal/workspace"
)

// newTestRouter creates a router with one registered workspace and
// returns the workspace ID and its root directory.
func newTestRouter(t *testing.T) (*Router, string, string) {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console"})
	require.NoError(t, err)

	store, err := workspace.NewSQLiteStore(filepath.Join(t.TempDir(), "workspaces.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ws := &workspace.Workspace{Name: "test", Path: t.TempDir()}
	require.NoError(t, store.Create(context.Background(), ws))

	router := NewRouter(workspace.NewResolver(store), NewLastEditStore(), StreamModePipe, log)
	return router, ws.ID, ws.Path
}

func call(callID, tool string, args map[string]any) ToolCall {
	return ToolCall{CallID: callID, Tool: tool, Args: args}
}

func TestReadFile(t *testing.T) {
	router, wsID, root := newTestRouter(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("one\ntwo\nthree\nfour\n"), 0o644))

	t.Run("full read", func(t *testing.T) {
		result := router.Execute(ctx, wsID, call("c1", ToolReadFile, map[string]any{"target_file": "main.go"}), ExecuteOptions{})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, "one\ntwo\nthree\nfour\n", result.Output)
		assert.Zero(t, result.StartLine)
	})

	t.Run("partial read sets line range", func(t *testing.T) {
		result := router.Execute(ctx, wsID, call("c2", ToolReadFile, map[string]any{
			"target_file": "main.go",
			"offset":      float64(2),
			"limit":       float64(2),
		}), ExecuteOptions{})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, "two\nthree", result.Output)
		assert.Equal(t, 2, result.StartLine)
		assert.Equal(t, 3, result.EndLine)
	})

	t.Run("missing file", func(t *testing.T) {
		result := router.Execute(ctx, wsID, call("c3", ToolReadFile, map[string]any{"target_file": "nope.go"}), ExecuteOptions{})
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "does not exist")
	})
}

func TestWriteFileRecordsLastEdit(t *testing.T) {
	router, wsID, root := newTestRouter(t)
	ctx := context.Background()

	result := router.Execute(ctx, wsID, call("c1", ToolWriteFile, map[string]any{
		"target_file":  "src/app.js",
		"code_edit":    "console.log('hi')",
		"instructions": "add a greeting",
	}), ExecuteOptions{})
	require.True(t, result.Success, result.Error)

	data, err := os.ReadFile(filepath.Join(root, "src", "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log('hi')", string(data))

	edit, ok := router.lastEdits.Get(wsID)
	require.True(t, ok)
	assert.Equal(t, "src/app.js", edit.TargetFile)
	assert.Equal(t, "add a greeting", edit.Instructions)
}

func TestPathTraversalRejected(t *testing.T) {
	router, wsID, _ := newTestRouter(t)
	ctx := context.Background()

	for _, tool := range []string{ToolReadFile, ToolWriteFile, ToolDeleteFile} {
		result := router.Execute(ctx, wsID, call("c-"+tool, tool, map[string]any{
			"target_file": "../../etc/passwd",
			"code_edit":   "x",
		}), ExecuteOptions{})
		assert.False(t, result.Success, tool)
		assert.Contains(t, result.Error, "escapes the workspace root", tool)
	}
}

func TestDeleteFile(t *testing.T) {
	router, wsID, root := newTestRouter(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(root, "old.txt"), []byte("x"), 0o644))

	result := router.Execute(ctx, wsID, call("c1", ToolDeleteFile, map[string]any{"target_file": "old.txt"}), ExecuteOptions{})
	require.True(t, result.Success, result.Error)
	_, err := os.Stat(filepath.Join(root, "old.txt"))
	assert.True(t, os.IsNotExist(err))

	result = router.Execute(ctx, wsID, call("c2", ToolDeleteFile, map[string]any{"target_file": "old.txt"}), ExecuteOptions{})
	assert.False(t, result.Success)
}

func TestSearchReplace(t *testing.T) {
	router, wsID, root := newTestRouter(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.ini"), []byte("port=8080\nhost=old\n"), 0o644))

	result := router.Execute(ctx, wsID, call("c1", ToolSearchReplace, map[string]any{
		"file_path":  "config.ini",
		"old_string": "host=old",
		"new_string": "host=new",
	}), ExecuteOptions{})
	require.True(t, result.Success, result.Error)

	data, err := os.ReadFile(filepath.Join(root, "config.ini"))
	require.NoError(t, err)
	assert.Equal(t, "port=8080\nhost=new\n", string(data))

	result = router.Execute(ctx, wsID, call("c2", ToolSearchReplace, map[string]any{
		"file_path":  "config.ini",
		"old_string": "not-there",
		"new_string": "x",
	}), ExecuteOptions{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not found")
}

func TestListDir(t *testing.T) {
	router, wsID, root := newTestRouter(t)
	ctx := context.Background()
	require.NoError(t, os.Mkdir(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.md"), []byte("hello"), 0o644))

	result := router.Execute(ctx, wsID, call("c1", ToolListDir, map[string]any{"relative_workspace_path": "."}), ExecuteOptions{})
	require.True(t, result.Success, result.Error)
	assert.Contains(t, result.Output, "[dir]  src")
	assert.Contains(t, result.Output, "[file] readme.md (5 bytes)")
}

func TestFileSearch(t *testing.T) {
	router, wsID, root := newTestRouter(t)
	ctx := context.Background()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "components"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "components", "Button.tsx"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	result := router.Execute(ctx, wsID, call("c1", ToolFileSearch, map[string]any{"query": "button"}), ExecuteOptions{})
	require.True(t, result.Success, result.Error)
	assert.Contains(t, result.Output, filepath.Join("src", "components", "Button.tsx"))
	assert.NotContains(t, result.Output, "notes.txt")
}

func TestGrepSearch(t *testing.T) {
	router, wsID, root := newTestRouter(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package main\nfunc Handler() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("handler notes\n"), 0o644))

	t.Run("case insensitive by default", func(t *testing.T) {
		result := router.Execute(ctx, wsID, call("c1", ToolGrepSearch, map[string]any{"query": "handler"}), ExecuteOptions{})
		require.True(t, result.Success, result.Error)
		assert.Contains(t, result.Output, "a.go:2:")
		assert.Contains(t, result.Output, "b.txt:1:")
	})

	t.Run("include pattern filters files", func(t *testing.T) {
		result := router.Execute(ctx, wsID, call("c2", ToolGrepSearch, map[string]any{
			"query":           "handler",
			"include_pattern": "*.go",
			"case_sensitive":  false,
		}), ExecuteOptions{})
		require.True(t, result.Success, result.Error)
		assert.Contains(t, result.Output, "a.go")
		assert.NotContains(t, result.Output, "b.txt")
	})

	t.Run("include pattern with path segments matches full path", func(t *testing.T) {
		require.NoError(t, os.Mkdir(filepath.Join(root, "src"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.go"), []byte("func handler() {}\n"), 0o644))

		result := router.Execute(ctx, wsID, call("c4", ToolGrepSearch, map[string]any{
			"query":           "handler",
			"include_pattern": "src/*.go",
		}), ExecuteOptions{})
		require.True(t, result.Success, result.Error)
		assert.Contains(t, result.Output, filepath.Join("src", "main.go"))
		assert.NotContains(t, result.Output, "a.go:")
	})

	t.Run("no matches", func(t *testing.T) {
		result := router.Execute(ctx, wsID, call("c3", ToolGrepSearch, map[string]any{"query": "zzzz"}), ExecuteOptions{})
		require.True(t, result.Success)
		assert.Equal(t, "no matches found", result.Output)
	})
}

func TestCodebaseSearchRanksByTermHits(t *testing.T) {
	router, wsID, root := newTestRouter(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(root, "server.go"),
		[]byte("func startServer(port int) error {\n\treturn listenAndServe(port)\n}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "util.go"),
		[]byte("func clamp(v int) int { return v }\n"), 0o644))

	result := router.Execute(ctx, wsID, call("c1", ToolCodebaseSearch, map[string]any{
		"query": "start server port",
	}), ExecuteOptions{})
	require.True(t, result.Success, result.Error)
	assert.Contains(t, result.Output, "server.go:1:")
	assert.NotContains(t, result.Output, "util.go")
}

func TestUnknownToolReturnsStructuredFailure(t *testing.T) {
	router, wsID, _ := newTestRouter(t)

	result := router.Execute(context.Background(), wsID, call("c1", "frobnicate", nil), ExecuteOptions{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unrecognized tool 'frobnicate'")
}

func TestUnknownWorkspace(t *testing.T) {
	router, _, _ := newTestRouter(t)

	result := router.Execute(context.Background(), "no-such-ws", call("c1", ToolListDir, nil), ExecuteOptions{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not found")
}

func TestExecuteAllPartitionsEveryCall(t *testing.T) {
	router, wsID, root := newTestRouter(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	calls := []ToolCall{
		call("ok-1", ToolReadFile, map[string]any{"target_file": "a.txt"}),
		call("bad-1", "bogus_tool", nil),
		call("bad-2", ToolReadFile, map[string]any{"target_file": "missing.txt"}),
		call("ok-2", ToolListDir, map[string]any{"relative_workspace_path": "."}),
	}
	batch := router.ExecuteAll(context.Background(), wsID, calls)

	assert.Len(t, batch.Results, 2)
	assert.Len(t, batch.Errors, 2)

	seen := map[string]int{}
	for _, r := range batch.Results {
		seen[r.CallID]++
	}
	for _, e := range batch.Errors {
		seen[e.CallID]++
	}
	for _, c := range calls {
		assert.Equal(t, 1, seen[c.CallID], c.CallID)
	}
}

func TestReapply(t *testing.T) {
	router, wsID, root := newTestRouter(t)
	ctx := context.Background()

	t.Run("fails without a prior edit", func(t *testing.T) {
		result := router.Execute(ctx, wsID, call("c1", ToolReapply, nil), ExecuteOptions{})
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "no prior edit")
	})

	t.Run("re-issues the most recent edit", func(t *testing.T) {
		first := router.Execute(ctx, wsID, call("c2", ToolWriteFile, map[string]any{
			"target_file": "first.txt", "code_edit": "first",
		}), ExecuteOptions{})
		require.True(t, first.Success)
		second := router.Execute(ctx, wsID, call("c3", ToolWriteFile, map[string]any{
			"target_file": "second.txt", "code_edit": "second",
		}), ExecuteOptions{})
		require.True(t, second.Success)

		require.NoError(t, os.Remove(filepath.Join(root, "second.txt")))
		result := router.Execute(ctx, wsID, call("c4", ToolReapply, nil), ExecuteOptions{})
		require.True(t, result.Success, result.Error)

		data, err := os.ReadFile(filepath.Join(root, "second.txt"))
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))

		// Reapply does not consume the record.
		again := router.Execute(ctx, wsID, call("c5", ToolReapply, nil), ExecuteOptions{})
		assert.True(t, again.Success)
	})
}

func TestReadLints(t *testing.T) {
	router, wsID, root := newTestRouter(t)
	ctx := context.Background()

	t.Run("no linter configured", func(t *testing.T) {
		result := router.Execute(ctx, wsID, call("c1", ToolReadLints, nil), ExecuteOptions{})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, 0, result.Payload["errorCount"])
	})

	t.Run("counts diagnostics lines", func(t *testing.T) {
		cfg := "lint:\n  command: \"printf 'a.go:1: bad\\nb.go:2: worse\\n'\"\n"
		require.NoError(t, os.WriteFile(filepath.Join(root, workspace.ProjectConfigFile), []byte(cfg), 0o644))

		result := router.Execute(ctx, wsID, call("c2", ToolReadLints, nil), ExecuteOptions{})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, 2, result.Payload["errorCount"])
		assert.Contains(t, result.Output, "2 lint findings")
		assert.Contains(t, result.Output, "a.go:1: bad")
	})
}

func TestNormalizeTool(t *testing.T) {
	assert.Equal(t, ToolWriteFile, NormalizeTool("edit_file"))
	assert.Equal(t, ToolRunTerminalCmd, NormalizeTool("run_terminal_command"))
	assert.Equal(t, "whatever", NormalizeTool("whatever"))
}
