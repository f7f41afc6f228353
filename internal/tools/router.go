package tools

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agentbench/agentbench/internal/common/logger"
	"github.com/agentbench/agentbench/internal/workspace"
)

// StreamMode selects how run_terminal_cmd attaches to the command.
type StreamMode string

const (
	// StreamModePipe delivers line-buffered combined stdout/stderr.
	StreamModePipe StreamMode = "pipe"
	// StreamModePty runs the command under a pseudo-terminal for full
	// terminal emulation.
	StreamModePty StreamMode = "pty"
)

// Router dispatches tool calls to their implementations. It holds no
// per-dispatch state, a single Router is shared by all connections.
type Router struct {
	resolver   *workspace.Resolver
	lastEdits  *LastEditStore
	streamMode StreamMode
	logger     *logger.Logger
}

// NewRouter creates a tool router.
func NewRouter(resolver *workspace.Resolver, lastEdits *LastEditStore, streamMode StreamMode, log *logger.Logger) *Router {
	if streamMode == "" {
		streamMode = StreamModePipe
	}
	return &Router{
		resolver:   resolver,
		lastEdits:  lastEdits,
		streamMode: streamMode,
		logger:     log.WithFields(zap.String("component", "tools")),
	}
}

// Execute runs a single tool call against the workspace and returns its
// result. Tool failures are captured in the result, never propagated as
// errors, so a caller can keep streaming after a failed call.
func (r *Router) Execute(ctx context.Context, workspaceID string, call ToolCall, opts ExecuteOptions) ToolResult {
	tool := NormalizeTool(call.Tool)
	r.logger.Debug("executing tool",
		zap.String("workspace_id", workspaceID),
		zap.String("call_id", call.CallID),
		zap.String("tool", tool))

	switch tool {
	case ToolReadFile:
		return r.readFile(ctx, workspaceID, call)
	case ToolWriteFile:
		return r.writeFile(ctx, workspaceID, call)
	case ToolDeleteFile:
		return r.deleteFile(ctx, workspaceID, call)
	case ToolSearchReplace:
		return r.searchReplace(ctx, workspaceID, call)
	case ToolListDir:
		return r.listDir(ctx, workspaceID, call)
	case ToolFileSearch:
		return r.fileSearch(ctx, workspaceID, call)
	case ToolGrepSearch:
		return r.grepSearch(ctx, workspaceID, call)
	case ToolCodebaseSearch:
		return r.codebaseSearch(ctx, workspaceID, call)
	case ToolRunTerminalCmd:
		return r.runTerminalCmd(ctx, workspaceID, call, opts)
	case ToolReadLints:
		return r.readLints(ctx, workspaceID, call)
	case ToolReapply:
		return r.reapply(ctx, workspaceID, call)
	case ToolCreateDiagram:
		return r.createDiagram(call)
	default:
		return failureResult(call, "unrecognized tool '%s'", call.Tool)
	}
}

// ExecuteAll runs the calls concurrently and independently. Calls
// touching the same file are not serialized, callers must not issue
// conflicting concurrent edits to one file within a batch. Every input
// call ID lands in exactly one of Results and Errors.
func (r *Router) ExecuteAll(ctx context.Context, workspaceID string, calls []ToolCall) BatchResult {
	results := make([]ToolResult, len(calls))
	g, ctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = r.Execute(ctx, workspaceID, call, ExecuteOptions{})
			return nil
		})
	}
	// Workers never return errors, failures live in their results.
	_ = g.Wait()

	batch := BatchResult{}
	for _, result := range results {
		if result.Success {
			batch.Results = append(batch.Results, result)
		} else {
			batch.Errors = append(batch.Errors, CallError{CallID: result.CallID, Error: result.Error})
		}
	}
	return batch
}

// root resolves the workspace root directory for a call.
func (r *Router) root(ctx context.Context, workspaceID string) (string, error) {
	return r.resolver.Root(ctx, workspaceID)
}

// resolvePath confines a tool-supplied path to the workspace.
func (r *Router) resolvePath(ctx context.Context, workspaceID, path string) (string, error) {
	return r.resolver.Resolve(ctx, workspaceID, path)
}
