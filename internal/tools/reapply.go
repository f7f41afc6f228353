package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// reapply re-issues the workspace's most recent recorded edit. The
// record is not cleared, so reapply can be repeated.
func (r *Router) reapply(ctx context.Context, workspaceID string, call ToolCall) ToolResult {
	edit, ok := r.lastEdits.Get(workspaceID)
	if !ok {
		return failureResult(call, "no prior edit recorded for this workspace")
	}
	path, err := r.resolvePath(ctx, workspaceID, edit.TargetFile)
	if err != nil {
		return failureResult(call, "%v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return failureResult(call, "failed to create parent directory for '%s': %v", edit.TargetFile, err)
	}
	if err := os.WriteFile(path, []byte(edit.CodeEdit), 0o644); err != nil {
		return failureResult(call, "failed to reapply edit to '%s': %v", edit.TargetFile, err)
	}
	return successResult(call, fmt.Sprintf("reapplied last edit to %s", edit.TargetFile))
}
