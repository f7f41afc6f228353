package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/agentbench/agentbench/internal/workspace"
)

// readLints runs the workspace's configured linter and returns a
// structured summary alongside the raw diagnostics. A linter reporting
// findings is still a successful tool call, only a missing or unrunnable
// linter is a failure.
func (r *Router) readLints(ctx context.Context, workspaceID string, call ToolCall) ToolResult {
	root, err := r.root(ctx, workspaceID)
	if err != nil {
		return failureResult(call, "%v", err)
	}
	cfg, err := workspace.LoadProjectConfig(root)
	if err != nil {
		return failureResult(call, "%v", err)
	}
	if cfg.Lint.Command == "" {
		result := successResult(call, "no linter configured for this workspace")
		result.Payload = map[string]any{"errorCount": 0, "summary": "no linter configured"}
		return result
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", cfg.Lint.Command)
	cmd.Dir = root
	out, runErr := cmd.CombinedOutput()
	if runErr != nil {
		// Linters exit non-zero when they find problems, that is a
		// normal result. Only a spawn failure is a tool failure.
		if _, isExit := runErr.(*exec.ExitError); !isExit {
			return failureResult(call, "failed to run linter: %v", runErr)
		}
	}

	diagnostics := strings.TrimSpace(string(out))
	errorCount := 0
	if diagnostics != "" {
		errorCount = len(strings.Split(diagnostics, "\n"))
	}
	summary := "no lint errors"
	if errorCount > 0 {
		summary = fmt.Sprintf("%d lint findings", errorCount)
	}

	output := summary
	if diagnostics != "" {
		output = summary + "\n" + diagnostics
	}
	result := successResult(call, output)
	result.Payload = map[string]any{"errorCount": errorCount, "summary": summary}
	return result
}
