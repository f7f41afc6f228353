package websocket

import (
	"context"

	"github.com/agentbench/agentbench/internal/run"
	"github.com/agentbench/agentbench/internal/tools"
	ws "github.com/agentbench/agentbench/pkg/websocket"
)

// StartRunRequest is the payload for run.start.
type StartRunRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Prompt      string `json:"prompt"`
	Model       string `json:"model,omitempty"`
}

// CancelRunRequest is the payload for run.cancel.
type CancelRunRequest struct {
	RunID string `json:"run_id"`
}

// KillCommandRequest is the payload for command.kill.
type KillCommandRequest struct {
	WorkspaceID string `json:"workspace_id"`
	CallID      string `json:"call_id"`
}

func (c *Client) handleRunStart(ctx context.Context, msg *ws.Message) {
	var req StartRunRequest
	if err := msg.ParsePayload(&req); err != nil {
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
		return
	}
	if req.WorkspaceID == "" {
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeValidation, "workspace_id is required", nil)
		return
	}
	if req.Prompt == "" {
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeValidation, "prompt is required", nil)
		return
	}

	params := run.StartParams{
		WorkspaceID: req.WorkspaceID,
		Prompt:      req.Prompt,
		Model:       req.Model,
	}
	runID, err := c.runs.Start(ctx, params, c.runCallbacks(req.WorkspaceID))
	if err != nil {
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeRunActive, err.Error(), nil)
		return
	}

	resp, _ := ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
		"run_id":       runID,
		"workspace_id": req.WorkspaceID,
	})
	c.sendMessage(resp)
}

// runCallbacks maps run lifecycle events onto client notifications.
func (c *Client) runCallbacks(workspaceID string) run.Callbacks {
	return run.Callbacks{
		OnOutput: func(runID, text string) {
			c.notify(ws.ActionRunOutput, map[string]interface{}{
				"run_id":       runID,
				"workspace_id": workspaceID,
				"text":         text,
			})
		},
		OnToolCall: func(runID string, call tools.ToolCall) {
			c.notify(ws.ActionRunToolCall, map[string]interface{}{
				"run_id":       runID,
				"workspace_id": workspaceID,
				"call_id":      call.CallID,
				"tool":         call.Tool,
				"args":         call.Args,
			})
		},
		OnToolResult: func(runID string, result tools.ToolResult) {
			c.notify(ws.ActionRunToolResult, map[string]interface{}{
				"run_id":       runID,
				"workspace_id": workspaceID,
				"result":       result,
			})
		},
		OnCommandOutput: func(runID, callID string, chunk []byte) {
			c.notify(ws.ActionCommandOutput, map[string]interface{}{
				"run_id":       runID,
				"workspace_id": workspaceID,
				"call_id":      callID,
				"output":       string(chunk),
			})
		},
		OnCommandExit: func(runID, callID string, exitCode *int) {
			c.notify(ws.ActionCommandExit, map[string]interface{}{
				"run_id":       runID,
				"workspace_id": workspaceID,
				"call_id":      callID,
				"exit_code":    exitCode,
			})
		},
		OnCompleted: func(runID string) {
			c.notify(ws.ActionRunCompleted, map[string]interface{}{
				"run_id":       runID,
				"workspace_id": workspaceID,
			})
		},
		OnFailed: func(runID, message string) {
			c.notify(ws.ActionRunFailed, map[string]interface{}{
				"run_id":       runID,
				"workspace_id": workspaceID,
				"error":        message,
			})
		},
		OnCancelled: func(runID string) {
			c.notify(ws.ActionRunCancelled, map[string]interface{}{
				"run_id":       runID,
				"workspace_id": workspaceID,
			})
		},
	}
}

func (c *Client) handleRunCancel(msg *ws.Message) {
	var req CancelRunRequest
	if err := msg.ParsePayload(&req); err != nil {
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
		return
	}
	if req.RunID == "" {
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeValidation, "run_id is required", nil)
		return
	}

	if !c.runs.Cancel(req.RunID) {
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeNotFound, "no active run with id "+req.RunID, nil)
		return
	}
	resp, _ := ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
		"run_id":    req.RunID,
		"cancelled": true,
	})
	c.sendMessage(resp)
}

func (c *Client) handleCommandKill(msg *ws.Message) {
	var req KillCommandRequest
	if err := msg.ParsePayload(&req); err != nil {
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
		return
	}
	if req.WorkspaceID == "" || req.CallID == "" {
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeValidation, "workspace_id and call_id are required", nil)
		return
	}

	killed := c.commands.Kill(req.WorkspaceID, req.CallID)
	resp, _ := ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
		"workspace_id": req.WorkspaceID,
		"call_id":      req.CallID,
		"killed":       killed,
	})
	c.sendMessage(resp)
}
