package tools

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentbench/agentbench/internal/commandreg"
	apperrors "github.com/agentbench/agentbench/internal/common/errors"
	"github.com/agentbench/agentbench/internal/common/logger"
)

// ExecuteRequest is the synchronous tool execution boundary consumed by
// external tool descriptors.
type ExecuteRequest struct {
	WorkspaceID   string         `json:"workspace_id"`
	ChatSessionID string         `json:"chat_session_id,omitempty"`
	CallID        string         `json:"call_id"`
	Tool          string         `json:"tool"`
	Arguments     map[string]any `json:"arguments"`
}

// ExecuteResponse mirrors the success/output/error triple of ToolResult.
type ExecuteResponse struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler exposes the tool router over HTTP.
type Handler struct {
	router   *Router
	commands *commandreg.Registry
	logger   *logger.Logger
}

// NewHandler creates an HTTP handler for tool execution.
func NewHandler(router *Router, commands *commandreg.Registry, log *logger.Logger) *Handler {
	return &Handler{
		router:   router,
		commands: commands,
		logger:   log.WithFields(zap.String("component", "tools-api")),
	}
}

// RegisterRoutes mounts the tool execution boundary on the gin router.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/tools/execute", h.Execute)
}

// Execute handles POST /api/tools/execute. A missing workspace ID is a
// configuration error, not a tool failure.
func (h *Handler) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := apperrors.BadRequest("invalid request body: " + err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	if req.WorkspaceID == "" {
		appErr := apperrors.Configuration("workspace_id is required")
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	call := ToolCall{
		CallID:  req.CallID,
		Tool:    NormalizeTool(req.Tool),
		Args:    req.Arguments,
		RawTool: req.Tool,
	}
	// Register spawned commands so a client can still kill them over the
	// gateway while this request is in flight.
	var streamDone chan struct{}
	opts := ExecuteOptions{
		OnCommand: func(cmd *Command) {
			if err := h.commands.Register(req.WorkspaceID, cmd.CallID, cmd.Kill); err != nil {
				h.logger.WithError(err).Warn("failed to register running command",
					zap.String("workspace_id", req.WorkspaceID),
					zap.String("call_id", cmd.CallID))
			}
			done := make(chan struct{})
			streamDone = done
			go func() {
				defer close(done)
				for event := range cmd.Stream {
					if event.Exit {
						h.commands.Unregister(req.WorkspaceID, cmd.CallID)
					}
				}
			}()
		},
	}

	result := h.router.Execute(c.Request.Context(), req.WorkspaceID, call, opts)
	if streamDone != nil {
		<-streamDone
	}
	c.JSON(http.StatusOK, ExecuteResponse{
		Success: result.Success,
		Output:  result.Output,
		Error:   result.Error,
	})
}
