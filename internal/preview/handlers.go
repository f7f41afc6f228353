package preview

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/agentbench/agentbench/internal/common/errors"
	"github.com/agentbench/agentbench/internal/common/logger"
)

// Handler exposes dev-server lifecycle endpoints.
type Handler struct {
	launcher *Launcher
	logger   *logger.Logger
}

// NewHandler creates a preview lifecycle handler.
func NewHandler(launcher *Launcher, log *logger.Logger) *Handler {
	return &Handler{
		launcher: launcher,
		logger:   log.WithFields(zap.String("component", "preview-handler")),
	}
}

// RegisterRoutes mounts the dev-server endpoints on the gin router.
// They live under /workspaces to keep them clear of the proxy catch-all.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/workspaces/:workspaceId/preview/start", h.Start)
	rg.POST("/workspaces/:workspaceId/preview/stop", h.Stop)
}

// Start handles POST /api/workspaces/:workspaceId/preview/start.
func (h *Handler) Start(c *gin.Context) {
	workspaceID := c.Param("workspaceId")
	port, err := h.launcher.Start(c.Request.Context(), workspaceID)
	if err != nil {
		h.logger.WithError(err).Warn("dev server start failed",
			zap.String("workspace_id", workspaceID))
		c.JSON(apperrors.GetHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"workspace_id": workspaceID,
		"port":         port,
	})
}

// Stop handles POST /api/workspaces/:workspaceId/preview/stop.
func (h *Handler) Stop(c *gin.Context) {
	workspaceID := c.Param("workspaceId")
	stopped := h.launcher.Stop(workspaceID)
	c.JSON(http.StatusOK, gin.H{
		"workspace_id": workspaceID,
		"stopped":      stopped,
	})
}
