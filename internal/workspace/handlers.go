package workspace

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/agentbench/agentbench/internal/common/errors"
	"github.com/agentbench/agentbench/internal/common/logger"
	"github.com/agentbench/agentbench/internal/events"
	"github.com/agentbench/agentbench/internal/events/bus"
)

// Handler exposes workspace CRUD endpoints.
type Handler struct {
	store  Store
	bus    bus.EventBus
	logger *logger.Logger
}

// NewHandler creates a workspace handler. eventBus may be nil.
func NewHandler(store Store, eventBus bus.EventBus, log *logger.Logger) *Handler {
	return &Handler{
		store:  store,
		bus:    eventBus,
		logger: log.WithFields(zap.String("component", "workspace-handler")),
	}
}

func (h *Handler) publish(c *gin.Context, eventType, workspaceID string) {
	if h.bus == nil {
		return
	}
	event := bus.NewEvent(eventType, "workspace-handler", map[string]any{
		"workspace_id": workspaceID,
	})
	if err := h.bus.Publish(c.Request.Context(), "workspace."+workspaceID, event); err != nil {
		h.logger.WithError(err).Warn("failed to publish workspace event",
			zap.String("event", eventType))
	}
}

// RegisterRoutes mounts the workspace endpoints on the gin router.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/workspaces", h.Create)
	rg.GET("/workspaces", h.List)
	rg.GET("/workspaces/:workspaceId", h.Get)
	rg.DELETE("/workspaces/:workspaceId", h.Delete)
}

// CreateWorkspaceRequest is the payload for POST /api/workspaces.
type CreateWorkspaceRequest struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Create handles POST /api/workspaces.
func (h *Handler) Create(c *gin.Context) {
	var req CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := apperrors.BadRequest("invalid request body: " + err.Error())
		c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message})
		return
	}

	ws := &Workspace{Name: req.Name, Path: req.Path}
	if err := h.store.Create(c.Request.Context(), ws); err != nil {
		h.logger.WithError(err).Warn("workspace create failed")
		c.JSON(apperrors.GetHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	h.publish(c, events.WorkspaceCreated, ws.ID)
	c.JSON(http.StatusCreated, ws)
}

// List handles GET /api/workspaces.
func (h *Handler) List(c *gin.Context) {
	workspaces, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(apperrors.GetHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workspaces": workspaces})
}

// Get handles GET /api/workspaces/:workspaceId.
func (h *Handler) Get(c *gin.Context) {
	ws, err := h.store.Get(c.Request.Context(), c.Param("workspaceId"))
	if err != nil {
		c.JSON(apperrors.GetHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ws)
}

// Delete handles DELETE /api/workspaces/:workspaceId.
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("workspaceId")
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		c.JSON(apperrors.GetHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	h.publish(c, events.WorkspaceDeleted, id)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
