package websocket

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agentbench/agentbench/internal/commandreg"
	"github.com/agentbench/agentbench/internal/common/logger"
	"github.com/agentbench/agentbench/internal/run"
	ws "github.com/agentbench/agentbench/pkg/websocket"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: validate origin once the deployment story settles
		return true
	},
}

// RunManagerFactory builds the per-connection run manager. Each client
// gets its own, which is what enforces one active run per connection.
type RunManagerFactory func() *run.Manager

// Handler handles WebSocket connections.
type Handler struct {
	hub       *Hub
	newRunMgr RunManagerFactory
	commands  *commandreg.Registry
	logger    *logger.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub, factory RunManagerFactory, commands *commandreg.Registry, log *logger.Logger) *Handler {
	return &Handler{
		hub:       hub,
		newRunMgr: factory,
		commands:  commands,
		logger:    log.WithFields(zap.String("component", "ws_handler")),
	}
}

// HandleConnection upgrades HTTP to WebSocket and handles messages.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	clientID := uuid.New().String()
	h.logger.Debug("WebSocket connection established",
		zap.String("client_id", clientID),
		zap.String("remote_addr", c.Request.RemoteAddr),
	)

	client := NewClient(clientID, conn, h.hub, h.newRunMgr(), h.commands, h.logger)
	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump(c.Request.Context())
}

// RegisterHealthHandler registers the health check handler.
func RegisterHealthHandler(d *ws.Dispatcher) {
	d.RegisterFunc(ws.ActionHealthCheck, func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
			"status":  "ok",
			"service": "agentbench",
		})
	})
}
