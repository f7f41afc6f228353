// Package websocket provides the real-time gateway between clients and
// agent runs: one WebSocket connection per client, with run, command and
// workspace-subscription actions.
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/agentbench/agentbench/internal/common/logger"
	"github.com/agentbench/agentbench/internal/events/bus"
	ws "github.com/agentbench/agentbench/pkg/websocket"
)

// Hub manages all WebSocket client connections.
type Hub struct {
	// All registered clients
	clients map[*Client]bool

	// Clients subscribed to specific workspaces
	workspaceSubscribers map[string]map[*Client]bool

	// Channels for client management
	register   chan *Client
	unregister chan *Client

	// Channel for broadcasting notifications
	broadcast chan *ws.Message

	// Message dispatcher
	dispatcher *ws.Dispatcher

	mu     sync.RWMutex
	logger *logger.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(dispatcher *ws.Dispatcher, log *logger.Logger) *Hub {
	return &Hub{
		clients:              make(map[*Client]bool),
		workspaceSubscribers: make(map[string]map[*Client]bool),
		register:             make(chan *Client),
		unregister:           make(chan *Client),
		broadcast:            make(chan *ws.Message, 256),
		dispatcher:           dispatcher,
		logger:               log.WithFields(zap.String("component", "ws_hub")),
	}
}

// Run starts the hub's main processing loop.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer h.logger.Info("WebSocket hub stopped")

	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("Client registered", zap.String("client_id", client.ID))

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

// closeAllClients closes all client connections.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.close()
		delete(h.clients, client)
	}
	h.workspaceSubscribers = make(map[string]map[*Client]bool)
}

// removeClient removes a client from the hub and cancels its active run.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.close()

		for workspaceID := range client.subscriptions {
			if clients, ok := h.workspaceSubscribers[workspaceID]; ok {
				delete(clients, client)
				if len(clients) == 0 {
					delete(h.workspaceSubscribers, workspaceID)
				}
			}
		}
	}
	h.mu.Unlock()

	// A disconnected client cannot cancel its run anymore, do it for it.
	if active := client.runs.Active(); active != nil {
		client.runs.Cancel(active.ID)
	}
	h.logger.Debug("Client unregistered", zap.String("client_id", client.ID))
}

// broadcastMessage sends a message to all connected clients.
func (h *Hub) broadcastMessage(msg *ws.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		// Closed or full clients just miss the broadcast.
		client.enqueue(data)
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast sends a notification to all connected clients.
func (h *Hub) Broadcast(msg *ws.Message) {
	h.broadcast <- msg
}

// BroadcastToWorkspace sends a notification to clients subscribed to a
// workspace.
func (h *Hub) BroadcastToWorkspace(workspaceID string, msg *ws.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := h.workspaceSubscribers[workspaceID]
	h.mu.RUnlock()

	for client := range clients {
		client.enqueue(data)
	}
}

// SubscribeToWorkspace subscribes a client to workspace notifications.
func (h *Hub) SubscribeToWorkspace(client *Client, workspaceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.workspaceSubscribers[workspaceID]; !ok {
		h.workspaceSubscribers[workspaceID] = make(map[*Client]bool)
	}
	h.workspaceSubscribers[workspaceID][client] = true
	client.subscriptions[workspaceID] = true

	h.logger.Debug("Client subscribed to workspace",
		zap.String("client_id", client.ID),
		zap.String("workspace_id", workspaceID))
}

// UnsubscribeFromWorkspace unsubscribes a client from workspace
// notifications.
func (h *Hub) UnsubscribeFromWorkspace(client *Client, workspaceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.subscriptions, workspaceID)
	if clients, ok := h.workspaceSubscribers[workspaceID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.workspaceSubscribers, workspaceID)
		}
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetDispatcher returns the message dispatcher.
func (h *Hub) GetDispatcher() *ws.Dispatcher {
	return h.dispatcher
}

// BridgeBus forwards run, preview and workspace events from the event
// bus to the workspace's subscribed clients, so observers that did not
// start a run still see its lifecycle.
func (h *Hub) BridgeBus(eventBus bus.EventBus) error {
	handler := func(ctx context.Context, event *bus.Event) error {
		workspaceID, _ := event.Data["workspace_id"].(string)
		if workspaceID == "" {
			return nil
		}
		msg, err := ws.NewNotification(event.Type, event.Data)
		if err != nil {
			return err
		}
		h.BroadcastToWorkspace(workspaceID, msg)
		return nil
	}
	if _, err := eventBus.Subscribe("run.*", handler); err != nil {
		return err
	}
	if _, err := eventBus.Subscribe("preview.*", handler); err != nil {
		return err
	}
	if _, err := eventBus.Subscribe("workspace.*", handler); err != nil {
		return err
	}
	return nil
}
