// Package preview tracks live dev-server targets per workspace and
// reverse-proxies HTTP and WebSocket traffic to them.
package preview

import (
	"context"
	"net"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/agentbench/agentbench/internal/common/logger"
	"github.com/agentbench/agentbench/internal/events"
	"github.com/agentbench/agentbench/internal/events/bus"
)

// Target is the network location of a workspace's live dev server.
type Target struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns host:port with IPv6 literals bracketed.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// URL returns the http base URL for the target.
func (t Target) URL() string {
	return "http://" + t.Addr()
}

// Manager is the process-wide table of preview targets. Shared across
// connections, all access is serialized.
type Manager struct {
	mu      sync.RWMutex
	targets map[string]Target
	bus     bus.EventBus
	logger  *logger.Logger
}

// NewManager creates an empty preview manager. eventBus may be nil.
func NewManager(eventBus bus.EventBus, log *logger.Logger) *Manager {
	return &Manager{
		targets: make(map[string]Target),
		bus:     eventBus,
		logger:  log.WithFields(zap.String("component", "preview")),
	}
}

// Register records a workspace's dev server location, replacing any
// previous target.
func (m *Manager) Register(ctx context.Context, workspaceID string, target Target) {
	m.mu.Lock()
	m.targets[workspaceID] = target
	m.mu.Unlock()
	m.logger.Info("preview target registered",
		zap.String("workspace_id", workspaceID),
		zap.String("addr", target.Addr()))
	m.publish(ctx, workspaceID, events.PreviewStarted, map[string]any{
		"host": target.Host,
		"port": target.Port,
	})
}

// Deregister removes a workspace's preview target. Unknown workspaces
// are a no-op.
func (m *Manager) Deregister(ctx context.Context, workspaceID string) {
	m.mu.Lock()
	_, existed := m.targets[workspaceID]
	delete(m.targets, workspaceID)
	m.mu.Unlock()
	if !existed {
		return
	}
	m.logger.Info("preview target removed", zap.String("workspace_id", workspaceID))
	m.publish(ctx, workspaceID, events.PreviewStopped, nil)
}

// GetPreviewTarget returns the workspace's target, if one is live.
func (m *Manager) GetPreviewTarget(workspaceID string) (Target, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	target, ok := m.targets[workspaceID]
	return target, ok
}

// GetPort returns the workspace's dev server port, or 0 when none is
// live.
func (m *Manager) GetPort(workspaceID string) int {
	target, ok := m.GetPreviewTarget(workspaceID)
	if !ok {
		return 0
	}
	return target.Port
}

func (m *Manager) publish(ctx context.Context, workspaceID, eventType string, data map[string]any) {
	if m.bus == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["workspace_id"] = workspaceID
	event := bus.NewEvent(eventType, "preview", data)
	if err := m.bus.Publish(ctx, events.PreviewSubject(workspaceID), event); err != nil {
		m.logger.WithError(err).Warn("failed to publish preview event",
			zap.String("event_type", eventType))
	}
}
