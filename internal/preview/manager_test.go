package preview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentbench/agentbench/internal/common/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console"})
	require.NoError(t, err)
	return log
}

func TestManagerRegisterAndLookup(t *testing.T) {
	mgr := NewManager(nil, newTestLogger(t))
	ctx := context.Background()

	_, ok := mgr.GetPreviewTarget("ws-1")
	assert.False(t, ok)
	assert.Zero(t, mgr.GetPort("ws-1"))

	mgr.Register(ctx, "ws-1", Target{Host: "127.0.0.1", Port: 5173})
	target, ok := mgr.GetPreviewTarget("ws-1")
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:5173", target.Addr())
	assert.Equal(t, "http://127.0.0.1:5173", target.URL())
	assert.Equal(t, 5173, mgr.GetPort("ws-1"))

	// Re-registering replaces the target.
	mgr.Register(ctx, "ws-1", Target{Host: "127.0.0.1", Port: 3000})
	assert.Equal(t, 3000, mgr.GetPort("ws-1"))

	mgr.Deregister(ctx, "ws-1")
	_, ok = mgr.GetPreviewTarget("ws-1")
	assert.False(t, ok)

	// Deregistering twice is harmless.
	mgr.Deregister(ctx, "ws-1")
}

func TestTargetBracketsIPv6(t *testing.T) {
	target := Target{Host: "::1", Port: 8080}
	assert.Equal(t, "[::1]:8080", target.Addr())
	assert.Equal(t, "http://[::1]:8080", target.URL())
}
