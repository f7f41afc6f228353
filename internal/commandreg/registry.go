// Package commandreg tracks commands currently running on behalf of tool
// calls so that clients can terminate them remotely.
package commandreg

import (
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/agentbench/agentbench/internal/common/errors"
	"github.com/agentbench/agentbench/internal/common/logger"
)

// KillFunc terminates a running command. It is called at most once per
// registration, while the registry lock is held.
type KillFunc func() error

type key struct {
	workspaceID string
	callID      string
}

// Registry maps (workspaceID, callID) pairs to the kill function of the
// command running for that tool call.
type Registry struct {
	mu      sync.Mutex
	entries map[key]KillFunc
	logger  *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		entries: make(map[key]KillFunc),
		logger:  log.WithFields(zap.String("component", "commandreg")),
	}
}

// Register records a running command under its workspace and call IDs.
// A second registration for a still-live key is rejected, the caller must
// wait for the first command to finish or kill it.
func (r *Registry) Register(workspaceID, callID string, kill KillFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{workspaceID: workspaceID, callID: callID}
	if _, exists := r.entries[k]; exists {
		return apperrors.Conflict("a command is already running for call '" + callID + "'")
	}
	r.entries[k] = kill
	return nil
}

// Unregister removes a registration after the command exits on its own.
// Unknown keys are a no-op.
func (r *Registry) Unregister(workspaceID, callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key{workspaceID: workspaceID, callID: callID})
}

// Kill terminates the command registered under the given IDs and removes
// the registration. It reports whether a registration was found, so a
// repeated kill for an already-finished command returns false rather than
// an error. Kill failures are logged and swallowed: the entry is removed
// either way, since a kill that failed because the process already exited
// must not leave a stale registration behind.
func (r *Registry) Kill(workspaceID, callID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{workspaceID: workspaceID, callID: callID}
	kill, exists := r.entries[k]
	if !exists {
		return false
	}
	delete(r.entries, k)
	if err := kill(); err != nil {
		r.logger.WithError(err).Warn("failed to kill command",
			zap.String("workspace_id", workspaceID),
			zap.String("call_id", callID))
	}
	return true
}

// Len returns the number of live registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
