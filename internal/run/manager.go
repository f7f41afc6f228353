package run

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentbench/agentbench/internal/commandreg"
	"github.com/agentbench/agentbench/internal/common/config"
	apperrors "github.com/agentbench/agentbench/internal/common/errors"
	"github.com/agentbench/agentbench/internal/common/logger"
	"github.com/agentbench/agentbench/internal/events"
	"github.com/agentbench/agentbench/internal/events/bus"
	"github.com/agentbench/agentbench/internal/tools"
	"github.com/agentbench/agentbench/internal/workspace"
)

// State is an agent run's lifecycle state. Terminal states are absorbing.
type State string

const (
	StateIdle      State = "idle"
	StateSpawning  State = "spawning"
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// terminal reports whether a state absorbs further transitions.
func (s State) terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// StartParams describes one run request.
type StartParams struct {
	WorkspaceID string
	Prompt      string
	Model       string
}

// Callbacks receive run lifecycle and streaming events. All fields are
// optional. Callbacks for one run are invoked from a single goroutine,
// in stream order.
type Callbacks struct {
	OnOutput        func(runID, text string)
	OnToolCall      func(runID string, call tools.ToolCall)
	OnToolResult    func(runID string, result tools.ToolResult)
	OnCommandOutput func(runID, callID string, chunk []byte)
	OnCommandExit   func(runID, callID string, exitCode *int)
	OnCompleted     func(runID string)
	OnFailed        func(runID, message string)
	OnCancelled     func(runID string)
}

// Run is one execution of the agent process. Ephemeral, never persisted.
type Run struct {
	ID          string
	WorkspaceID string

	mu        sync.Mutex
	state     State
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	cancelled atomic.Bool
}

// State returns the run's current lifecycle state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// setState transitions the run, ignoring transitions out of a terminal
// state.
func (r *Run) setState(next State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.terminal() {
		return false
	}
	r.state = next
	return true
}

// Manager owns the agent runs of a single client connection. Only one
// run may be spawning or streaming at a time.
type Manager struct {
	cfg      config.AgentConfig
	router   *tools.Router
	resolver *workspace.Resolver
	commands *commandreg.Registry
	bus      bus.EventBus
	logger   *logger.Logger

	mu     sync.Mutex
	active *Run
}

// NewManager creates a run manager. eventBus may be nil when no bus is
// configured.
func NewManager(
	cfg config.AgentConfig,
	router *tools.Router,
	resolver *workspace.Resolver,
	commands *commandreg.Registry,
	eventBus bus.EventBus,
	log *logger.Logger,
) *Manager {
	return &Manager{
		cfg:      cfg,
		router:   router,
		resolver: resolver,
		commands: commands,
		bus:      eventBus,
		logger:   log.WithFields(zap.String("component", "run-manager")),
	}
}

// Active returns the in-flight run, or nil.
func (m *Manager) Active() *Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil && m.active.State().terminal() {
		m.active = nil
	}
	return m.active
}

// Start spawns the agent process for a run. It returns a conflict error
// while another run is active; spawn failures and all later lifecycle
// transitions are reported through the callbacks.
func (m *Manager) Start(ctx context.Context, params StartParams, cb Callbacks) (string, error) {
	m.mu.Lock()
	if m.active != nil && !m.active.State().terminal() {
		m.mu.Unlock()
		return "", apperrors.Conflict("run already in progress")
	}
	run := &Run{
		ID:          uuid.New().String(),
		WorkspaceID: params.WorkspaceID,
		state:       StateSpawning,
	}
	m.active = run
	m.mu.Unlock()

	model := params.Model
	if model == "" {
		model = m.cfg.DefaultModel
	}
	log := m.logger.WithFields(
		zap.String("run_id", run.ID),
		zap.String("workspace_id", params.WorkspaceID),
		zap.String("model", model))

	root, err := m.resolver.Root(ctx, params.WorkspaceID)
	if err != nil {
		m.fail(ctx, run, cb, fmt.Sprintf("invalid workspace: %v", err))
		return run.ID, nil
	}

	args := append([]string{}, m.cfg.Args...)
	args = append(args, "--model", model)
	if m.cfg.StructuredOutput {
		args = append(args, "--output-format", "stream-json")
	}
	args = append(args, "-p", params.Prompt)

	cmd := exec.Command(m.cfg.Binary, args...)
	cmd.Dir = root
	setProcGroup(cmd)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		m.fail(ctx, run, cb, fmt.Sprintf("failed to open agent stdin: %v", err))
		return run.ID, nil
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		m.fail(ctx, run, cb, fmt.Sprintf("failed to open agent stdout: %v", err))
		return run.ID, nil
	}
	if err := cmd.Start(); err != nil {
		m.fail(ctx, run, cb, fmt.Sprintf("failed to spawn agent process: %v", err))
		return run.ID, nil
	}

	run.mu.Lock()
	run.cmd = cmd
	run.stdin = stdin
	run.mu.Unlock()
	run.setState(StateStreaming)
	log.Info("agent run started")
	m.publish(ctx, run, events.RunStarted, map[string]any{"model": model})

	go m.streamLoop(ctx, run, cb, stdout, &stderr, log)
	return run.ID, nil
}

// Cancel terminates the active run. Unknown or already-terminal run IDs
// return false.
func (m *Manager) Cancel(runID string) bool {
	m.mu.Lock()
	run := m.active
	m.mu.Unlock()
	if run == nil || run.ID != runID || run.State().terminal() {
		return false
	}
	run.cancelled.Store(true)
	run.mu.Lock()
	cmd := run.cmd
	run.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		if err := killProcessGroup(cmd.Process.Pid); err != nil {
			m.logger.WithError(err).Warn("failed to kill agent process group",
				zap.String("run_id", runID))
			_ = cmd.Process.Kill()
		}
	}
	return true
}

// streamLoop drains the agent's event stream, dispatches tool calls and
// settles the run's terminal state once the process exits.
func (m *Manager) streamLoop(ctx context.Context, run *Run, cb Callbacks, stdout io.Reader, stderr *bytes.Buffer, log *logger.Logger) {
	var resultSuccess *bool
	var resultText string

	parseErr := ParseEvents(stdout, func(event *AgentEvent) error {
		switch event.Type {
		case EventOutput:
			if cb.OnOutput != nil {
				cb.OnOutput(run.ID, event.Text)
			}
			m.publish(ctx, run, events.RunOutput, map[string]any{"text": event.Text})
		case EventToolCall:
			m.handleToolCall(ctx, run, cb, event)
		case EventResult:
			resultSuccess = event.Success
			resultText = event.Text
			if event.Text != "" && cb.OnOutput != nil {
				cb.OnOutput(run.ID, event.Text)
			}
		default:
			log.Debug("ignoring unknown agent event", zap.String("type", event.Type))
		}
		return nil
	})

	run.mu.Lock()
	stdin := run.stdin
	run.mu.Unlock()
	if stdin != nil {
		_ = stdin.Close()
	}
	waitErr := run.cmd.Wait()

	switch {
	case run.cancelled.Load():
		if run.setState(StateCancelled) {
			log.Info("agent run cancelled")
			if cb.OnCancelled != nil {
				cb.OnCancelled(run.ID)
			}
			m.publish(ctx, run, events.RunCancelled, nil)
		}
	case parseErr != nil:
		m.fail(ctx, run, cb, fmt.Sprintf("agent stream unreadable: %v", parseErr))
	case waitErr != nil:
		msg := fmt.Sprintf("agent process failed: %v", waitErr)
		if errOut := strings.TrimSpace(stderr.String()); errOut != "" {
			msg += ": " + errOut
		}
		m.fail(ctx, run, cb, msg)
	case resultSuccess != nil && !*resultSuccess:
		msg := resultText
		if msg == "" {
			msg = "agent reported failure"
		}
		m.fail(ctx, run, cb, msg)
	default:
		if run.setState(StateCompleted) {
			log.Info("agent run completed")
			if cb.OnCompleted != nil {
				cb.OnCompleted(run.ID)
			}
			m.publish(ctx, run, events.RunCompleted, nil)
		}
	}
}

// handleToolCall dispatches one tool call, streams its result to the
// client and acknowledges it on the agent's stdin.
func (m *Manager) handleToolCall(ctx context.Context, run *Run, cb Callbacks, event *AgentEvent) {
	call := event.ToolCall()
	if cb.OnToolCall != nil {
		cb.OnToolCall(run.ID, call)
	}
	m.publish(ctx, run, events.RunToolCall, map[string]any{"call_id": call.CallID, "tool": call.Tool})

	// The command stream is drained on its own goroutine; the tool result
	// is only reported after the exit event has been relayed.
	var streamDone chan struct{}
	opts := tools.ExecuteOptions{
		OnCommand: func(cmd *tools.Command) {
			if err := m.commands.Register(run.WorkspaceID, cmd.CallID, cmd.Kill); err != nil {
				m.logger.WithError(err).Warn("failed to register running command",
					zap.String("call_id", cmd.CallID))
			}
			done := make(chan struct{})
			streamDone = done
			go func() {
				defer close(done)
				for event := range cmd.Stream {
					if event.Exit {
						m.commands.Unregister(run.WorkspaceID, cmd.CallID)
						if cb.OnCommandExit != nil {
							cb.OnCommandExit(run.ID, cmd.CallID, event.ExitCode)
						}
						continue
					}
					if cb.OnCommandOutput != nil {
						cb.OnCommandOutput(run.ID, cmd.CallID, event.Chunk)
					}
				}
			}()
		},
	}
	result := m.router.Execute(ctx, run.WorkspaceID, call, opts)
	if streamDone != nil {
		<-streamDone
	}
	if cb.OnToolResult != nil {
		cb.OnToolResult(run.ID, result)
	}
	m.publish(ctx, run, events.RunToolResult, map[string]any{
		"call_id": result.CallID,
		"tool":    result.Tool,
		"success": result.Success,
	})

	if m.cfg.StructuredOutput {
		m.writeResult(run, result)
	}
}

// writeResult acknowledges a tool result on the agent's stdin.
func (m *Manager) writeResult(run *Run, result tools.ToolResult) {
	line, err := EncodeToolResult(result)
	if err != nil {
		m.logger.WithError(err).Error("failed to encode tool result",
			zap.String("call_id", result.CallID))
		return
	}
	run.mu.Lock()
	stdin := run.stdin
	run.mu.Unlock()
	if stdin == nil {
		return
	}
	if _, err := stdin.Write(line); err != nil {
		m.logger.WithError(err).Warn("failed to write tool result to agent",
			zap.String("call_id", result.CallID))
	}
}

func (m *Manager) fail(ctx context.Context, run *Run, cb Callbacks, message string) {
	if !run.setState(StateFailed) {
		return
	}
	m.logger.Error("agent run failed",
		zap.String("run_id", run.ID),
		zap.String("reason", message))
	if cb.OnFailed != nil {
		cb.OnFailed(run.ID, message)
	}
	m.publish(ctx, run, events.RunFailed, map[string]any{"error": message})
}

func (m *Manager) publish(ctx context.Context, run *Run, eventType string, data map[string]any) {
	if m.bus == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["run_id"] = run.ID
	data["workspace_id"] = run.WorkspaceID
	event := bus.NewEvent(eventType, "run-manager", data)
	if err := m.bus.Publish(ctx, events.RunSubject(run.WorkspaceID), event); err != nil {
		m.logger.WithError(err).Warn("failed to publish run event",
			zap.String("event_type", eventType))
	}
}
