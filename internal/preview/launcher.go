package preview

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/agentbench/agentbench/internal/common/errors"
	"github.com/agentbench/agentbench/internal/common/logger"
	"github.com/agentbench/agentbench/internal/common/portutil"
	"github.com/agentbench/agentbench/internal/workspace"
)

// listenTimeout is how long a dev server gets to start accepting
// connections before the launch is reported as failed.
const listenTimeout = 60 * time.Second

type devServer struct {
	cmd  *exec.Cmd
	port int
}

// Launcher starts each workspace's configured dev server, registers its
// preview target once the port accepts connections and deregisters it
// when the process exits.
type Launcher struct {
	manager  *Manager
	resolver *workspace.Resolver
	host     string
	logger   *logger.Logger

	mu      sync.Mutex
	servers map[string]*devServer
}

// NewLauncher creates a dev-server launcher. host is the address dev
// servers are expected to listen on, normally 127.0.0.1.
func NewLauncher(manager *Manager, resolver *workspace.Resolver, host string, log *logger.Logger) *Launcher {
	if host == "" {
		host = "127.0.0.1"
	}
	return &Launcher{
		manager:  manager,
		resolver: resolver,
		host:     host,
		logger:   log.WithFields(zap.String("component", "preview-launcher")),
		servers:  make(map[string]*devServer),
	}
}

// Start launches the workspace's configured dev server and returns the
// port it will listen on. A second start for the same workspace while
// one is running is rejected.
func (l *Launcher) Start(ctx context.Context, workspaceID string) (int, error) {
	root, err := l.resolver.Root(ctx, workspaceID)
	if err != nil {
		return 0, err
	}
	cfg, err := workspace.LoadProjectConfig(root)
	if err != nil {
		return 0, err
	}
	if cfg.DevServer.Command == "" {
		return 0, apperrors.Configuration("no dev server command configured for this workspace")
	}

	command, port, err := resolveCommand(cfg.DevServer)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	if _, running := l.servers[workspaceID]; running {
		l.mu.Unlock()
		return 0, apperrors.Conflict("a dev server is already running for this workspace")
	}

	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "PORT="+strconv.Itoa(port))
	setProcGroup(cmd)
	if err := cmd.Start(); err != nil {
		l.mu.Unlock()
		return 0, apperrors.Process("failed to start dev server", err)
	}
	l.servers[workspaceID] = &devServer{cmd: cmd, port: port}
	l.mu.Unlock()

	log := l.logger.WithFields(
		zap.String("workspace_id", workspaceID),
		zap.Int("port", port))
	log.Info("dev server starting", zap.String("command", command))

	go l.supervise(ctx, workspaceID, cmd, port, log)
	return port, nil
}

// Stop kills the workspace's dev server, if one is running.
func (l *Launcher) Stop(workspaceID string) bool {
	l.mu.Lock()
	server, ok := l.servers[workspaceID]
	l.mu.Unlock()
	if !ok {
		return false
	}
	if err := killProcessGroup(server.cmd.Process.Pid); err != nil {
		l.logger.WithError(err).Warn("failed to kill dev server",
			zap.String("workspace_id", workspaceID))
	}
	return true
}

// StopAll kills every running dev server, used during shutdown.
func (l *Launcher) StopAll() {
	l.mu.Lock()
	ids := make([]string, 0, len(l.servers))
	for id := range l.servers {
		ids = append(ids, id)
	}
	l.mu.Unlock()
	for _, id := range ids {
		l.Stop(id)
	}
}

// supervise registers the preview target once the port is listening and
// cleans up when the process exits.
func (l *Launcher) supervise(ctx context.Context, workspaceID string, cmd *exec.Cmd, port int, log *logger.Logger) {
	listening := make(chan bool, 1)
	go func() {
		listening <- portutil.WaitForListen(l.host, port, listenTimeout)
	}()

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	select {
	case ok := <-listening:
		if ok {
			l.manager.Register(ctx, workspaceID, Target{Host: l.host, Port: port})
		} else {
			log.Warn("dev server never started listening, killing it")
			_ = killProcessGroup(cmd.Process.Pid)
		}
		<-waitDone
	case <-waitDone:
		// Exited before listening, nothing was registered.
	}

	l.manager.Deregister(ctx, workspaceID)
	l.mu.Lock()
	delete(l.servers, workspaceID)
	l.mu.Unlock()
	log.Info("dev server exited")
}

// resolveCommand substitutes the port into the dev server command. A
// configured fixed port wins; otherwise one is allocated for the
// command's port placeholder.
func resolveCommand(cfg workspace.DevServerConfig) (string, int, error) {
	if cfg.Port > 0 {
		command := strings.ReplaceAll(cfg.Command, "${PORT}", strconv.Itoa(cfg.Port))
		command = strings.ReplaceAll(command, "$PORT", strconv.Itoa(cfg.Port))
		return command, cfg.Port, nil
	}
	command, portEnv, err := portutil.TransformCommand(cfg.Command)
	if err != nil {
		return "", 0, apperrors.Process("failed to allocate dev server port", err)
	}
	if portStr, ok := portEnv["PORT"]; ok {
		port, _ := strconv.Atoi(portStr)
		return command, port, nil
	}
	for _, portStr := range portEnv {
		port, _ := strconv.Atoi(portStr)
		return command, port, nil
	}
	// No placeholder in the command and no fixed port, allocate one and
	// pass it through the PORT environment variable.
	port, err := portutil.AllocatePort()
	if err != nil {
		return "", 0, apperrors.Process("failed to allocate dev server port", err)
	}
	return command, port, nil
}
