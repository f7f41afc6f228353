//go:build linux

package run

import (
	"os/exec"
	"syscall"
)

// setProcGroup runs the agent in its own process group so a cancel kills
// the agent and everything it spawned. Pdeathsig reaps the agent if this
// process dies without cleaning up.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}

// killProcessGroup kills the entire process group for the given PID.
func killProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
