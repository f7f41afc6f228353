//go:build unix && !linux

package run

import (
	"os/exec"
	"syscall"
)

// setProcGroup runs the agent in its own process group so a cancel kills
// the agent and everything it spawned. Pdeathsig is Linux-specific, so
// orphan cleanup here relies on explicit cancels.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup kills the entire process group for the given PID.
func killProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
