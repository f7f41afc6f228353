//go:build unix && !linux

package tools

import (
	"os/exec"
	"syscall"
)

// setProcGroup runs the command in its own process group so a kill can
// take out the whole shell pipeline, not just the shell. Pdeathsig is
// Linux-specific, so orphan cleanup here relies on explicit kills.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup kills the entire process group for the given PID.
func killProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
