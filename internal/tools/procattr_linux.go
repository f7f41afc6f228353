//go:build linux

package tools

import (
	"os/exec"
	"syscall"
)

// setProcGroup runs the command in its own process group so a kill can
// take out the whole shell pipeline, not just the shell. Pdeathsig makes
// the kernel reap the command if this process dies without cleaning up.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

// killProcessGroup kills the entire process group for the given PID.
func killProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
