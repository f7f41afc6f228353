//go:build linux

package preview

import (
	"os/exec"
	"syscall"
)

// setProcGroup runs the dev server in its own process group so stopping
// it takes out the whole npm/node tree. Pdeathsig reaps it if this
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
