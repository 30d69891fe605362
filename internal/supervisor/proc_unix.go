//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureProcess starts the child in its own process group so the whole
// group can be signalled on timeout.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killGroup sends SIGKILL to the process group led by pid.
func killGroup(pid int) error {
	return unix.Kill(-pid, unix.SIGKILL)
}
