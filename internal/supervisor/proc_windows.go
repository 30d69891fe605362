//go:build windows

package supervisor

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// configureProcess detaches the child from the harness console group so a
// console interrupt aimed at the child does not reach the harness.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}

// killGroup is a no-op on Windows; killTree terminates the enumerated
// descendants and the root individually.
func killGroup(int) error {
	return nil
}
