//go:build unix

package core

import (
	"os"
	"os/exec"
	"syscall"
)

func terminate(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Signal(syscall.SIGTERM)
}

// exitStatus follows the shell convention of 128+signal for killed children.
func exitStatus(err *exec.ExitError) int {
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	if code := err.ExitCode(); code > 0 {
		return code
	}
	return 1
}
