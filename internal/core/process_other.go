//go:build !unix

package core

import (
	"os"
	"os/exec"
)

func terminate(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}

func exitStatus(err *exec.ExitError) int {
	if code := err.ExitCode(); code > 0 {
		return code
	}
	return 1
}
