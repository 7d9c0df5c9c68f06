package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// ErrSpawnFailure is wrapped by SpawnError.
var ErrSpawnFailure = errors.New("failed to start command")

// DefaultGracePeriod is how long a cancelled child gets between SIGTERM and SIGKILL.
const DefaultGracePeriod = 5 * time.Second

// SpawnError reports that the child never started (e.g. program not found).
// It is distinct from the child exiting non-zero, which is not an error.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("%s %q: %v", ErrSpawnFailure, e.Program, e.Err)
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *SpawnError) Unwrap() []error {
	return []error{ErrSpawnFailure, e.Err}
}

// Runner runs a command to completion and returns its exit code.
type Runner interface {
	Run(ctx context.Context, argv []string) (int, error)
}

// ProcessRunner spawns the command as a child process. Nil streams default
// to the gateway's own stdin, stdout and stderr.
type ProcessRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Dir is the working directory; empty means the current directory.
	Dir string
	// Env is the child environment; nil inherits the gateway's.
	Env []string
	// GracePeriod is the delay between SIGTERM and SIGKILL on cancellation.
	GracePeriod time.Duration
}

// Run implements Runner. The command runs at most once. When ctx is
// cancelled the child is terminated and its (non-zero) status is returned.
func (r ProcessRunner) Run(ctx context.Context, argv []string) (int, error) {
	if len(argv) == 0 || argv[0] == "" {
		return 1, &SpawnError{Program: "", Err: errors.New("empty command")}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.Dir
	cmd.Env = r.Env
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	grace := r.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	cmd.Cancel = func() error { return terminate(cmd.Process) }
	cmd.WaitDelay = grace

	if err := cmd.Start(); err != nil {
		return 1, &SpawnError{Program: argv[0], Err: err}
	}

	err := cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitStatus(exitErr), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 1, fmt.Errorf("command interrupted: %w", ctxErr)
	}
	return 1, fmt.Errorf("waiting for command: %w", err)
}
