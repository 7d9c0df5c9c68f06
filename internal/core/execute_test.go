//go:build unix

package core

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestProcessRunnerPropagatesExitCode(t *testing.T) {
	requireShell(t)

	tests := []struct {
		script string
		want   int
	}{
		{"exit 0", 0},
		{"exit 3", 3},
		{"exit 42", 42},
	}
	for _, tc := range tests {
		t.Run(tc.script, func(t *testing.T) {
			code, err := ProcessRunner{}.Run(context.Background(), []string{"sh", "-c", tc.script})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if code != tc.want {
				t.Fatalf("exit code = %d, want %d", code, tc.want)
			}
		})
	}
}

func TestProcessRunnerStreams(t *testing.T) {
	requireShell(t)

	var stdout, stderr bytes.Buffer
	r := ProcessRunner{
		Stdin:  strings.NewReader("from stdin\n"),
		Stdout: &stdout,
		Stderr: &stderr,
	}
	code, err := r.Run(context.Background(), []string{"sh", "-c", "cat; echo TEST_COMMAND_APPROVED; echo oops >&2"})
	if err != nil || code != 0 {
		t.Fatalf("Run: %d, %v", code, err)
	}
	if stdout.String() != "from stdin\nTEST_COMMAND_APPROVED\n" {
		t.Fatalf("stdout = %q", stdout.String())
	}
	if stderr.String() != "oops\n" {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestProcessRunnerDirAndEnv(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	var stdout bytes.Buffer
	r := ProcessRunner{
		Stdout: &stdout,
		Dir:    dir,
		Env:    append(os.Environ(), "GATE_TEST_VAR=present"),
	}
	if _, err := r.Run(context.Background(), []string{"sh", "-c", `pwd; echo "$GATE_TEST_VAR"`}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], filepath.Base(dir)) || lines[1] != "present" {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}

func TestProcessRunnerSpawnFailure(t *testing.T) {
	code, err := ProcessRunner{}.Run(context.Background(), []string{"definitely-not-a-real-program-xyz"})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !errors.Is(err, ErrSpawnFailure) {
		t.Fatalf("expected ErrSpawnFailure, got %v", err)
	}
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) || spawnErr.Program != "definitely-not-a-real-program-xyz" {
		t.Fatalf("expected *SpawnError naming the program, got %#v", err)
	}
	if !errors.Is(err, exec.ErrNotFound) {
		t.Fatalf("expected underlying not-found error, got %v", err)
	}
}

func TestProcessRunnerEmptyArgv(t *testing.T) {
	if _, err := (ProcessRunner{}).Run(context.Background(), nil); !errors.Is(err, ErrSpawnFailure) {
		t.Fatalf("expected ErrSpawnFailure, got %v", err)
	}
}

func TestProcessRunnerCancelTerminatesChild(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	code, _ := ProcessRunner{GracePeriod: time.Second}.Run(ctx, []string{"sleep", "30"})
	if time.Since(start) > 5*time.Second {
		t.Fatalf("child was not terminated promptly")
	}
	if code == 0 {
		t.Fatalf("cancelled child must not report success")
	}
}
