package testutil

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestMockRunner_RecordsCalls(t *testing.T) {
	var out bytes.Buffer
	mock := NewMockRunner(&out, "MARKER", 0)

	code, err := mock.Run(context.Background(), []string{"echo", "hi"})
	RequireNoError(t, err, "run")
	RequireEqual(t, 0, code, "exit code")
	_, _ = mock.Run(context.Background(), []string{"ls", "-la"})

	RequireEqual(t, 2, mock.CallCount(), "call count")
	if !mock.WasCalledWith("echo", "hi") {
		t.Fatalf("expected echo hi to be recorded")
	}
	if mock.WasCalledWith("echo") {
		t.Fatalf("partial argv should not match")
	}
	RequireEqual(t, "ls", mock.LastCall().Argv[0], "last call")
	RequireEqual(t, "MARKER\nMARKER\n", out.String(), "stdout")

	mock.Reset()
	if mock.WasCalled() || mock.LastCall() != nil {
		t.Fatalf("expected no calls after reset")
	}
}

func TestMockRunner_RecordsCopyOfArgv(t *testing.T) {
	mock := NewMockRunner(nil, "", 0)
	argv := []string{"git", "push"}
	_, _ = mock.Run(context.Background(), argv)
	argv[1] = "pull"

	if !mock.WasCalledWith("git", "push") {
		t.Fatalf("recorded argv aliased the caller's slice")
	}
}

func TestMockRunner_Func(t *testing.T) {
	want := errors.New("boom")
	mock := NewMockRunnerFunc(func(_ context.Context, argv []string) (int, error) {
		if argv[0] == "fail" {
			return 1, want
		}
		return len(argv), nil
	})

	code, err := mock.Run(context.Background(), []string{"a", "b", "c"})
	RequireNoError(t, err, "run")
	RequireEqual(t, 3, code, "dynamic code")

	_, err = mock.Run(context.Background(), []string{"fail"})
	RequireErrorIs(t, err, want, "dynamic error")
}

func TestSnapshotFileRestores(t *testing.T) {
	h := NewHarness(t)
	path := h.WriteFile("notes/approvals.log", []byte("original\n"), 0o644)

	t.Run("mutates", func(t *testing.T) {
		SnapshotFile(t, path)
		h.WriteFile("notes/approvals.log", []byte("original\nappended\n"), 0o644)
	})

	RequireEqual(t, "original\n", h.ReadFile("notes/approvals.log"), "restored content")
}

func TestSnapshotFileRemovesCreatedFile(t *testing.T) {
	h := NewHarness(t)
	path := h.MustPath("notes", "new.log")

	t.Run("creates", func(t *testing.T) {
		SnapshotFile(t, path)
		h.WriteFile("notes/new.log", []byte("x"), 0o644)
	})

	if h.Exists("notes/new.log") {
		t.Fatalf("file created during the test should be removed")
	}
}
