package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func newTestFollower(path string) *Follower {
	return &Follower{
		path:    path,
		logger:  log.Default(),
		entries: make(chan Entry, 16),
		errors:  make(chan error, 4),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

func TestFollowerReadNewHandlesPartialLinesAndTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approvals.log")
	f := newTestFollower(path)

	entries, err := f.readNew()
	if err != nil || len(entries) != 0 {
		t.Fatalf("missing file: %v %d", err, len(entries))
	}

	line, _ := sampleEntry(OutcomeApproved).Encode()
	half := len(line) / 2
	if err := os.WriteFile(path, line[:half], 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	entries, _ = f.readNew()
	if len(entries) != 0 {
		t.Fatalf("partial line should not be emitted")
	}

	fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	_, _ = fh.Write(line[half:])
	_ = fh.Close()

	entries, _ = f.readNew()
	if len(entries) != 1 || entries[0].Outcome != OutcomeApproved {
		t.Fatalf("expected completed entry, got %+v", entries)
	}

	denied, _ := sampleEntry(OutcomeDenied).Encode()
	// Shorter than what was already read, so the file must be reread.
	if err := os.WriteFile(path, denied, 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	entries, _ = f.readNew()
	if len(entries) != 1 || entries[0].Outcome != OutcomeDenied {
		t.Fatalf("expected reread after shrink, got %+v", entries)
	}
}

func TestFollowerEmitsAppendedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes", "approvals.log")
	l := NewLogger(path)
	if err := l.Append(sampleEntry(OutcomeBlocked)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	f, err := NewFollower(path, true)
	if err != nil {
		t.Fatalf("NewFollower: %v", err)
	}
	t.Cleanup(func() { _ = f.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := f.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := l.Append(sampleEntry(OutcomeApproved)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	select {
	case e := <-f.Entries():
		if e.Outcome != OutcomeApproved {
			t.Fatalf("expected only the new entry, got %s", e.Outcome)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for followed entry")
	}
}

func TestFollowerStopWithoutStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approvals.log")
	f, err := NewFollower(path, false)
	if err != nil {
		t.Fatalf("NewFollower: %v", err)
	}

	stopped := make(chan error, 1)
	go func() { stopped <- f.Stop() }()
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on a follower that was never started")
	}

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start after Stop: %v", err)
	}
	if _, ok := <-f.Entries(); ok {
		t.Fatal("entries channel still open")
	}
	if _, ok := <-f.Errors(); ok {
		t.Fatal("errors channel still open")
	}
	if err := f.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
