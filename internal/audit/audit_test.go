package audit

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func sampleEntry(outcome string) Entry {
	return Entry{
		ID:        "id-" + strings.ToLower(outcome),
		Timestamp: time.Date(2026, 10, 18, 9, 12, 44, 123_000_000, time.UTC),
		Outcome:   outcome,
		Reason:    "Deploy hotfix",
		Command:   "git push origin main",
		Tier:      "sensitive",
		Rule:      "git push mutates a remote",
		Actor:     "ops@build-1",
	}
}

func TestEncodeParseLine(t *testing.T) {
	e := sampleEntry(OutcomeApproved)
	e.Reason = "line one\nline two \"quoted\""
	e.OverrideUsed = true

	line, err := e.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasSuffix(string(line), "\n") {
		t.Fatalf("line not newline-terminated: %q", line)
	}
	if strings.Count(string(line), "\n") != 1 {
		t.Fatalf("embedded newline leaked into line: %q", line)
	}
	if !strings.HasPrefix(string(line), "ts=2026-10-18T09:12:44.123Z outcome=APPROVED ") {
		t.Fatalf("unexpected prefix: %q", line)
	}

	got, err := ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if !got.Timestamp.Equal(e.Timestamp) {
		t.Fatalf("timestamp mismatch: got=%v want=%v", got.Timestamp, e.Timestamp)
	}
	got.Timestamp = e.Timestamp
	if got != e {
		t.Fatalf("parsed entry mismatch:\n got=%+v\nwant=%+v", got, e)
	}
}

func TestEncodeRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Entry)
	}{
		{"no timestamp", func(e *Entry) { e.Timestamp = time.Time{} }},
		{"unknown outcome", func(e *Entry) { e.Outcome = "MAYBE" }},
		{"blank command", func(e *Entry) { e.Command = "  " }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := sampleEntry(OutcomeDenied)
			tc.mutate(&e)
			if _, err := e.Encode(); !errors.Is(err, ErrInvalidEntry) {
				t.Fatalf("expected ErrInvalidEntry, got %v", err)
			}
		})
	}
}

func TestParseLineErrors(t *testing.T) {
	if _, err := ParseLine([]byte("   ")); !errors.Is(err, ErrEmptyLine) {
		t.Fatalf("blank line: got %v", err)
	}
	if _, err := ParseLine([]byte("ts=yesterday outcome=APPROVED command=ls")); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("bad ts: got %v", err)
	}
	if _, err := ParseLine([]byte("ts=2026-10-18T09:12:44.123Z command=ls")); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("missing outcome: got %v", err)
	}
}

type recordingMirror struct {
	mu      sync.Mutex
	entries []Entry
	exits   map[string]int
	err     error
}

func (m *recordingMirror) Record(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return m.err
}

func (m *recordingMirror) RecordExit(id string, code int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exits == nil {
		m.exits = map[string]int{}
	}
	m.exits[id] = code
	return m.err
}

func TestLoggerAppendCreatesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes", "approvals.log")
	mirror := &recordingMirror{}
	l := NewLogger(path, WithMirror(mirror))

	if err := l.Append(sampleEntry(OutcomeApproved)); err != nil {
		t.Fatalf("Append 1: %v", err)
	}
	if err := l.Append(sampleEntry(OutcomeDenied)); err != nil {
		t.Fatalf("Append 2: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}
	if !strings.Contains(lines[0], "outcome=APPROVED") || !strings.Contains(lines[1], "outcome=DENIED") {
		t.Fatalf("lines out of order: %q", lines)
	}
	if len(mirror.entries) != 2 {
		t.Fatalf("mirror saw %d entries, want 2", len(mirror.entries))
	}

	l.RecordExit("id-approved", 3)
	if mirror.exits["id-approved"] != 3 {
		t.Fatalf("mirror exit code not recorded: %v", mirror.exits)
	}
}

func TestLoggerAppendPreservesExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approvals.log")
	legacy := "2024-01-01 legacy free-form line\n"
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := NewLogger(path).Append(sampleEntry(OutcomeBlocked)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), legacy) {
		t.Fatalf("existing content was modified: %q", data)
	}

	entries, skipped, err := ReadEntries(path)
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if skipped != 1 || len(entries) != 1 {
		t.Fatalf("expected 1 entry and 1 skipped, got %d and %d", len(entries), skipped)
	}
}

func TestLoggerMirrorFailureDoesNotFailAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approvals.log")
	l := NewLogger(path, WithMirror(&recordingMirror{err: errors.New("disk full")}))
	if err := l.Append(sampleEntry(OutcomeApproved)); err != nil {
		t.Fatalf("Append should ignore mirror errors: %v", err)
	}
}

func TestLoggerAppendFailsWhenUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "notes")
	if err := os.WriteFile(blocker, []byte("not a dir"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	l := NewLogger(filepath.Join(blocker, "approvals.log"))
	if err := l.Append(sampleEntry(OutcomeApproved)); err == nil {
		t.Fatalf("expected error appending under a regular file")
	}
}

func TestLoggerConcurrentAppendsStayWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approvals.log")
	l := NewLogger(path)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := sampleEntry(OutcomeApproved)
			e.Reason = strings.Repeat("r", 2048)
			if err := l.Append(e); err != nil {
				t.Errorf("Append: %v", err)
			}
		}()
	}
	wg.Wait()

	entries, skipped, err := ReadEntries(path)
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(entries) != n || skipped != 0 {
		t.Fatalf("expected %d whole entries, got %d (skipped %d)", n, len(entries), skipped)
	}
}

func TestReadEntriesMissingFile(t *testing.T) {
	entries, skipped, err := ReadEntries(filepath.Join(t.TempDir(), "nope.log"))
	if err != nil || skipped != 0 || len(entries) != 0 {
		t.Fatalf("missing file should read as empty: %v %d %d", err, skipped, len(entries))
	}
}

func TestFilterApply(t *testing.T) {
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	var entries []Entry
	for i, outcome := range []string{OutcomeApproved, OutcomeDenied, OutcomeBlocked, OutcomeApproved, OutcomeApproved} {
		e := sampleEntry(outcome)
		e.Timestamp = base.Add(time.Duration(i) * time.Hour)
		e.Command = []string{"ls", "rm -rf /", "sudo ls", "git push", "scp a b"}[i]
		entries = append(entries, e)
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all", Filter{}, []string{"ls", "rm -rf /", "sudo ls", "git push", "scp a b"}},
		{"outcome", Filter{Outcome: "approved"}, []string{"ls", "git push", "scp a b"}},
		{"query", Filter{Query: "SUDO"}, []string{"sudo ls"}},
		{"since", Filter{Since: base.Add(3 * time.Hour)}, []string{"git push", "scp a b"}},
		{"limit keeps newest", Filter{Outcome: OutcomeApproved, Limit: 2}, []string{"git push", "scp a b"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.filter.Apply(entries)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d entries, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i].Command != tc.want[i] {
					t.Fatalf("entry %d: got %q want %q", i, got[i].Command, tc.want[i])
				}
			}
		})
	}
}
