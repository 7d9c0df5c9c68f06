package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Dicklesworthstone/safeexec/internal/audit"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := OpenAndMigrate(filepath.Join(t.TempDir(), ".safeexec", "history.db"))
	if err != nil {
		t.Fatalf("OpenAndMigrate: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func entry(id, outcome, command string, ts time.Time) audit.Entry {
	return audit.Entry{
		ID:        id,
		Timestamp: ts,
		Outcome:   outcome,
		Reason:    "reason for " + command,
		Command:   command,
		Tier:      "sensitive",
	}
}

func TestRecordAndGetDecision(t *testing.T) {
	d := openTestDB(t)
	ts := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

	e := entry("a", audit.OutcomeApproved, "git push", ts)
	e.OverrideUsed = true
	if err := d.Record(e); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := d.GetDecision("a")
	if err != nil {
		t.Fatalf("GetDecision: %v", err)
	}
	if got.Outcome != audit.OutcomeApproved || got.Command != "git push" || !got.OverrideUsed {
		t.Fatalf("unexpected decision: %+v", got)
	}
	if !got.Timestamp.Equal(ts) {
		t.Fatalf("timestamp mismatch: %v", got.Timestamp)
	}
	if got.ExitCode != nil {
		t.Fatalf("exit code should be unset before execution")
	}

	if err := d.RecordExit("a", 7); err != nil {
		t.Fatalf("RecordExit: %v", err)
	}
	got, _ = d.GetDecision("a")
	if got.ExitCode == nil || *got.ExitCode != 7 {
		t.Fatalf("exit code not stored: %+v", got.ExitCode)
	}
}

func TestRecordSameIDReplacesOutcome(t *testing.T) {
	d := openTestDB(t)
	ts := time.Now().UTC()

	if err := d.Record(entry("a", audit.OutcomeApproved, "scp x y", ts)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := d.Record(entry("a", audit.OutcomeExecFailed, "scp x y", ts.Add(time.Second))); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := d.GetDecision("a")
	if err != nil {
		t.Fatalf("GetDecision: %v", err)
	}
	if got.Outcome != audit.OutcomeExecFailed {
		t.Fatalf("expected EXEC_FAILED, got %s", got.Outcome)
	}
}

func TestDecisionNotFound(t *testing.T) {
	d := openTestDB(t)
	if _, err := d.GetDecision("missing"); !errors.Is(err, ErrDecisionNotFound) {
		t.Fatalf("GetDecision: expected ErrDecisionNotFound, got %v", err)
	}
	if err := d.RecordExit("missing", 0); !errors.Is(err, ErrDecisionNotFound) {
		t.Fatalf("RecordExit: expected ErrDecisionNotFound, got %v", err)
	}
	if err := d.Record(audit.Entry{}); err == nil {
		t.Fatalf("Record without id should fail")
	}
}

func TestListDecisionsFilters(t *testing.T) {
	d := openTestDB(t)
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	rows := []audit.Entry{
		entry("1", audit.OutcomeApproved, "git push origin main", base),
		entry("2", audit.OutcomeDenied, "rsync -a . host:/srv", base.Add(time.Hour)),
		entry("3", audit.OutcomeBlocked, "sudo reboot", base.Add(2*time.Hour)),
		entry("4", audit.OutcomeApproved, "ssh host uptime", base.Add(3*time.Hour)),
	}
	for _, e := range rows {
		if err := d.Record(e); err != nil {
			t.Fatalf("Record %s: %v", e.ID, err)
		}
	}

	tests := []struct {
		name   string
		filter audit.Filter
		want   []string
	}{
		{"all oldest first", audit.Filter{}, []string{"1", "2", "3", "4"}},
		{"outcome case-insensitive", audit.Filter{Outcome: "approved"}, []string{"1", "4"}},
		{"query", audit.Filter{Query: "SUDO"}, []string{"3"}},
		{"since", audit.Filter{Since: base.Add(90 * time.Minute)}, []string{"3", "4"}},
		{"limit keeps newest", audit.Filter{Limit: 2}, []string{"3", "4"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := d.ListDecisions(tc.filter)
			if err != nil {
				t.Fatalf("ListDecisions: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d rows, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i].ID != tc.want[i] {
					t.Fatalf("row %d: got %s want %s", i, got[i].ID, tc.want[i])
				}
			}
		})
	}

	counts, err := d.CountByOutcome()
	if err != nil {
		t.Fatalf("CountByOutcome: %v", err)
	}
	if counts[audit.OutcomeApproved] != 2 || counts[audit.OutcomeBlocked] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestDBMirrorsAuditLogger(t *testing.T) {
	d := openTestDB(t)
	l := audit.NewLogger(filepath.Join(t.TempDir(), "approvals.log"), audit.WithMirror(d))

	e := entry("m1", audit.OutcomeApproved, "git push", time.Now().UTC())
	if err := l.Append(e); err != nil {
		t.Fatalf("Append: %v", err)
	}
	l.RecordExit("m1", 0)

	got, err := d.GetDecision("m1")
	if err != nil {
		t.Fatalf("GetDecision: %v", err)
	}
	if got.ExitCode == nil || *got.ExitCode != 0 {
		t.Fatalf("exit code not mirrored: %+v", got.ExitCode)
	}
}
