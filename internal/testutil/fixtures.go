package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/Dicklesworthstone/safeexec/internal/audit"
)

// EntryOption customizes a test audit entry.
type EntryOption func(*audit.Entry)

// MakeEntry builds a valid APPROVED entry with a random ID.
func MakeEntry(opts ...EntryOption) audit.Entry {
	e := audit.Entry{
		ID:        "dec-" + randHex(6),
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		Outcome:   audit.OutcomeApproved,
		Reason:    "test",
		Command:   "echo test",
		Tier:      "sensitive",
		Actor:     "tester@host",
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// WriteEntries appends entries to the log at path.
func WriteEntries(t *testing.T, path string, entries ...audit.Entry) {
	t.Helper()
	l := audit.NewLogger(path, audit.WithLogger(TestLogger(t)))
	for _, e := range entries {
		RequireNoError(t, l.Append(e), "append entry")
	}
}

func EntryWithOutcome(outcome string) EntryOption {
	return func(e *audit.Entry) { e.Outcome = outcome }
}

func EntryWithReason(reason string) EntryOption {
	return func(e *audit.Entry) { e.Reason = reason }
}

func EntryWithCommand(cmd string) EntryOption {
	return func(e *audit.Entry) { e.Command = cmd }
}

func EntryWithTier(tier string) EntryOption {
	return func(e *audit.Entry) { e.Tier = tier }
}

func EntryAt(ts time.Time) EntryOption {
	return func(e *audit.Entry) { e.Timestamp = ts.UTC() }
}

func EntryWithOverride() EntryOption {
	return func(e *audit.Entry) { e.OverrideUsed = true }
}

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
