// Package audit implements the append-only approval log.
//
// Each decision is one logfmt line:
//
//	ts=2026-10-18T09:12:44.123Z outcome=APPROVED reason="Deploy hotfix" command="git push origin main" override=false tier=sensitive rule="git push mutates a remote" actor=ops@build-1 id=0b6c...
//
// Lines are human-readable and parse back with ParseLine.
package audit

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-logfmt/logfmt"
)

// TimeFormat is the ISO-8601 layout used for the ts field.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Outcome keywords written to the log.
const (
	OutcomeApproved   = "APPROVED"
	OutcomeDenied     = "DENIED"
	OutcomeBlocked    = "BLOCKED"
	OutcomeExecFailed = "EXEC_FAILED"
)

// Entry errors.
var (
	ErrInvalidEntry = errors.New("invalid audit entry")
	ErrEmptyLine    = errors.New("empty audit line")
)

// Entry is one audit record. Entries are never modified once written.
type Entry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Outcome      string    `json:"outcome"`
	Reason       string    `json:"reason"`
	Command      string    `json:"command"`
	OverrideUsed bool      `json:"override_used"`
	Tier         string    `json:"tier,omitempty"`
	Rule         string    `json:"rule,omitempty"`
	Actor        string    `json:"actor,omitempty"`
}

// KnownOutcome reports whether s is an outcome keyword.
func KnownOutcome(s string) bool {
	switch s {
	case OutcomeApproved, OutcomeDenied, OutcomeBlocked, OutcomeExecFailed:
		return true
	}
	return false
}

// Validate checks the fields every entry must carry.
func (e Entry) Validate() error {
	switch {
	case e.Timestamp.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEntry)
	case !KnownOutcome(e.Outcome):
		return fmt.Errorf("%w: unknown outcome %q", ErrInvalidEntry, e.Outcome)
	case strings.TrimSpace(e.Command) == "":
		return fmt.Errorf("%w: missing command", ErrInvalidEntry)
	}
	return nil
}

// Encode renders the entry as a single newline-terminated logfmt line.
func (e Entry) Encode() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := logfmt.NewEncoder(&buf)
	err := enc.EncodeKeyvals(
		"ts", e.Timestamp.UTC().Format(TimeFormat),
		"outcome", e.Outcome,
		"reason", e.Reason,
		"command", e.Command,
		"override", strconv.FormatBool(e.OverrideUsed),
		"tier", e.Tier,
		"rule", e.Rule,
		"actor", e.Actor,
		"id", e.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("encoding audit entry: %w", err)
	}
	if err := enc.EndRecord(); err != nil {
		return nil, fmt.Errorf("encoding audit entry: %w", err)
	}
	return buf.Bytes(), nil
}

// String returns the encoded line without the trailing newline.
func (e Entry) String() string {
	b, err := e.Encode()
	if err != nil {
		return fmt.Sprintf("<invalid entry: %v>", err)
	}
	return strings.TrimRight(string(b), "\n")
}

// ParseLine decodes one logfmt line. Unknown keys are ignored.
func ParseLine(line []byte) (Entry, error) {
	if len(bytes.TrimSpace(line)) == 0 {
		return Entry{}, ErrEmptyLine
	}

	dec := logfmt.NewDecoder(bytes.NewReader(line))
	if !dec.ScanRecord() {
		if err := dec.Err(); err != nil {
			return Entry{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		}
		return Entry{}, ErrEmptyLine
	}

	var e Entry
	for dec.ScanKeyval() {
		val := string(dec.Value())
		switch string(dec.Key()) {
		case "ts":
			ts, err := time.Parse(TimeFormat, val)
			if err != nil {
				ts, err = time.Parse(time.RFC3339Nano, val)
			}
			if err != nil {
				return Entry{}, fmt.Errorf("%w: bad ts %q", ErrInvalidEntry, val)
			}
			e.Timestamp = ts
		case "outcome":
			e.Outcome = val
		case "reason":
			e.Reason = val
		case "command":
			e.Command = val
		case "override":
			e.OverrideUsed = val == "true"
		case "tier":
			e.Tier = val
		case "rule":
			e.Rule = val
		case "actor":
			e.Actor = val
		case "id":
			e.ID = val
		}
	}
	if err := dec.Err(); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}
