package audit

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const maxLineBytes = 1 << 20

// ReadEntries parses the log at path. A missing file is an empty log.
// Lines that do not parse are counted in skipped and otherwise ignored.
func ReadEntries(path string) (entries []Entry, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()
	return ParseEntries(f)
}

// ParseEntries parses logfmt lines from r in file order.
func ParseEntries(r io.Reader) ([]Entry, int, error) {
	var (
		entries []Entry
		skipped int
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		e, err := ParseLine(sc.Bytes())
		if errors.Is(err, ErrEmptyLine) {
			continue
		}
		if err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return entries, skipped, fmt.Errorf("reading audit log: %w", err)
	}
	return entries, skipped, nil
}

// Filter selects entries for display.
type Filter struct {
	// Outcome matches case-insensitively; empty matches all.
	Outcome string
	// Query is a case-insensitive substring of reason or command.
	Query string
	Since time.Time
	// Limit keeps the most recent N matches; zero keeps all.
	Limit int
}

// Match reports whether e passes the filter, ignoring Limit.
func (f Filter) Match(e Entry) bool {
	if f.Outcome != "" && !strings.EqualFold(f.Outcome, e.Outcome) {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(e.Reason), q) &&
			!strings.Contains(strings.ToLower(e.Command), q) {
			return false
		}
	}
	return true
}

// Apply returns the matching entries, oldest first.
func (f Filter) Apply(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}
