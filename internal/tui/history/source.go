package history

import (
	"errors"
	"os"

	"github.com/Dicklesworthstone/safeexec/internal/audit"
	"github.com/Dicklesworthstone/safeexec/internal/db"
)

// Source loads every recorded decision, oldest first.
type Source interface {
	Load() ([]*db.Decision, error)
}

// LogSource reads the append-only audit log.
type LogSource struct {
	Path string
}

// Load parses the log. Entries sharing an ID collapse into one decision,
// the later outcome winning.
func (s LogSource) Load() ([]*db.Decision, error) {
	entries, _, err := audit.ReadEntries(s.Path)
	if err != nil {
		return nil, err
	}
	return collapse(entries), nil
}

func collapse(entries []audit.Entry) []*db.Decision {
	out := make([]*db.Decision, 0, len(entries))
	byID := make(map[string]*db.Decision, len(entries))
	for _, e := range entries {
		if e.ID != "" {
			if d, ok := byID[e.ID]; ok {
				d.Outcome = e.Outcome
				d.Timestamp = e.Timestamp
				continue
			}
		}
		d := &db.Decision{Entry: e}
		if e.ID != "" {
			byID[e.ID] = d
		}
		out = append(out, d)
	}
	return out
}

// DBSource reads the history index, which also carries exit codes.
type DBSource struct {
	Path string
}

// Load lists all indexed decisions.
func (s DBSource) Load() ([]*db.Decision, error) {
	if _, err := os.Stat(s.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	conn, err := db.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.ListDecisions(audit.Filter{})
}
