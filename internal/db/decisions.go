package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dicklesworthstone/safeexec/internal/audit"
)

// tsLayout is fixed-width so ts sorts lexically in time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrDecisionNotFound is returned when no row has the requested ID.
var ErrDecisionNotFound = errors.New("decision not found")

// Decision is an indexed audit entry plus the child's exit code, if known.
type Decision struct {
	audit.Entry
	ExitCode *int `json:"exit_code,omitempty"`
}

// Record inserts an entry. A second entry with the same ID (an EXEC_FAILED
// following its APPROVED) replaces the outcome.
func (db *DB) Record(e audit.Entry) error {
	if e.ID == "" {
		return fmt.Errorf("decision id is required")
	}
	_, err := db.Exec(`
		INSERT INTO decisions (id, ts, outcome, tier, rule, reason, command, override, actor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET outcome = excluded.outcome, ts = excluded.ts
	`, e.ID, e.Timestamp.UTC().Format(tsLayout), e.Outcome, e.Tier, e.Rule, e.Reason, e.Command, boolInt(e.OverrideUsed), e.Actor)
	if err != nil {
		return fmt.Errorf("recording decision: %w", err)
	}
	return nil
}

// RecordExit stores the exit code of an executed decision.
func (db *DB) RecordExit(id string, exitCode int) error {
	result, err := db.Exec(`UPDATE decisions SET exit_code = ? WHERE id = ?`, exitCode, id)
	if err != nil {
		return fmt.Errorf("updating exit code: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrDecisionNotFound
	}
	return nil
}

// GetDecision retrieves one decision by ID.
func (db *DB) GetDecision(id string) (*Decision, error) {
	rows, err := db.Query(selectDecisions+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("querying decision: %w", err)
	}
	defer rows.Close()

	out, err := scanDecisions(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrDecisionNotFound
	}
	return out[0], nil
}

// ListDecisions returns decisions matching f, oldest first. Limit keeps the
// most recent matches.
func (db *DB) ListDecisions(f audit.Filter) ([]*Decision, error) {
	var (
		where []string
		args  []any
	)
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, strings.ToUpper(f.Outcome))
	}
	if !f.Since.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, f.Since.UTC().Format(tsLayout))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "(instr(lower(reason), ?) > 0 OR instr(lower(command), ?) > 0)")
		q = strings.ToLower(q)
		args = append(args, q, q)
	}

	query := selectDecisions
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	out, err := scanDecisions(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountByOutcome returns the number of decisions per outcome.
func (db *DB) CountByOutcome() (map[string]int, error) {
	rows, err := db.Query(`SELECT outcome, COUNT(*) FROM decisions GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("counting decisions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

const selectDecisions = `SELECT id, ts, outcome, tier, rule, reason, command, override, actor, exit_code FROM decisions`

func scanDecisions(rows *sql.Rows) ([]*Decision, error) {
	var out []*Decision
	for rows.Next() {
		d := &Decision{}
		var (
			ts       string
			override int
			exitCode sql.NullInt64
		)
		err := rows.Scan(&d.ID, &ts, &d.Outcome, &d.Tier, &d.Rule, &d.Reason, &d.Command, &override, &d.Actor, &exitCode)
		if err != nil {
			return nil, fmt.Errorf("scanning decision row: %w", err)
		}

		d.Timestamp, err = time.Parse(tsLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing ts: %w", err)
		}
		d.OverrideUsed = override != 0
		if exitCode.Valid {
			code := int(exitCode.Int64)
			d.ExitCode = &code
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating decisions: %w", err)
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
