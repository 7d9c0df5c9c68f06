package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/safeexec/internal/audit"
	"github.com/Dicklesworthstone/safeexec/internal/db"
)

// Harness is a lightweight integration test environment.
//
// It provisions a temp project directory with a `.safeexec/history.db` and an
// audit log path under `notes/`, and keeps cleanup automatic via t.Cleanup.
type Harness struct {
	T          *testing.T
	ProjectDir string
	StateDir   string
	AuditPath  string
	DBPath     string
	DB         *db.DB
}

func NewHarness(t *testing.T) *Harness {
	t.Helper()

	projectDir := t.TempDir()
	stateDir := filepath.Join(projectDir, ".safeexec")
	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		t.Fatalf("NewHarness: mkdir .safeexec: %v", err)
	}

	dbPath := filepath.Join(stateDir, "history.db")
	database := NewTestDBAtPath(t, dbPath)

	return &Harness{
		T:          t,
		ProjectDir: projectDir,
		StateDir:   stateDir,
		AuditPath:  filepath.Join(projectDir, "notes", "approvals.log"),
		DBPath:     dbPath,
		DB:         database,
	}
}

// AuditLogger returns a logger for the harness audit path mirrored to its DB.
func (h *Harness) AuditLogger() *audit.Logger {
	return audit.NewLogger(h.AuditPath, audit.WithMirror(h.DB), audit.WithLogger(TestLogger(h.T)))
}

// AuditEntries parses the audit log, failing on read errors.
func (h *Harness) AuditEntries() []audit.Entry {
	h.T.Helper()
	entries, _, err := audit.ReadEntries(h.AuditPath)
	if err != nil {
		h.T.Fatalf("Harness.AuditEntries: %v", err)
	}
	return entries
}

// MustPath joins ProjectDir with parts, failing the test on error.
func (h *Harness) MustPath(parts ...string) string {
	h.T.Helper()
	if h == nil || h.ProjectDir == "" {
		h.T.Fatalf("Harness.MustPath: harness not initialized")
	}
	all := append([]string{h.ProjectDir}, parts...)
	return filepath.Join(all...)
}

// WriteFile writes a file relative to the project directory.
func (h *Harness) WriteFile(rel string, data []byte, perm os.FileMode) string {
	h.T.Helper()
	if strings.TrimSpace(rel) == "" {
		h.T.Fatalf("Harness.WriteFile: rel path is required")
	}
	abs := h.MustPath(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		h.T.Fatalf("Harness.WriteFile: mkdir: %v", err)
	}
	if err := os.WriteFile(abs, data, perm); err != nil {
		h.T.Fatalf("Harness.WriteFile: write: %v", err)
	}
	return abs
}

// ReadFile reads a file relative to the project directory.
func (h *Harness) ReadFile(rel string) string {
	h.T.Helper()
	data, err := os.ReadFile(h.MustPath(rel))
	if err != nil {
		h.T.Fatalf("Harness.ReadFile: %v", err)
	}
	return string(data)
}

// Exists reports whether rel exists under the project directory.
func (h *Harness) Exists(rel string) bool {
	_, err := os.Stat(h.MustPath(rel))
	return !errors.Is(err, os.ErrNotExist)
}

func (h *Harness) String() string {
	if h == nil {
		return "Harness<nil>"
	}
	return fmt.Sprintf("Harness(project=%s, audit=%s)", h.ProjectDir, h.AuditPath)
}
