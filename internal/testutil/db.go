package testutil

import (
	"testing"

	"github.com/Dicklesworthstone/safeexec/internal/db"
)

// NewTestDBAtPath creates a migrated history index at path.
//
// The caller does not need to close it; cleanup is registered on t.Cleanup.
func NewTestDBAtPath(t *testing.T, path string) *db.DB {
	t.Helper()

	if path == "" {
		t.Fatalf("NewTestDBAtPath: path is required")
	}

	database, err := db.OpenAndMigrate(path)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}
