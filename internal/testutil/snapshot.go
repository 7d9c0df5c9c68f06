package testutil

import (
	"errors"
	"os"
	"testing"
)

// SnapshotFile records path's current content and restores it byte for byte
// when the test ends. A file that did not exist is removed again.
func SnapshotFile(t *testing.T, path string) {
	t.Helper()

	info, statErr := os.Stat(path)
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("SnapshotFile: stat: %v", statErr)
	}
	existed := statErr == nil

	var (
		data []byte
		mode os.FileMode = 0o644
	)
	if existed {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			t.Fatalf("SnapshotFile: read: %v", err)
		}
		mode = info.Mode().Perm()
	}

	t.Cleanup(func() {
		if !existed {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				t.Errorf("SnapshotFile: remove: %v", err)
			}
			return
		}
		if err := os.WriteFile(path, data, mode); err != nil {
			t.Errorf("SnapshotFile: restore: %v", err)
		}
	})
}
