package database

import (
	"path/filepath"
	"testing"
)

// NewTestDB creates a file-backed test database and returns a cleanup function.
// Exported so other packages can use it in their tests.
func NewTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := New(dbPath, true)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	}

	return db, cleanup
}
