package database

import (
	"path/filepath"
	"testing"
)

// testDB opens a throwaway sqlite database under the test's temp dir with
// the schema applied.
func testDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}
