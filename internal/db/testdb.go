package db

import (
	"database/sql"
	"testing"
)

// NewTestDB creates a fresh in-memory SQLite database with the local schema applied.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return newTestDB(t, EnsureSchema)
}

// NewSandboxTestDB creates a fresh in-memory SQLite database with the sandbox schema applied.
func NewSandboxTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return newTestDB(t, EnsureSandboxSchema)
}

func newTestDB(t *testing.T, ensure func(*sql.DB) error) *sql.DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err := ensure(db); err != nil {
		db.Close()
		t.Fatalf("creating test database schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	return db
}
