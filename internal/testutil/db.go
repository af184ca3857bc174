// Package testutil provides a throwaway SQLite database with the
// application schema and small fixture helpers for tests.
package testutil

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/iliyamo/gym-management/internal/database"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// OpenDB creates a file-backed SQLite database in t.TempDir(), applies the
// schema and closes it when the test ends. The pool is limited to a single
// connection, so code under test must route every statement of a
// transaction through the transaction handle.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gym.db")
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := database.ApplySchema(context.Background(), db, sqliteSchema); err != nil {
		_ = db.Close()
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Clock is a settable time source.
type Clock struct{ T time.Time }

// NewClock returns a clock frozen at t.
func NewClock(t time.Time) *Clock { return &Clock{T: t.UTC()} }

// Now returns the frozen instant.
func (c *Clock) Now() time.Time { return c.T }

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) { c.T = c.T.Add(d) }
