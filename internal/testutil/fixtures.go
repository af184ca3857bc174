package testutil

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

var phoneSeq atomic.Int64

// InsertUser stores a user with a placeholder password hash and returns its id.
func InsertUser(t *testing.T, db *sql.DB, username, role string) uint64 {
	t.Helper()
	now := time.Now().UTC()
	res, err := db.Exec(
		`INSERT INTO users (username, email, phone, password_hash, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		username, username+"@gym.test", fmt.Sprintf("09%08d", phoneSeq.Add(1)),
		"x", role, true, now, now)
	if err != nil {
		t.Fatalf("insert user %s: %v", username, err)
	}
	id, _ := res.LastInsertId()
	return uint64(id)
}

// ClassFixture describes a class row for InsertClass.
type ClassFixture struct {
	Name           string
	MaxMembers     int
	CurrentMembers int
	TotalSessions  int
	CurrentSession int
	Start          time.Time
	End            time.Time
	Price          int64
	Cancelled      bool
}

// InsertClass stores a class and returns its id.
func InsertClass(t *testing.T, db *sql.DB, f ClassFixture) uint64 {
	t.Helper()
	if f.Name == "" {
		f.Name = "Yoga"
	}
	now := time.Now().UTC()
	res, err := db.Exec(
		`INSERT INTO classes (name, description, max_members, current_members, total_sessions, current_session,
		                      start_date, end_date, price, is_cancelled, created_at, updated_at)
		 VALUES (?, '', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Name, f.MaxMembers, f.CurrentMembers, f.TotalSessions, f.CurrentSession,
		f.Start.UTC(), f.End.UTC(), f.Price, f.Cancelled, now, now)
	if err != nil {
		t.Fatalf("insert class: %v", err)
	}
	id, _ := res.LastInsertId()
	return uint64(id)
}

// QueryInt runs a single-value integer query.
func QueryInt(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	return n
}

// QueryString runs a single-value string query.
func QueryString(t *testing.T, db *sql.DB, query string, args ...any) string {
	t.Helper()
	var s string
	if err := db.QueryRow(query, args...).Scan(&s); err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	return s
}

// QueryBool runs a single-value query against a BOOLEAN column.
func QueryBool(t *testing.T, db *sql.DB, query string, args ...any) bool {
	t.Helper()
	var b bool
	if err := db.QueryRow(query, args...).Scan(&b); err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	return b
}
