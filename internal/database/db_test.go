package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	in := `
-- leading comment
CREATE TABLE a (id INT);

    -- indented comment
CREATE TABLE b (
    id INT
);
`
	got := SplitStatements(in)
	require.Len(t, got, 2)
	assert.Equal(t, "CREATE TABLE a (id INT)", got[0])
	assert.Contains(t, got[1], "CREATE TABLE b")
}

func TestEmbeddedSchemaCoversEveryTable(t *testing.T) {
	stmts := SplitStatements(schemaSQL)
	tables := []string{
		"users", "refresh_tokens", "classes", "class_schedules", "class_enrollments",
		"attendance_sessions", "session_attendees", "enrollment_attendance",
		"enrollment_notes", "memberships", "payments", "payment_items",
	}
	require.Len(t, stmts, len(tables))
	for i, name := range tables {
		assert.Contains(t, stmts[i], "CREATE TABLE IF NOT EXISTS "+name+" ")
	}
}
