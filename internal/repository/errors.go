// Package repository holds the SQL access layer. Its sentinel errors let
// services tell failure cases apart: ErrNotFound means the row addressed
// by id does not exist and ErrDuplicate means a unique key rejected the
// write. Conditional updates report a state mismatch as a false result
// rather than an error.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by id or key matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique
// key, such as a second enrollment of the same user in the same class.
var ErrDuplicate = errors.New("duplicate")

// mysqlDuplicateEntry is the MySQL error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a unique constraint violation from
// MySQL or from the SQLite driver used in tests.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
