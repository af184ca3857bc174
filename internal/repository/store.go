package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DBTX is the subset of *sql.DB and *sql.Tx used by the repositories, so
// the same repository code runs inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store bundles every repository bound to one handle. A Store returned by
// NewStore runs each statement on the pool; the Store passed to a WithTx
// callback runs every statement inside that transaction.
type Store struct {
	db   *sql.DB
	inTx bool

	Users       *UserRepo
	Tokens      *TokenRepo
	Classes     *ClassRepo
	Enrollments *EnrollmentRepo
	Attendance  *AttendanceRepo
	Memberships *MembershipRepo
	Payments    *PaymentRepo
}

// NewStore binds all repositories to db.
func NewStore(db *sql.DB) *Store {
	s := bind(db)
	s.db = db
	return s
}

func bind(q DBTX) *Store {
	return &Store{
		Users:       &UserRepo{db: q},
		Tokens:      &TokenRepo{db: q},
		Classes:     &ClassRepo{db: q},
		Enrollments: &EnrollmentRepo{db: q},
		Attendance:  &AttendanceRepo{db: q},
		Memberships: &MembershipRepo{db: q},
		Payments:    &PaymentRepo{db: q},
	}
}

// DB exposes the underlying pool, e.g. for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// WithTx runs fn with a Store bound to a new transaction. The transaction
// commits when fn returns nil and rolls back otherwise. Calling WithTx on
// a transactional Store reuses the current transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	txStore := bind(tx)
	txStore.inTx = true
	if err := fn(txStore); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// nowUTC stamps updated_at columns.
func nowUTC() time.Time { return time.Now().UTC() }

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullableID(p *uint64) any {
	if p == nil {
		return nil
	}
	return *p
}

func idPtr(n sql.NullInt64) *uint64 {
	if !n.Valid {
		return nil
	}
	v := uint64(n.Int64)
	return &v
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time.UTC()
	return &t
}

// affected converts a RowsAffected result into found/not-found.
func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
