package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/gym-management/internal/model"
)

// AttendanceRepo persists held sessions and the members marked present.
type AttendanceRepo struct{ db DBTX }

const sessionColumns = `id, class_id, session_number, session_date, instructor_id, total_enrolled, total_present, created_at`

// CreateSession inserts s and assigns s.ID. A second session with the same
// class and number yields ErrDuplicate.
func (r *AttendanceRepo) CreateSession(ctx context.Context, s *model.AttendanceSession) error {
	now := nowUTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO attendance_sessions (class_id, session_number, session_date, instructor_id, total_enrolled, total_present, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		s.ClassID, s.SessionNumber, s.SessionDate.UTC(), nullableID(s.InstructorID), s.TotalEnrolled, now)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.CreatedAt = now
	return nil
}

// GetSession returns the session without its roster, or ErrNotFound.
func (r *AttendanceRepo) GetSession(ctx context.Context, id uint64) (model.AttendanceSession, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM attendance_sessions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.AttendanceSession{}, ErrNotFound
	}
	return s, err
}

// ListSessionsByClass returns the class's sessions ordered by number.
func (r *AttendanceRepo) ListSessionsByClass(ctx context.Context, classID uint64) ([]model.AttendanceSession, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM attendance_sessions WHERE class_id = ? ORDER BY session_number", classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AttendanceSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListAttendees returns the roster of a session in marking order.
func (r *AttendanceRepo) ListAttendees(ctx context.Context, sessionID uint64) ([]model.Attendee, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT enrollment_id, user_id, note, marked_at FROM session_attendees WHERE session_id = ? ORDER BY id", sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Attendee
	for rows.Next() {
		var a model.Attendee
		if err := rows.Scan(&a.EnrollmentID, &a.UserID, &a.Note, &a.MarkedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// HasAttendee reports whether the user is already marked for the session.
func (r *AttendanceRepo) HasAttendee(ctx context.Context, sessionID, userID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM session_attendees WHERE session_id = ? AND user_id = ?", sessionID, userID).Scan(&n)
	return n > 0, err
}

// AddAttendee records a as present and bumps total_present. Marking the
// same user twice yields ErrDuplicate.
func (r *AttendanceRepo) AddAttendee(ctx context.Context, sessionID uint64, a model.Attendee) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO session_attendees (session_id, enrollment_id, user_id, note, marked_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, a.EnrollmentID, a.UserID, a.Note, a.MarkedAt.UTC()); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE attendance_sessions SET total_present = total_present + 1 WHERE id = ?", sessionID)
	return err
}

func scanSession(s rowScanner) (model.AttendanceSession, error) {
	var as model.AttendanceSession
	var instructor sql.NullInt64
	err := s.Scan(&as.ID, &as.ClassID, &as.SessionNumber, &as.SessionDate, &instructor,
		&as.TotalEnrolled, &as.TotalPresent, &as.CreatedAt)
	if err != nil {
		return model.AttendanceSession{}, err
	}
	as.InstructorID = idPtr(instructor)
	return as, nil
}
