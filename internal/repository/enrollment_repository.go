package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/gym-management/internal/model"
)

// EnrollmentRepo provides persistence for class enrollments, their mirrored
// attendance log and audit notes.
type EnrollmentRepo struct{ db DBTX }

const enrollmentColumns = `e.id, e.user_id, e.class_id, e.payment_status, e.status, e.remaining_sessions,
	e.enrolled_at, e.created_at, e.updated_at`

// EnrollmentWithClass pairs an enrollment with the class it belongs to.
type EnrollmentWithClass struct {
	Enrollment model.Enrollment
	Class      model.Class
}

// Create inserts e and assigns e.ID. A second enrollment of the same user
// in the same class yields ErrDuplicate.
func (r *EnrollmentRepo) Create(ctx context.Context, e *model.Enrollment) error {
	now := nowUTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO class_enrollments (user_id, class_id, payment_status, status, remaining_sessions, enrolled_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.ClassID, e.PaymentStatus, string(e.Status), e.RemainingSessions, e.EnrolledAt.UTC(), now, now)
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
	e.ID = uint64(id)
	e.CreatedAt, e.UpdatedAt = now, now
	return nil
}

// GetByID returns the enrollment or ErrNotFound.
func (r *EnrollmentRepo) GetByID(ctx context.Context, id uint64) (model.Enrollment, error) {
	return r.get(ctx, "SELECT "+enrollmentColumns+" FROM class_enrollments e WHERE e.id = ?", id)
}

// GetByUserAndClass returns the user's enrollment in the class or ErrNotFound.
func (r *EnrollmentRepo) GetByUserAndClass(ctx context.Context, userID, classID uint64) (model.Enrollment, error) {
	return r.get(ctx, "SELECT "+enrollmentColumns+" FROM class_enrollments e WHERE e.user_id = ? AND e.class_id = ?", userID, classID)
}

func (r *EnrollmentRepo) get(ctx context.Context, q string, args ...any) (model.Enrollment, error) {
	e, err := scanEnrollment(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Enrollment{}, ErrNotFound
	}
	return e, err
}

// Delete removes the enrollment; attendance log and notes cascade.
func (r *EnrollmentRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM class_enrollments WHERE id = ?", id)
	if err != nil {
		return err
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns the user's enrollments joined with their classes.
func (r *EnrollmentRepo) ListByUser(ctx context.Context, userID uint64) ([]EnrollmentWithClass, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+enrollmentColumns+", c.id, c.name, c.description, c.instructor_id, c.max_members, c.current_members,"+
			" c.total_sessions, c.current_session, c.start_date, c.end_date, c.price, c.is_cancelled, c.created_at, c.updated_at"+
			" FROM class_enrollments e JOIN classes c ON c.id = e.class_id WHERE e.user_id = ? ORDER BY e.id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EnrollmentWithClass
	for rows.Next() {
		var (
			ewc        EnrollmentWithClass
			instructor sql.NullInt64
			e          = &ewc.Enrollment
			c          = &ewc.Class
			status     string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.ClassID, &e.PaymentStatus, &status, &e.RemainingSessions,
			&e.EnrolledAt, &e.CreatedAt, &e.UpdatedAt,
			&c.ID, &c.Name, &c.Description, &instructor, &c.MaxMembers, &c.CurrentMembers,
			&c.TotalSessions, &c.CurrentSession, &c.StartDate, &c.EndDate, &c.Price, &c.IsCancelled,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		e.Status = model.EnrollmentStatus(status)
		c.InstructorID = idPtr(instructor)
		c.StartDate, c.EndDate = c.StartDate.UTC(), c.EndDate.UTC()
		out = append(out, ewc)
	}
	return out, rows.Err()
}

// ListByClass returns every enrollment of the class.
func (r *EnrollmentRepo) ListByClass(ctx context.Context, classID uint64) ([]model.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+enrollmentColumns+" FROM class_enrollments e WHERE e.class_id = ? ORDER BY e.id", classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountActiveByClass counts enrollments with status active.
func (r *EnrollmentRepo) CountActiveByClass(ctx context.Context, classID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM class_enrollments WHERE class_id = ? AND status = ?",
		classID, string(model.EnrollmentActive)).Scan(&n)
	return n, err
}

// MarkPaid sets payment_status. It returns false when the enrollment no
// longer exists.
func (r *EnrollmentRepo) MarkPaid(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE class_enrollments SET payment_status = ?, updated_at = ? WHERE id = ?", true, nowUTC(), id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// DecrementRemaining consumes one session, floored at zero.
func (r *EnrollmentRepo) DecrementRemaining(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE class_enrollments
		 SET remaining_sessions = CASE WHEN remaining_sessions > 0 THEN remaining_sessions - 1 ELSE 0 END, updated_at = ?
		 WHERE id = ?`, nowUTC(), id)
	return err
}

// AppendAttendance adds an entry to the enrollment's attendance log.
func (r *EnrollmentRepo) AppendAttendance(ctx context.Context, enrollmentID uint64, a model.AttendanceEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO enrollment_attendance (enrollment_id, session_id, session_number, attended_at, note)
		 VALUES (?, ?, ?, ?, ?)`,
		enrollmentID, a.SessionID, a.SessionNumber, a.AttendedAt.UTC(), a.Note)
	return err
}

// ListAttendance returns the attendance log of an enrollment in session order.
func (r *EnrollmentRepo) ListAttendance(ctx context.Context, enrollmentID uint64) ([]model.AttendanceEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, session_number, attended_at, note FROM enrollment_attendance
		 WHERE enrollment_id = ? ORDER BY session_number`, enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AttendanceEntry
	for rows.Next() {
		var a model.AttendanceEntry
		if err := rows.Scan(&a.SessionID, &a.SessionNumber, &a.AttendedAt, &a.Note); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AddNote appends an audit note to the enrollment.
func (r *EnrollmentRepo) AddNote(ctx context.Context, enrollmentID uint64, note string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO enrollment_notes (enrollment_id, note, created_at) VALUES (?, ?, ?)",
		enrollmentID, note, at.UTC())
	return err
}

// Notes returns the audit notes of an enrollment, oldest first.
func (r *EnrollmentRepo) Notes(ctx context.Context, enrollmentID uint64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT note FROM enrollment_notes WHERE enrollment_id = ? ORDER BY id", enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanEnrollment(s rowScanner) (model.Enrollment, error) {
	var e model.Enrollment
	var status string
	err := s.Scan(&e.ID, &e.UserID, &e.ClassID, &e.PaymentStatus, &status, &e.RemainingSessions,
		&e.EnrolledAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return model.Enrollment{}, err
	}
	e.Status = model.EnrollmentStatus(status)
	return e, nil
}
