package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/gym-management/internal/model"
)

// ClassRepo provides persistence for classes and their weekly schedule.
// The class status is never stored; only the sticky is_cancelled flag is.
type ClassRepo struct{ db DBTX }

const classColumns = `id, name, description, instructor_id, max_members, current_members, total_sessions,
	current_session, start_date, end_date, price, is_cancelled, created_at, updated_at`

// Create inserts c together with its schedule slots and assigns c.ID.
func (r *ClassRepo) Create(ctx context.Context, c *model.Class) error {
	now := nowUTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO classes (name, description, instructor_id, max_members, current_members, total_sessions,
		                      current_session, start_date, end_date, price, is_cancelled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, 0, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Description, nullableID(c.InstructorID), c.MaxMembers, c.TotalSessions,
		c.StartDate.UTC(), c.EndDate.UTC(), c.Price, false, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	c.CreatedAt, c.UpdatedAt = now, now
	for _, slot := range c.Schedule {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO class_schedules (class_id, weekday, start_time, end_time, room) VALUES (?, ?, ?, ?, ?)`,
			c.ID, slot.Weekday, slot.StartTime, slot.EndTime, slot.Room); err != nil {
			return err
		}
	}
	return nil
}

// GetByID returns the class with its schedule, or ErrNotFound.
func (r *ClassRepo) GetByID(ctx context.Context, id uint64) (model.Class, error) {
	c, err := scanClass(r.db.QueryRowContext(ctx, "SELECT "+classColumns+" FROM classes WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Class{}, ErrNotFound
	}
	if err != nil {
		return model.Class{}, err
	}
	slots, err := r.schedules(ctx, "WHERE class_id = ?", id)
	if err != nil {
		return model.Class{}, err
	}
	c.Schedule = slots[id]
	return c, nil
}

// List returns every class ordered by start date, schedules included.
func (r *ClassRepo) List(ctx context.Context) ([]model.Class, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+classColumns+" FROM classes ORDER BY start_date, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	slots, err := r.schedules(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Schedule = slots[out[i].ID]
	}
	return out, nil
}

func (r *ClassRepo) schedules(ctx context.Context, where string, args ...any) (map[uint64][]model.ScheduleSlot, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT class_id, weekday, start_time, end_time, room FROM class_schedules "+where+" ORDER BY class_id, weekday, start_time", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64][]model.ScheduleSlot)
	for rows.Next() {
		var classID uint64
		var s model.ScheduleSlot
		if err := rows.Scan(&classID, &s.Weekday, &s.StartTime, &s.EndTime, &s.Room); err != nil {
			return nil, err
		}
		out[classID] = append(out[classID], s)
	}
	return out, rows.Err()
}

// IncrementMembers takes one seat in the class. The capacity guard is part
// of the UPDATE itself, so two concurrent callers can never push
// current_members past max_members. It returns false when the class is full
// or does not exist.
func (r *ClassRepo) IncrementMembers(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE classes SET current_members = current_members + 1, updated_at = ?
		 WHERE id = ? AND current_members < max_members`, nowUTC(), id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// DecrementMembers releases one seat, never going below zero.
func (r *ClassRepo) DecrementMembers(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE classes
		 SET current_members = CASE WHEN current_members > 0 THEN current_members - 1 ELSE 0 END, updated_at = ?
		 WHERE id = ?`, nowUTC(), id)
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

// AdvanceSession raises current_session to n if it is lower.
func (r *ClassRepo) AdvanceSession(ctx context.Context, id uint64, n int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE classes
		 SET current_session = CASE WHEN current_session < ? THEN ? ELSE current_session END, updated_at = ?
		 WHERE id = ?`, n, n, nowUTC(), id)
	return err
}

// Cancel sets the sticky cancelled flag.
func (r *ClassRepo) Cancel(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE classes SET is_cancelled = ?, updated_at = ? WHERE id = ?`, true, nowUTC(), id)
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

func scanClass(s rowScanner) (model.Class, error) {
	var c model.Class
	var instructor sql.NullInt64
	err := s.Scan(&c.ID, &c.Name, &c.Description, &instructor, &c.MaxMembers, &c.CurrentMembers,
		&c.TotalSessions, &c.CurrentSession, &c.StartDate, &c.EndDate, &c.Price, &c.IsCancelled,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.Class{}, err
	}
	c.InstructorID = idPtr(instructor)
	c.StartDate, c.EndDate = c.StartDate.UTC(), c.EndDate.UTC()
	return c, nil
}
