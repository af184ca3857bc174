package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/gym-management/internal/model"
)

// MembershipRepo persists membership cards.
type MembershipRepo struct{ db DBTX }

const membershipColumns = `id, user_id, type, price, start_date, end_date, status, payment_status,
	pending_payment_id, upgraded_from_id, status_note, created_at, updated_at`

// Create inserts m and assigns m.ID. Inserting a second active membership
// for the same user yields ErrDuplicate.
func (r *MembershipRepo) Create(ctx context.Context, m *model.Membership) error {
	now := nowUTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (user_id, type, price, start_date, end_date, status, payment_status,
		                          pending_payment_id, upgraded_from_id, status_note, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.UserID, m.Type, m.Price, m.StartDate.UTC(), m.EndDate.UTC(), string(m.Status), m.PaymentStatus,
		nullableID(m.PendingPaymentID), nullableID(m.UpgradedFromID), m.StatusNote, now, now)
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
	m.ID = uint64(id)
	m.CreatedAt, m.UpdatedAt = now, now
	return nil
}

// GetByID returns the membership or ErrNotFound.
func (r *MembershipRepo) GetByID(ctx context.Context, id uint64) (model.Membership, error) {
	return r.get(ctx, "SELECT "+membershipColumns+" FROM memberships WHERE id = ?", id)
}

// GetActiveForUser returns the user's membership in status active or
// ErrNotFound. It does not look at end_date; callers compare it with their
// own clock.
func (r *MembershipRepo) GetActiveForUser(ctx context.Context, userID uint64) (model.Membership, error) {
	return r.get(ctx, "SELECT "+membershipColumns+" FROM memberships WHERE user_id = ? AND status = ? LIMIT 1",
		userID, string(model.MembershipActive))
}

func (r *MembershipRepo) get(ctx context.Context, q string, args ...any) (model.Membership, error) {
	m, err := scanMembership(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Membership{}, ErrNotFound
	}
	return m, err
}

// ListByUser returns the user's memberships, newest first.
func (r *MembershipRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Membership, error) {
	return r.list(ctx, "SELECT "+membershipColumns+" FROM memberships WHERE user_id = ? ORDER BY id DESC", userID)
}

// ListByStatus returns all memberships with the given status, or every
// membership when status is empty.
func (r *MembershipRepo) ListByStatus(ctx context.Context, status model.MembershipStatus) ([]model.Membership, error) {
	if status == "" {
		return r.list(ctx, "SELECT "+membershipColumns+" FROM memberships ORDER BY id DESC")
	}
	return r.list(ctx, "SELECT "+membershipColumns+" FROM memberships WHERE status = ? ORDER BY id DESC", string(status))
}

func (r *MembershipRepo) list(ctx context.Context, q string, args ...any) ([]model.Membership, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Update writes the mutable fields of m.
func (r *MembershipRepo) Update(ctx context.Context, m model.Membership) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE memberships SET type = ?, price = ?, start_date = ?, end_date = ?, status = ?, status_note = ?, updated_at = ?
		 WHERE id = ?`,
		m.Type, m.Price, m.StartDate.UTC(), m.EndDate.UTC(), string(m.Status), m.StatusNote, nowUTC(), m.ID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return ErrNotFound
	}
	return nil
}

// TransitionStatus moves the membership from one status to another and
// stores note. It returns false when the row is missing or not in from.
func (r *MembershipRepo) TransitionStatus(ctx context.Context, id uint64, from, to model.MembershipStatus, note string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE memberships SET status = ?, status_note = ?, pending_payment_id = NULL, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(to), note, nowUTC(), id, string(from))
	if err != nil {
		if isDuplicateKey(err) {
			return false, ErrDuplicate
		}
		return false, err
	}
	return affected(res)
}

// SetPendingPayment records the payment currently covering the membership.
func (r *MembershipRepo) SetPendingPayment(ctx context.Context, id, paymentID uint64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE memberships SET pending_payment_id = ?, updated_at = ? WHERE id = ?", paymentID, nowUTC(), id)
	return err
}

// MarkPaid flags the membership as paid and promotes a pending_payment
// membership to active. It returns false when the membership no longer
// exists or has left pending_payment and active, and ErrDuplicate when the
// user already holds another active membership.
func (r *MembershipRepo) MarkPaid(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE memberships
		 SET payment_status = ?,
		     status = CASE WHEN status = ? THEN ? ELSE status END,
		     pending_payment_id = NULL,
		     updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		true, string(model.MembershipPendingPayment), string(model.MembershipActive), nowUTC(), id,
		string(model.MembershipPendingPayment), string(model.MembershipActive))
	if err != nil {
		if isDuplicateKey(err) {
			return false, ErrDuplicate
		}
		return false, err
	}
	return affected(res)
}

// ExpireIfEnded moves an active membership whose end date is before now
// to expired. It returns whether the row changed.
func (r *MembershipRepo) ExpireIfEnded(ctx context.Context, m model.Membership, now time.Time) (bool, error) {
	if m.Status != model.MembershipActive || !m.EndDate.Before(now) {
		return false, nil
	}
	return r.TransitionStatus(ctx, m.ID, model.MembershipActive, model.MembershipExpired, "membership period ended")
}

// Delete removes the membership row.
func (r *MembershipRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM memberships WHERE id = ?", id)
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

func scanMembership(s rowScanner) (model.Membership, error) {
	var (
		m               model.Membership
		status          string
		pending, parent sql.NullInt64
	)
	err := s.Scan(&m.ID, &m.UserID, &m.Type, &m.Price, &m.StartDate, &m.EndDate, &status, &m.PaymentStatus,
		&pending, &parent, &m.StatusNote, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return model.Membership{}, err
	}
	m.Status = model.MembershipStatus(status)
	m.PendingPaymentID = idPtr(pending)
	m.UpgradedFromID = idPtr(parent)
	m.StartDate, m.EndDate = m.StartDate.UTC(), m.EndDate.UTC()
	return m, nil
}
