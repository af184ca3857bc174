package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/gym-management/internal/model"
)

// PaymentRepo persists payments and the typed items each one covers.
type PaymentRepo struct{ db DBTX }

const paymentColumns = `id, reference, user_id, amount, method, status, payment_type, completed_at,
	rejection_reason, created_at, updated_at`

// Create inserts the payment and its items and assigns p.ID.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	now := nowUTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (reference, user_id, amount, method, status, payment_type, completed_at,
		                       rejection_reason, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, NULL, '', ?, ?)`,
		p.Reference, p.UserID, p.Amount, p.Method, string(p.Status), p.PaymentType, now, now)
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
	p.ID = uint64(id)
	p.CreatedAt, p.UpdatedAt = now, now
	return r.AddItems(ctx, p.ID, p.Items)
}

// AddItems attaches items to the payment. Items already attached are
// skipped, so the stored set is always a union.
func (r *PaymentRepo) AddItems(ctx context.Context, paymentID uint64, items []model.PaymentItem) error {
	existing, err := r.Items(ctx, paymentID)
	if err != nil {
		return err
	}
	have := make(map[model.PaymentItem]struct{}, len(existing))
	for _, it := range existing {
		have[it] = struct{}{}
	}
	for _, it := range items {
		if _, ok := have[it]; ok {
			continue
		}
		if _, err := r.db.ExecContext(ctx,
			"INSERT INTO payment_items (payment_id, kind, ref_id) VALUES (?, ?, ?)",
			paymentID, string(it.Kind), it.ID); err != nil {
			return err
		}
		have[it] = struct{}{}
	}
	return nil
}

// Items returns the payment's items in insertion order.
func (r *PaymentRepo) Items(ctx context.Context, paymentID uint64) ([]model.PaymentItem, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT kind, ref_id FROM payment_items WHERE payment_id = ? ORDER BY id", paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PaymentItem
	for rows.Next() {
		var (
			kind string
			it   model.PaymentItem
		)
		if err := rows.Scan(&kind, &it.ID); err != nil {
			return nil, err
		}
		it.Kind = model.ItemKind(kind)
		out = append(out, it)
	}
	return out, rows.Err()
}

// GetByID returns the payment with its items, or ErrNotFound.
func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (model.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, "SELECT "+paymentColumns+" FROM payments WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Payment{}, ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	p.Items, err = r.Items(ctx, id)
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

// ListByUser returns the user's payments, newest first, items included.
func (r *PaymentRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Payment, error) {
	return r.list(ctx, "SELECT "+paymentColumns+" FROM payments WHERE user_id = ? ORDER BY id DESC", userID)
}

// ListByStatus returns payments with the given status, or all of them
// when status is empty.
func (r *PaymentRepo) ListByStatus(ctx context.Context, status model.PaymentStatus) ([]model.Payment, error) {
	if status == "" {
		return r.list(ctx, "SELECT "+paymentColumns+" FROM payments ORDER BY id DESC")
	}
	return r.list(ctx, "SELECT "+paymentColumns+" FROM payments WHERE status = ? ORDER BY id DESC", string(status))
}

func (r *PaymentRepo) list(ctx context.Context, q string, args ...any) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var out []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// release the cursor before loading items on the same connection
	rows.Close()
	for i := range out {
		items, err := r.Items(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

// Transition moves the payment from `from` to `to`. completedAt and reason
// are stored alongside. It returns false when the row is missing or is
// no longer in `from`, which callers report as a conflict.
func (r *PaymentRepo) Transition(ctx context.Context, id uint64, from, to model.PaymentStatus, completedAt *time.Time, reason string) (bool, error) {
	var completed any
	if completedAt != nil {
		completed = completedAt.UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = ?, completed_at = ?, rejection_reason = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(to), completed, reason, nowUTC(), id, string(from))
	if err != nil {
		return false, err
	}
	return affected(res)
}

// UpdateDetails changes amount and payment type of a pending payment.
func (r *PaymentRepo) UpdateDetails(ctx context.Context, id uint64, amount int64, paymentType string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET amount = ?, payment_type = ?, updated_at = ? WHERE id = ? AND status = ?`,
		amount, paymentType, nowUTC(), id, string(model.PaymentPending))
	if err != nil {
		return false, err
	}
	return affected(res)
}

// Delete removes the payment; its items cascade.
func (r *PaymentRepo) Delete(ctx context.Context, id uint64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM payment_items WHERE payment_id = ?", id); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
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

func scanPayment(s rowScanner) (model.Payment, error) {
	var (
		p         model.Payment
		status    string
		completed sql.NullTime
	)
	err := s.Scan(&p.ID, &p.Reference, &p.UserID, &p.Amount, &p.Method, &status, &p.PaymentType, &completed,
		&p.RejectionReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Payment{}, err
	}
	p.Status = model.PaymentStatus(status)
	p.CompletedAt = timePtr(completed)
	return p, nil
}
