package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
)

// Event types published for payments.
const (
	EventPaymentCreated   = "payment.created"
	EventPaymentCompleted = "payment.completed"
	EventPaymentRejected  = "payment.rejected"
	EventPaymentCancelled = "payment.cancelled"
)

// ApprovalMode decides what Approve does with items it cannot settle.
type ApprovalMode string

const (
	// BestEffort completes the payment and reports the failed items.
	BestEffort ApprovalMode = "best_effort"
	// Strict aborts the approval when any item cannot be settled.
	Strict ApprovalMode = "strict"
)

// ParseApprovalMode maps a config value to a mode. Empty means BestEffort.
func ParseApprovalMode(v string) (ApprovalMode, error) {
	switch ApprovalMode(strings.ToLower(strings.TrimSpace(v))) {
	case "", BestEffort:
		return BestEffort, nil
	case Strict:
		return Strict, nil
	}
	return "", fmt.Errorf("unknown payment approval mode %q", v)
}

// PaymentService records payments and reconciles the enrollments and
// memberships they cover.
type PaymentService struct {
	Deps
	Mode ApprovalMode
}

// NewPaymentService returns a PaymentService backed by deps.
func NewPaymentService(deps Deps, mode ApprovalMode) *PaymentService {
	if mode == "" {
		mode = BestEffort
	}
	return &PaymentService{Deps: deps, Mode: mode}
}

// PaymentInput carries the fields of a new payment.
type PaymentInput struct {
	UserID      uint64
	Amount      int64
	Method      string
	Items       []model.PaymentItem
	PaymentType string
}

// PaymentPatch changes a pending payment. Items are merged into the
// existing set; nil fields are left alone.
type PaymentPatch struct {
	Items       []model.PaymentItem
	Amount      *int64
	PaymentType *string
}

// Reconciliation is the outcome of settling or withdrawing a payment.
type Reconciliation struct {
	Payment      model.Payment       `json:"payment"`
	UpdatedCount int                 `json:"updated_count"`
	FailedCount  int                 `json:"failed_count"`
	FailedItems  []model.PaymentItem `json:"failed_items,omitempty"`
}

// InvalidItem is an item that failed verification.
type InvalidItem struct {
	model.PaymentItem
	Reason string `json:"reason"`
}

// Verification lists which items of a payment still resolve to a target
// owned by the payer.
type Verification struct {
	PaymentID uint64              `json:"payment_id"`
	Valid     []model.PaymentItem `json:"valid"`
	Invalid   []InvalidItem       `json:"invalid"`
}

// OK reports whether every item verified.
func (v Verification) OK() bool { return len(v.Invalid) == 0 }

// PaymentLine is one rendered item of a payment.
type PaymentLine struct {
	Kind        model.ItemKind       `json:"kind"`
	ID          uint64               `json:"id"`
	Description string               `json:"description"`
	Status      string               `json:"status"`
	Schedule    []model.ScheduleSlot `json:"schedule,omitempty"`
}

// PaymentDetails is a payment with its items rendered for display.
type PaymentDetails struct {
	model.Payment
	Lines []PaymentLine `json:"lines"`
}

// target is the row a payment item points at.
type target struct {
	item       model.PaymentItem
	enrollment *model.Enrollment
	membership *model.Membership
}

func (t target) ownerID() uint64 {
	if t.enrollment != nil {
		return t.enrollment.UserID
	}
	if t.membership != nil {
		return t.membership.UserID
	}
	return 0
}

// resolve looks up the row behind it. It returns repository.ErrNotFound
// when the target no longer exists.
func resolve(ctx context.Context, st *repository.Store, it model.PaymentItem) (target, error) {
	t := target{item: it}
	switch it.Kind {
	case model.ItemEnrollment:
		e, err := st.Enrollments.GetByID(ctx, it.ID)
		if err != nil {
			return t, err
		}
		t.enrollment = &e
	case model.ItemMembership:
		m, err := st.Memberships.GetByID(ctx, it.ID)
		if err != nil {
			return t, err
		}
		t.membership = &m
	default:
		return t, repository.ErrNotFound
	}
	return t, nil
}

func validateItems(items []model.PaymentItem) ([]model.PaymentItem, error) {
	for _, it := range items {
		if !it.Kind.Valid() {
			return nil, validationf("unknown item kind %q", it.Kind)
		}
		if it.ID == 0 {
			return nil, validationf("item id is required")
		}
	}
	return model.MergeItems(nil, items), nil
}

func defaultPaymentType(items []model.PaymentItem) string {
	var enr, mem bool
	for _, it := range items {
		switch it.Kind {
		case model.ItemEnrollment:
			enr = true
		case model.ItemMembership:
			mem = true
		}
	}
	switch {
	case enr && mem:
		return "mixed"
	case mem:
		return string(model.ItemMembership)
	default:
		return string(model.ItemEnrollment)
	}
}

// attach checks that every item resolves to a row owned by userID and
// links the membership ones to the payment.
func attach(ctx context.Context, tx *repository.Store, userID, paymentID uint64, items []model.PaymentItem) error {
	for _, it := range items {
		t, err := resolve(ctx, tx, it)
		if errors.Is(err, repository.ErrNotFound) {
			return unknownRef("%s %d does not exist", it.Kind, it.ID)
		}
		if err != nil {
			return fmt.Errorf("resolve %s %d: %w", it.Kind, it.ID, err)
		}
		if t.ownerID() != userID {
			return forbiddenf("%s %d belongs to another user", it.Kind, it.ID)
		}
		if t.membership != nil {
			if err := claimable(ctx, tx, *t.membership, paymentID); err != nil {
				return err
			}
			if err := tx.Memberships.SetPendingPayment(ctx, it.ID, paymentID); err != nil {
				return fmt.Errorf("link membership %d: %w", it.ID, err)
			}
		}
	}
	return nil
}

// claimable reports a Conflict unless m still awaits payment and is not
// covered by another pending payment.
func claimable(ctx context.Context, tx *repository.Store, m model.Membership, paymentID uint64) error {
	if m.PaymentStatus {
		return conflictf("membership %d is already paid", m.ID)
	}
	if m.Status != model.MembershipPendingPayment && m.Status != model.MembershipActive {
		return conflictf("membership %d is %s", m.ID, m.Status)
	}
	if m.PendingPaymentID == nil || *m.PendingPaymentID == paymentID {
		return nil
	}
	other, err := tx.Payments.GetByID(ctx, *m.PendingPaymentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load payment %d: %w", *m.PendingPaymentID, err)
	}
	if other.Status == model.PaymentPending {
		return conflictf("membership %d is already covered by pending payment %s", m.ID, other.Reference)
	}
	return nil
}

// Create records a pending payment for the user's own enrollments and
// memberships.
func (s *PaymentService) Create(ctx context.Context, in PaymentInput) (model.Payment, error) {
	if in.UserID == 0 {
		return model.Payment{}, validationf("user id is required")
	}
	if in.Amount <= 0 {
		return model.Payment{}, validationf("amount must be positive")
	}
	if len(in.Items) == 0 {
		return model.Payment{}, validationf("at least one item is required")
	}
	if in.Method == "" {
		in.Method = model.MethodCash
	}
	if !model.ValidPaymentMethod(in.Method) {
		return model.Payment{}, validationf("unknown payment method %q", in.Method)
	}
	items, err := validateItems(in.Items)
	if err != nil {
		return model.Payment{}, err
	}
	if in.PaymentType == "" {
		in.PaymentType = defaultPaymentType(items)
	}
	p := model.Payment{
		Reference:   uuid.NewString(),
		UserID:      in.UserID,
		Amount:      in.Amount,
		Method:      in.Method,
		Status:      model.PaymentPending,
		PaymentType: in.PaymentType,
		Items:       items,
	}
	err = s.Store.WithTx(ctx, func(tx *repository.Store) error {
		if err := tx.Payments.Create(ctx, &p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return attach(ctx, tx, in.UserID, p.ID, items)
	})
	if err != nil {
		return model.Payment{}, err
	}
	s.logger().Infof("payment %d (%s) created by user %d for %d items", p.ID, p.Reference, p.UserID, len(p.Items))
	s.publishPayment(ctx, p, EventPaymentCreated, 0, 0)
	return p, nil
}

// Approve completes a pending payment and marks everything it covers as
// paid. Items that no longer resolve are counted as failed; in Strict
// mode any failure aborts the whole approval.
func (s *PaymentService) Approve(ctx context.Context, paymentID uint64) (Reconciliation, error) {
	var res Reconciliation
	err := s.Store.WithTx(ctx, func(tx *repository.Store) error {
		p, err := loadPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != model.PaymentPending {
			return conflictf("payment is already %s", p.Status)
		}
		v, err := verify(ctx, tx, p)
		if err != nil {
			return err
		}
		invalid := make(map[model.PaymentItem]bool, len(v.Invalid))
		for _, bad := range v.Invalid {
			s.logger().Warnf("payment %d: %s %d: %s", p.ID, bad.Kind, bad.ID, bad.Reason)
			invalid[bad.PaymentItem] = true
		}
		if s.Mode == Strict && !v.OK() {
			return unknownRef("payment %d references %d unresolvable items", p.ID, len(v.Invalid))
		}
		now := s.now()
		ok, err := tx.Payments.Transition(ctx, p.ID, model.PaymentPending, model.PaymentCompleted, &now, "")
		if err != nil {
			return fmt.Errorf("complete payment: %w", err)
		}
		if !ok {
			return conflictf("payment changed concurrently")
		}
		for _, it := range p.Items {
			settled := false
			if !invalid[it] {
				if settled, err = s.settle(ctx, tx, p.ID, it); err != nil {
					return err
				}
			}
			if settled {
				res.UpdatedCount++
				continue
			}
			res.FailedCount++
			res.FailedItems = append(res.FailedItems, it)
		}
		if s.Mode == Strict && res.FailedCount > 0 {
			return unknownRef("payment %d: %d items could not be settled", p.ID, res.FailedCount)
		}
		res.Payment, err = loadPayment(ctx, tx, p.ID)
		return err
	})
	if err != nil {
		return Reconciliation{}, err
	}
	s.logger().Infof("payment %d approved: %d updated, %d failed", paymentID, res.UpdatedCount, res.FailedCount)
	s.publishPayment(ctx, res.Payment, EventPaymentCompleted, res.UpdatedCount, res.FailedCount)
	return res, nil
}

// settle marks one item paid. It reports false when the item cannot be
// settled by this payment.
func (s *PaymentService) settle(ctx context.Context, tx *repository.Store, paymentID uint64, it model.PaymentItem) (bool, error) {
	switch it.Kind {
	case model.ItemEnrollment:
		ok, err := tx.Enrollments.MarkPaid(ctx, it.ID)
		if err != nil {
			return false, fmt.Errorf("mark enrollment %d paid: %w", it.ID, err)
		}
		return ok, nil
	case model.ItemMembership:
		m, err := tx.Memberships.GetByID(ctx, it.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("load membership %d: %w", it.ID, err)
		}
		if m.PendingPaymentID != nil && *m.PendingPaymentID != paymentID {
			s.logger().Warnf("membership %d not activated: linked to payment %d", it.ID, *m.PendingPaymentID)
			return false, nil
		}
		if _, err := currentMembership(ctx, tx, m.UserID, s.now()); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return false, err
		}
		ok, err := tx.Memberships.MarkPaid(ctx, it.ID)
		if errors.Is(err, repository.ErrDuplicate) {
			s.logger().Warnf("membership %d not activated: user already has an active membership", it.ID)
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("mark membership %d paid: %w", it.ID, err)
		}
		return ok, nil
	}
	return false, nil
}

// Reject refuses a pending payment. Memberships waiting on it are
// cancelled and enrollments it covered get an audit note.
func (s *PaymentService) Reject(ctx context.Context, paymentID uint64, reason string) (Reconciliation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "rejected by admin"
	}
	res, err := s.withdraw(ctx, paymentID, nil, "payment rejected: "+reason, reason)
	if err != nil {
		return Reconciliation{}, err
	}
	s.logger().Infof("payment %d rejected: %s", paymentID, reason)
	s.publishPayment(ctx, res.Payment, EventPaymentRejected, res.UpdatedCount, res.FailedCount)
	return res, nil
}

// Cancel withdraws a pending payment on behalf of its owner or an admin.
func (s *PaymentService) Cancel(ctx context.Context, actor Actor, paymentID uint64) (Reconciliation, error) {
	res, err := s.withdraw(ctx, paymentID, &actor, "payment cancelled", "cancelled by user")
	if err != nil {
		return Reconciliation{}, err
	}
	s.logger().Infof("payment %d cancelled by user %d", paymentID, actor.UserID)
	s.publishPayment(ctx, res.Payment, EventPaymentCancelled, res.UpdatedCount, res.FailedCount)
	return res, nil
}

func (s *PaymentService) withdraw(ctx context.Context, paymentID uint64, actor *Actor, note, reason string) (Reconciliation, error) {
	var res Reconciliation
	err := s.Store.WithTx(ctx, func(tx *repository.Store) error {
		p, err := loadPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if actor != nil && !actor.Owns(p.UserID) {
			return forbiddenf("not allowed to cancel this payment")
		}
		if p.Status != model.PaymentPending {
			return conflictf("payment is already %s", p.Status)
		}
		ok, err := tx.Payments.Transition(ctx, p.ID, model.PaymentPending, model.PaymentCancelled, nil, reason)
		if err != nil {
			return fmt.Errorf("cancel payment: %w", err)
		}
		if !ok {
			return conflictf("payment changed concurrently")
		}
		now := s.now()
		for _, it := range p.Items {
			t, err := resolve(ctx, tx, it)
			if errors.Is(err, repository.ErrNotFound) {
				res.FailedCount++
				res.FailedItems = append(res.FailedItems, it)
				continue
			}
			if err != nil {
				return fmt.Errorf("resolve %s %d: %w", it.Kind, it.ID, err)
			}
			switch {
			case t.membership != nil:
				if id := t.membership.PendingPaymentID; id == nil || *id != p.ID {
					res.FailedCount++
					res.FailedItems = append(res.FailedItems, it)
					continue
				}
				changed, err := tx.Memberships.TransitionStatus(ctx, it.ID,
					model.MembershipPendingPayment, model.MembershipCancelled, note)
				if err != nil {
					return fmt.Errorf("cancel membership %d: %w", it.ID, err)
				}
				if changed {
					res.UpdatedCount++
				}
			case t.enrollment != nil:
				if err := tx.Enrollments.AddNote(ctx, it.ID, fmt.Sprintf("%s (payment %s)", note, p.Reference), now); err != nil {
					return fmt.Errorf("note enrollment %d: %w", it.ID, err)
				}
				res.UpdatedCount++
			}
		}
		res.Payment, err = loadPayment(ctx, tx, p.ID)
		return err
	})
	return res, err
}

// Update merges items into a pending payment and optionally changes its
// amount or type. Only the payer may update it.
func (s *PaymentService) Update(ctx context.Context, actor Actor, paymentID uint64, patch PaymentPatch) (model.Payment, error) {
	items, err := validateItems(patch.Items)
	if err != nil {
		return model.Payment{}, err
	}
	if patch.Amount != nil && *patch.Amount <= 0 {
		return model.Payment{}, validationf("amount must be positive")
	}
	var p model.Payment
	err = s.Store.WithTx(ctx, func(tx *repository.Store) error {
		var err error
		p, err = loadPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if p.UserID != actor.UserID {
			return forbiddenf("not allowed to update this payment")
		}
		if p.Status != model.PaymentPending {
			return conflictf("payment is already %s", p.Status)
		}
		var added []model.PaymentItem
		for _, it := range items {
			if !p.HasItem(it) {
				added = append(added, it)
			}
		}
		if err := attach(ctx, tx, p.UserID, p.ID, added); err != nil {
			return err
		}
		if err := tx.Payments.AddItems(ctx, p.ID, added); err != nil {
			return fmt.Errorf("add items: %w", err)
		}
		amount, ptype := p.Amount, p.PaymentType
		if patch.Amount != nil {
			amount = *patch.Amount
		}
		if patch.PaymentType != nil {
			ptype = *patch.PaymentType
		}
		if ok, err := tx.Payments.UpdateDetails(ctx, p.ID, amount, ptype); err != nil {
			return fmt.Errorf("update payment: %w", err)
		} else if !ok {
			return conflictf("payment changed concurrently")
		}
		p, err = loadPayment(ctx, tx, p.ID)
		return err
	})
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

// VerifyContents checks every item of the payment without changing state.
func (s *PaymentService) VerifyContents(ctx context.Context, paymentID uint64) (Verification, error) {
	p, err := loadPayment(ctx, s.Store, paymentID)
	if err != nil {
		return Verification{}, err
	}
	return verify(ctx, s.Store, p)
}

func verify(ctx context.Context, st *repository.Store, p model.Payment) (Verification, error) {
	v := Verification{PaymentID: p.ID, Valid: []model.PaymentItem{}, Invalid: []InvalidItem{}}
	for _, it := range p.Items {
		t, err := resolve(ctx, st, it)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			v.Invalid = append(v.Invalid, InvalidItem{PaymentItem: it, Reason: "not found"})
		case err != nil:
			return Verification{}, fmt.Errorf("resolve %s %d: %w", it.Kind, it.ID, err)
		case t.ownerID() != p.UserID:
			v.Invalid = append(v.Invalid, InvalidItem{PaymentItem: it, Reason: "belongs to another user"})
		default:
			v.Valid = append(v.Valid, it)
		}
	}
	return v, nil
}

// GetDetails returns the payment with each item rendered as a class or
// membership line.
func (s *PaymentService) GetDetails(ctx context.Context, actor Actor, paymentID uint64) (PaymentDetails, error) {
	p, err := loadPayment(ctx, s.Store, paymentID)
	if err != nil {
		return PaymentDetails{}, err
	}
	if !actor.Owns(p.UserID) {
		return PaymentDetails{}, forbiddenf("not allowed to view this payment")
	}
	now := s.now()
	d := PaymentDetails{Payment: p, Lines: make([]PaymentLine, 0, len(p.Items))}
	for _, it := range p.Items {
		line := PaymentLine{Kind: it.Kind, ID: it.ID, Description: "unknown", Status: "unknown"}
		t, err := resolve(ctx, s.Store, it)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return PaymentDetails{}, fmt.Errorf("resolve %s %d: %w", it.Kind, it.ID, err)
		}
		switch {
		case t.enrollment != nil:
			c, err := s.Store.Classes.GetByID(ctx, t.enrollment.ClassID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return PaymentDetails{}, fmt.Errorf("load class: %w", err)
			}
			if err == nil {
				line.Description = fmt.Sprintf("%s (session %d/%d)", c.Name, c.CurrentSession, c.TotalSessions)
				line.Status = string(c.Status(now))
				line.Schedule = c.Schedule
			}
		case t.membership != nil:
			m := t.membership
			line.Description = fmt.Sprintf("%s (%s to %s)", model.MembershipTierName(m.Type),
				m.StartDate.Format("2006-01-02"), m.EndDate.Format("2006-01-02"))
			line.Status = string(m.Status)
		}
		d.Lines = append(d.Lines, line)
	}
	return d, nil
}

// Get returns the payment if the actor may see it.
func (s *PaymentService) Get(ctx context.Context, actor Actor, paymentID uint64) (model.Payment, error) {
	p, err := loadPayment(ctx, s.Store, paymentID)
	if err != nil {
		return model.Payment{}, err
	}
	if !actor.Owns(p.UserID) {
		return model.Payment{}, forbiddenf("not allowed to view this payment")
	}
	return p, nil
}

// Delete permanently removes a cancelled payment.
func (s *PaymentService) Delete(ctx context.Context, paymentID uint64) error {
	return s.Store.WithTx(ctx, func(tx *repository.Store) error {
		p, err := loadPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != model.PaymentCancelled {
			return conflictf("only cancelled payments can be deleted")
		}
		if err := tx.Payments.Delete(ctx, p.ID); err != nil {
			return fmt.Errorf("delete payment: %w", err)
		}
		return nil
	})
}

// ListForUser returns the user's payments, newest first.
func (s *PaymentService) ListForUser(ctx context.Context, userID uint64) ([]model.Payment, error) {
	out, err := s.Store.Payments.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return out, nil
}

// ListAll returns payments, optionally filtered by status.
func (s *PaymentService) ListAll(ctx context.Context, status model.PaymentStatus) ([]model.Payment, error) {
	if status != "" && !status.Valid() {
		return nil, validationf("unknown payment status %q", status)
	}
	out, err := s.Store.Payments.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return out, nil
}

func loadPayment(ctx context.Context, st *repository.Store, id uint64) (model.Payment, error) {
	p, err := st.Payments.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Payment{}, notFoundf("payment not found")
	}
	if err != nil {
		return model.Payment{}, fmt.Errorf("load payment: %w", err)
	}
	return p, nil
}
