package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
)

// MembershipService drives the membership card lifecycle:
//
//	pending_payment -> active -> expired
//	        |            |  \
//	        v            v   upgraded (replaced by a new pending_payment card)
//	    cancelled    cancelled
//
// Activation happens when a payment covering the card is approved.
type MembershipService struct{ Deps }

// NewMembershipService returns a MembershipService backed by deps.
func NewMembershipService(deps Deps) *MembershipService { return &MembershipService{Deps: deps} }

// MembershipInput carries the fields of a new membership. StartDate
// defaults to now.
type MembershipInput struct {
	UserID    uint64
	Type      string
	StartDate time.Time
	EndDate   time.Time
	Price     int64
}

// UpgradeInput describes the card replacing an active membership.
type UpgradeInput struct {
	Type    string
	EndDate time.Time
	Price   int64
}

// MembershipPatch is a partial admin update. Nil fields are left alone.
type MembershipPatch struct {
	Type       *string
	StartDate  *time.Time
	EndDate    *time.Time
	Price      *int64
	Status     *model.MembershipStatus
	StatusNote *string
}

var membershipTransitions = map[model.MembershipStatus][]model.MembershipStatus{
	model.MembershipPendingPayment: {model.MembershipActive, model.MembershipCancelled},
	model.MembershipActive:         {model.MembershipExpired, model.MembershipCancelled},
}

func canTransition(from, to model.MembershipStatus) bool {
	if from == to {
		return true
	}
	for _, s := range membershipTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func normaliseType(t string) string { return strings.ToLower(strings.TrimSpace(t)) }

func validateTerms(typ string, start, end time.Time, price int64) error {
	switch {
	case typ == "":
		return validationf("type is required")
	case !model.ValidMembershipType(typ):
		return validationf("unknown membership type %q", typ)
	case end.IsZero():
		return validationf("end_date is required")
	case !end.After(start):
		return validationf("end_date must be after start_date")
	case price < 0:
		return validationf("price must not be negative")
	}
	return nil
}

// Create registers a new membership awaiting payment.
func (s *MembershipService) Create(ctx context.Context, in MembershipInput) (model.Membership, error) {
	if in.UserID == 0 {
		return model.Membership{}, validationf("user id is malformed")
	}
	in.Type = normaliseType(in.Type)
	if in.StartDate.IsZero() {
		in.StartDate = s.now()
	}
	if err := validateTerms(in.Type, in.StartDate, in.EndDate, in.Price); err != nil {
		return model.Membership{}, err
	}
	m := model.Membership{
		UserID:    in.UserID,
		Type:      in.Type,
		Price:     in.Price,
		StartDate: in.StartDate.UTC(),
		EndDate:   in.EndDate.UTC(),
		Status:    model.MembershipPendingPayment,
	}
	err := s.Store.WithTx(ctx, func(tx *repository.Store) error {
		if _, err := tx.Users.GetByID(ctx, in.UserID); errors.Is(err, repository.ErrNotFound) {
			return notFoundf("user not found")
		} else if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if _, err := currentMembership(ctx, tx, in.UserID, s.now()); err == nil {
			return conflictf("user already has an active membership")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("check active membership: %w", err)
		}
		if err := tx.Memberships.Create(ctx, &m); err != nil {
			return fmt.Errorf("create membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Membership{}, err
	}
	s.logger().Infof("membership %d (%s) created for user %d", m.ID, m.Type, m.UserID)
	return m, nil
}

// Upgrade retires an active membership and opens its replacement, which
// waits for payment like any new card. The retired card is not restored
// if the replacement is later cancelled.
func (s *MembershipService) Upgrade(ctx context.Context, actor Actor, currentID uint64, in UpgradeInput) (model.Membership, error) {
	in.Type = normaliseType(in.Type)
	start := s.now()
	if err := validateTerms(in.Type, start, in.EndDate, in.Price); err != nil {
		return model.Membership{}, err
	}
	var next model.Membership
	err := s.Store.WithTx(ctx, func(tx *repository.Store) error {
		cur, err := tx.Memberships.GetByID(ctx, currentID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundf("membership not found")
		}
		if err != nil {
			return fmt.Errorf("load membership: %w", err)
		}
		if !actor.Owns(cur.UserID) {
			return forbiddenf("not allowed to upgrade this membership")
		}
		if cur.Status != model.MembershipActive {
			return conflictf("only an active membership can be upgraded")
		}
		if cur.EndDate.Before(start) {
			return conflictf("membership ended on %s", cur.EndDate.Format(time.DateOnly))
		}
		ok, err := tx.Memberships.TransitionStatus(ctx, cur.ID, model.MembershipActive, model.MembershipUpgraded,
			"upgraded to "+model.MembershipTierName(in.Type))
		if err != nil {
			return fmt.Errorf("retire membership: %w", err)
		}
		if !ok {
			return conflictf("membership changed concurrently")
		}
		parent := cur.ID
		next = model.Membership{
			UserID:         cur.UserID,
			Type:           in.Type,
			Price:          in.Price,
			StartDate:      start,
			EndDate:        in.EndDate.UTC(),
			Status:         model.MembershipPendingPayment,
			UpgradedFromID: &parent,
		}
		if err := tx.Memberships.Create(ctx, &next); err != nil {
			return fmt.Errorf("create membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Membership{}, err
	}
	s.logger().Infof("membership %d upgraded to %d (%s)", currentID, next.ID, next.Type)
	return next, nil
}

// Cancel moves the membership to cancelled.
func (s *MembershipService) Cancel(ctx context.Context, actor Actor, id uint64) (model.Membership, error) {
	var m model.Membership
	err := s.Store.WithTx(ctx, func(tx *repository.Store) error {
		var err error
		m, err = tx.Memberships.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundf("membership not found")
		}
		if err != nil {
			return fmt.Errorf("load membership: %w", err)
		}
		if !actor.Owns(m.UserID) {
			return forbiddenf("not allowed to cancel this membership")
		}
		if m.Status == model.MembershipCancelled || m.Status == model.MembershipUpgraded {
			return conflictf("membership is already %s", m.Status)
		}
		note := "cancelled by member"
		if actor.Admin && actor.UserID != m.UserID {
			note = "cancelled by admin"
		}
		ok, err := tx.Memberships.TransitionStatus(ctx, m.ID, m.Status, model.MembershipCancelled, note)
		if err != nil {
			return fmt.Errorf("cancel membership: %w", err)
		}
		if !ok {
			return conflictf("membership changed concurrently")
		}
		m, err = tx.Memberships.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return model.Membership{}, err
	}
	s.logger().Infof("membership %d cancelled", id)
	return m, nil
}

// Update applies an admin patch. Status changes must follow the lifecycle.
func (s *MembershipService) Update(ctx context.Context, id uint64, p MembershipPatch) (model.Membership, error) {
	var m model.Membership
	err := s.Store.WithTx(ctx, func(tx *repository.Store) error {
		var err error
		m, err = tx.Memberships.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundf("membership not found")
		}
		if err != nil {
			return fmt.Errorf("load membership: %w", err)
		}
		if p.Type != nil {
			m.Type = normaliseType(*p.Type)
		}
		if p.StartDate != nil {
			m.StartDate = p.StartDate.UTC()
		}
		if p.EndDate != nil {
			m.EndDate = p.EndDate.UTC()
		}
		if p.Price != nil {
			m.Price = *p.Price
		}
		if err := validateTerms(m.Type, m.StartDate, m.EndDate, m.Price); err != nil {
			return err
		}
		if p.Status != nil {
			if !p.Status.Valid() {
				return validationf("unknown membership status %q", *p.Status)
			}
			if !canTransition(m.Status, *p.Status) {
				return conflictf("cannot move membership from %s to %s", m.Status, *p.Status)
			}
			if *p.Status == model.MembershipActive && m.Status != model.MembershipActive {
				if _, err := currentMembership(ctx, tx, m.UserID, s.now()); err != nil && !errors.Is(err, repository.ErrNotFound) {
					return err
				}
			}
			m.Status = *p.Status
		}
		if p.StatusNote != nil {
			m.StatusNote = *p.StatusNote
		}
		if err := tx.Memberships.Update(ctx, m); errors.Is(err, repository.ErrDuplicate) {
			return conflictf("user already has an active membership")
		} else if err != nil {
			return fmt.Errorf("update membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Membership{}, err
	}
	return m, nil
}

// Get returns the membership if the actor may see it.
func (s *MembershipService) Get(ctx context.Context, actor Actor, id uint64) (model.Membership, error) {
	m, err := s.Store.Memberships.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Membership{}, notFoundf("membership not found")
	}
	if err != nil {
		return model.Membership{}, fmt.Errorf("load membership: %w", err)
	}
	if !actor.Owns(m.UserID) {
		return model.Membership{}, forbiddenf("not allowed to view this membership")
	}
	return m, nil
}

// ListForUser returns every membership the user ever held.
func (s *MembershipService) ListForUser(ctx context.Context, userID uint64) ([]model.Membership, error) {
	out, err := s.Store.Memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return out, nil
}

// ListAll returns memberships, optionally filtered by status.
func (s *MembershipService) ListAll(ctx context.Context, status model.MembershipStatus) ([]model.Membership, error) {
	if status != "" && !status.Valid() {
		return nil, validationf("unknown membership status %q", status)
	}
	out, err := s.Store.Memberships.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return out, nil
}

// Delete permanently removes a cancelled membership.
func (s *MembershipService) Delete(ctx context.Context, id uint64) error {
	return s.Store.WithTx(ctx, func(tx *repository.Store) error {
		m, err := tx.Memberships.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundf("membership not found")
		}
		if err != nil {
			return fmt.Errorf("load membership: %w", err)
		}
		if m.Status != model.MembershipCancelled {
			return conflictf("only cancelled memberships can be deleted")
		}
		if err := tx.Memberships.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete membership: %w", err)
		}
		return nil
	})
}

// Summary returns the user's active membership summary, or nil when the
// user has none. A card past its end date counts as none even before the
// expiry job has run.
func (s *MembershipService) Summary(ctx context.Context, userID uint64) (*model.MembershipSummary, error) {
	m, err := s.Store.Memberships.GetActiveForUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active membership: %w", err)
	}
	if m.EndDate.Before(s.now()) {
		return nil, nil
	}
	sum := m.Summary()
	return &sum, nil
}

// currentMembership returns the user's active membership. A card whose end
// date has passed is expired on the spot and reported as
// repository.ErrNotFound.
func currentMembership(ctx context.Context, tx *repository.Store, userID uint64, now time.Time) (model.Membership, error) {
	m, err := tx.Memberships.GetActiveForUser(ctx, userID)
	if err != nil {
		return model.Membership{}, err
	}
	expired, err := tx.Memberships.ExpireIfEnded(ctx, m, now)
	if err != nil {
		return model.Membership{}, fmt.Errorf("expire membership %d: %w", m.ID, err)
	}
	if expired {
		return model.Membership{}, repository.ErrNotFound
	}
	return m, nil
}

// ExpireDue moves every active membership whose end date has passed to
// expired and returns how many changed.
func (s *MembershipService) ExpireDue(ctx context.Context) (int, error) {
	active, err := s.Store.Memberships.ListByStatus(ctx, model.MembershipActive)
	if err != nil {
		return 0, fmt.Errorf("list active memberships: %w", err)
	}
	now := s.now()
	n := 0
	for _, m := range active {
		ok, err := s.Store.Memberships.ExpireIfEnded(ctx, m, now)
		if err != nil {
			return n, fmt.Errorf("expire membership %d: %w", m.ID, err)
		}
		if ok {
			n++
		}
	}
	if n > 0 {
		s.logger().Infof("expired %d memberships", n)
	}
	return n, nil
}
