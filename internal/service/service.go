// Package service implements the gym's business operations: class
// enrollment, attendance, membership lifecycle and payment
// reconciliation. Every operation that touches more than one row runs
// inside a single repository transaction.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/queue"
	"github.com/iliyamo/gym-management/internal/repository"
)

// Logger is the logging surface the services need. *log.Logger from
// github.com/labstack/gommon satisfies it.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Events publishes domain events after a transaction commits. Publishing
// is best effort: failures are logged and never undo the operation.
type Events interface {
	PublishPayment(ctx context.Context, ev queue.PaymentEvent) error
	PublishEnrollment(ctx context.Context, ev queue.EnrollmentEvent) error
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID uint64
	Admin  bool
}

// Owns reports whether the actor may act on a resource owned by userID.
func (a Actor) Owns(userID uint64) bool { return a.Admin || a.UserID == userID }

// Deps are shared by every service.
type Deps struct {
	Store  *repository.Store
	Log    Logger
	Events Events
	Now    func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d Deps) logger() Logger {
	if d.Log == nil {
		return nopLogger{}
	}
	return d.Log
}

func (d Deps) publishPayment(ctx context.Context, p model.Payment, kind string, updated, failed int) {
	if d.Events == nil {
		return
	}
	ev := queue.PaymentEvent{
		Type:         kind,
		PaymentID:    p.ID,
		Reference:    p.Reference,
		UserID:       p.UserID,
		Amount:       p.Amount,
		Method:       p.Method,
		Status:       string(p.Status),
		Reason:       p.RejectionReason,
		ItemCount:    len(p.Items),
		UpdatedCount: updated,
		FailedCount:  failed,
		OccurredAt:   d.now().Format(time.RFC3339),
	}
	if err := d.Events.PublishPayment(ctx, ev); err != nil {
		d.logger().Warnf("publish %s for payment %d: %v", kind, p.ID, err)
	}
}

func (d Deps) publishEnrollment(ctx context.Context, e model.Enrollment, kind string) {
	if d.Events == nil {
		return
	}
	ev := queue.EnrollmentEvent{
		Type:         kind,
		EnrollmentID: e.ID,
		UserID:       e.UserID,
		ClassID:      e.ClassID,
		OccurredAt:   d.now().Format(time.RFC3339),
	}
	if err := d.Events.PublishEnrollment(ctx, ev); err != nil {
		d.logger().Warnf("publish %s for enrollment %d: %v", kind, e.ID, err)
	}
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
