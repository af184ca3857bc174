package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
)

// Event types published for enrollments.
const (
	EventEnrollmentCreated   = "enrollment.created"
	EventEnrollmentCancelled = "enrollment.cancelled"
)

// EnrollmentService enrolls members into classes and withdraws them.
type EnrollmentService struct{ Deps }

// NewEnrollmentService returns an EnrollmentService backed by deps.
func NewEnrollmentService(deps Deps) *EnrollmentService { return &EnrollmentService{Deps: deps} }

// Enroll takes a seat in the class for the user. The seat counter and the
// enrollment row change together or not at all.
func (s *EnrollmentService) Enroll(ctx context.Context, userID, classID uint64) (model.Enrollment, error) {
	if userID == 0 || classID == 0 {
		return model.Enrollment{}, validationf("user id and class id are required")
	}
	now := s.now()
	var e model.Enrollment
	err := s.Store.WithTx(ctx, func(tx *repository.Store) error {
		if _, err := tx.Users.GetByID(ctx, userID); errors.Is(err, repository.ErrNotFound) {
			return notFoundf("user not found")
		} else if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		class, err := tx.Classes.GetByID(ctx, classID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundf("class not found")
		}
		if err != nil {
			return fmt.Errorf("load class: %w", err)
		}
		switch st := class.Status(now); st {
		case model.ClassCancelled, model.ClassCompleted:
			return conflictf("class is %s", st)
		}
		if !class.HasCapacity() {
			return conflictf("class is full")
		}
		if _, err := tx.Enrollments.GetByUserAndClass(ctx, userID, classID); err == nil {
			return conflictf("already enrolled in this class")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("check enrollment: %w", err)
		}
		ok, err := tx.Classes.IncrementMembers(ctx, classID)
		if err != nil {
			return fmt.Errorf("take seat: %w", err)
		}
		if !ok {
			return conflictf("class is full")
		}
		e = model.Enrollment{
			UserID:            userID,
			ClassID:           classID,
			Status:            model.EnrollmentActive,
			RemainingSessions: class.TotalSessions,
			EnrolledAt:        now,
		}
		if err := tx.Enrollments.Create(ctx, &e); errors.Is(err, repository.ErrDuplicate) {
			return conflictf("already enrolled in this class")
		} else if err != nil {
			return fmt.Errorf("create enrollment: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Enrollment{}, err
	}
	s.logger().Infof("user %d enrolled in class %d (enrollment %d)", userID, classID, e.ID)
	s.publishEnrollment(ctx, e, EventEnrollmentCreated)
	return e, nil
}

// Cancel removes the enrollment and releases its seat. Members may only
// cancel their own enrollments, and nobody may leave a class that is
// currently running.
func (s *EnrollmentService) Cancel(ctx context.Context, actor Actor, enrollmentID uint64) error {
	var e model.Enrollment
	err := s.Store.WithTx(ctx, func(tx *repository.Store) error {
		var err error
		e, err = tx.Enrollments.GetByID(ctx, enrollmentID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundf("enrollment not found")
		}
		if err != nil {
			return fmt.Errorf("load enrollment: %w", err)
		}
		if !actor.Owns(e.UserID) {
			return forbiddenf("not allowed to cancel this enrollment")
		}
		class, err := tx.Classes.GetByID(ctx, e.ClassID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("load class: %w", err)
		}
		if err == nil && class.Status(s.now()) == model.ClassOngoing {
			return conflictf("cannot cancel an enrollment while the class is ongoing")
		}
		if err := tx.Enrollments.Delete(ctx, e.ID); err != nil {
			return fmt.Errorf("delete enrollment: %w", err)
		}
		if err := tx.Classes.DecrementMembers(ctx, e.ClassID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("release seat: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger().Infof("enrollment %d cancelled by user %d", enrollmentID, actor.UserID)
	s.publishEnrollment(ctx, e, EventEnrollmentCancelled)
	return nil
}

// ListByUser returns the user's enrollments with the current status of
// each class.
func (s *EnrollmentService) ListByUser(ctx context.Context, userID uint64) ([]model.EnrollmentView, error) {
	rows, err := s.Store.Enrollments.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	now := s.now()
	out := make([]model.EnrollmentView, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.EnrollmentView{
			Enrollment:  r.Enrollment,
			ClassName:   r.Class.Name,
			ClassStatus: r.Class.Status(now),
		})
	}
	return out, nil
}

// ListByClass returns the class roster.
func (s *EnrollmentService) ListByClass(ctx context.Context, classID uint64) ([]model.EnrollmentView, error) {
	class, err := s.Store.Classes.GetByID(ctx, classID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundf("class not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load class: %w", err)
	}
	rows, err := s.Store.Enrollments.ListByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	status := class.Status(s.now())
	out := make([]model.EnrollmentView, 0, len(rows))
	for _, e := range rows {
		out = append(out, model.EnrollmentView{Enrollment: e, ClassName: class.Name, ClassStatus: status})
	}
	return out, nil
}
