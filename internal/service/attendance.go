package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
)

// AttendanceService records held sessions and who attended them.
type AttendanceService struct{ Deps }

// NewAttendanceService returns an AttendanceService backed by deps.
func NewAttendanceService(deps Deps) *AttendanceService { return &AttendanceService{Deps: deps} }

// SessionInput describes a session being opened.
type SessionInput struct {
	ClassID       uint64
	SessionNumber int
	Date          time.Time
	InstructorID  *uint64
}

// CreateSession opens a numbered session of a class, snapshots the number
// of active enrollments and advances the class's session counter.
func (s *AttendanceService) CreateSession(ctx context.Context, in SessionInput) (model.AttendanceSession, error) {
	if in.ClassID == 0 {
		return model.AttendanceSession{}, validationf("class id is required")
	}
	if in.Date.IsZero() {
		in.Date = s.now()
	}
	var sess model.AttendanceSession
	err := s.Store.WithTx(ctx, func(tx *repository.Store) error {
		class, err := tx.Classes.GetByID(ctx, in.ClassID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundf("class not found")
		}
		if err != nil {
			return fmt.Errorf("load class: %w", err)
		}
		if in.SessionNumber < 1 || in.SessionNumber > class.TotalSessions {
			return validationf("session number must be between 1 and %d", class.TotalSessions)
		}
		enrolled, err := tx.Enrollments.CountActiveByClass(ctx, class.ID)
		if err != nil {
			return fmt.Errorf("count enrollments: %w", err)
		}
		instructor := in.InstructorID
		if instructor == nil {
			instructor = class.InstructorID
		}
		sess = model.AttendanceSession{
			ClassID:       class.ID,
			SessionNumber: in.SessionNumber,
			SessionDate:   in.Date.UTC(),
			InstructorID:  instructor,
			TotalEnrolled: enrolled,
		}
		if err := tx.Attendance.CreateSession(ctx, &sess); errors.Is(err, repository.ErrDuplicate) {
			return conflictf("session %d already exists for this class", in.SessionNumber)
		} else if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		if err := tx.Classes.AdvanceSession(ctx, class.ID, in.SessionNumber); err != nil {
			return fmt.Errorf("advance session: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.AttendanceSession{}, err
	}
	s.logger().Infof("session %d of class %d opened (%d enrolled)", sess.SessionNumber, sess.ClassID, sess.TotalEnrolled)
	return sess, nil
}

// MarkPresent records the user as present in the session. The session
// roster and the enrollment's own attendance log are written together.
func (s *AttendanceService) MarkPresent(ctx context.Context, sessionID, userID uint64, note string) (model.AttendanceSession, error) {
	if sessionID == 0 || userID == 0 {
		return model.AttendanceSession{}, validationf("session id and user id are required")
	}
	var sess model.AttendanceSession
	err := s.Store.WithTx(ctx, func(tx *repository.Store) error {
		var err error
		sess, err = tx.Attendance.GetSession(ctx, sessionID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundf("session not found")
		}
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		e, err := tx.Enrollments.GetByUserAndClass(ctx, userID, sess.ClassID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundf("user is not enrolled in this class")
		}
		if err != nil {
			return fmt.Errorf("load enrollment: %w", err)
		}
		if e.Status != model.EnrollmentActive {
			return conflictf("enrollment is %s", e.Status)
		}
		marked, err := tx.Attendance.HasAttendee(ctx, sess.ID, userID)
		if err != nil {
			return fmt.Errorf("check attendance: %w", err)
		}
		if marked {
			return conflictf("attendance already marked")
		}
		now := s.now()
		a := model.Attendee{EnrollmentID: e.ID, UserID: userID, Note: note, MarkedAt: now}
		if err := tx.Attendance.AddAttendee(ctx, sess.ID, a); errors.Is(err, repository.ErrDuplicate) {
			return conflictf("attendance already marked")
		} else if err != nil {
			return fmt.Errorf("add attendee: %w", err)
		}
		entry := model.AttendanceEntry{SessionID: sess.ID, SessionNumber: sess.SessionNumber, AttendedAt: now, Note: note}
		if err := tx.Enrollments.AppendAttendance(ctx, e.ID, entry); err != nil {
			return fmt.Errorf("append attendance: %w", err)
		}
		if err := tx.Enrollments.DecrementRemaining(ctx, e.ID); err != nil {
			return fmt.Errorf("consume session: %w", err)
		}
		sess, err = loadSession(ctx, tx, sess.ID)
		return err
	})
	if err != nil {
		return model.AttendanceSession{}, err
	}
	return sess, nil
}

// GetSession returns a session with its roster.
func (s *AttendanceService) GetSession(ctx context.Context, id uint64) (model.AttendanceSession, error) {
	return loadSession(ctx, s.Store, id)
}

// ListSessionsByClass returns the held sessions of a class.
func (s *AttendanceService) ListSessionsByClass(ctx context.Context, classID uint64) ([]model.AttendanceSession, error) {
	if _, err := s.Store.Classes.GetByID(ctx, classID); errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundf("class not found")
	} else if err != nil {
		return nil, fmt.Errorf("load class: %w", err)
	}
	out, err := s.Store.Attendance.ListSessionsByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// Report summarises the user's attendance in a class.
func (s *AttendanceService) Report(ctx context.Context, userID, classID uint64) (model.AttendanceReport, error) {
	class, err := s.Store.Classes.GetByID(ctx, classID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.AttendanceReport{}, notFoundf("class not found")
	}
	if err != nil {
		return model.AttendanceReport{}, fmt.Errorf("load class: %w", err)
	}
	e, err := s.Store.Enrollments.GetByUserAndClass(ctx, userID, classID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.AttendanceReport{}, notFoundf("user is not enrolled in this class")
	}
	if err != nil {
		return model.AttendanceReport{}, fmt.Errorf("load enrollment: %w", err)
	}
	entries, err := s.Store.Enrollments.ListAttendance(ctx, e.ID)
	if err != nil {
		return model.AttendanceReport{}, fmt.Errorf("load attendance: %w", err)
	}
	if entries == nil {
		entries = []model.AttendanceEntry{}
	}
	return model.AttendanceReport{
		UserID:            userID,
		ClassID:           classID,
		TotalSessions:     class.TotalSessions,
		AttendedCount:     len(entries),
		RemainingSessions: e.RemainingSessions,
		AttendanceRate:    model.AttendanceRate(len(entries), class.TotalSessions),
		Entries:           entries,
	}, nil
}

func loadSession(ctx context.Context, st *repository.Store, id uint64) (model.AttendanceSession, error) {
	sess, err := st.Attendance.GetSession(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.AttendanceSession{}, notFoundf("session not found")
	}
	if err != nil {
		return model.AttendanceSession{}, fmt.Errorf("load session: %w", err)
	}
	sess.Attendees, err = st.Attendance.ListAttendees(ctx, id)
	if err != nil {
		return model.AttendanceSession{}, fmt.Errorf("load attendees: %w", err)
	}
	return sess, nil
}
