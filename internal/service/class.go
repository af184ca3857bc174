package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
)

// ClassService manages the class catalogue.
type ClassService struct{ Deps }

// NewClassService returns a ClassService backed by deps.
func NewClassService(deps Deps) *ClassService { return &ClassService{Deps: deps} }

// ClassInput carries the fields of a new class.
type ClassInput struct {
	Name          string
	Description   string
	InstructorID  *uint64
	MaxMembers    int
	TotalSessions int
	StartDate     time.Time
	EndDate       time.Time
	Price         int64
	Schedule      []model.ScheduleSlot
}

var clockRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

func (in ClassInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return validationf("name is required")
	case in.MaxMembers < 1:
		return validationf("max_members must be at least 1")
	case in.TotalSessions < 1:
		return validationf("total_sessions must be at least 1")
	case in.StartDate.IsZero() || in.EndDate.IsZero():
		return validationf("start_date and end_date are required")
	case in.EndDate.Before(in.StartDate):
		return validationf("end_date must not be before start_date")
	case in.Price < 0:
		return validationf("price must not be negative")
	}
	for i, s := range in.Schedule {
		if s.Weekday < 0 || s.Weekday > 6 {
			return validationf("schedule[%d]: weekday must be between 0 and 6", i)
		}
		if !clockRe.MatchString(s.StartTime) || !clockRe.MatchString(s.EndTime) {
			return validationf("schedule[%d]: times must be HH:MM", i)
		}
		if s.EndTime <= s.StartTime {
			return validationf("schedule[%d]: end_time must be after start_time", i)
		}
	}
	return nil
}

// Create validates in and stores a new class.
func (s *ClassService) Create(ctx context.Context, in ClassInput) (model.ClassView, error) {
	if err := in.validate(); err != nil {
		return model.ClassView{}, err
	}
	c := model.Class{
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		InstructorID:  in.InstructorID,
		MaxMembers:    in.MaxMembers,
		TotalSessions: in.TotalSessions,
		StartDate:     in.StartDate.UTC(),
		EndDate:       in.EndDate.UTC(),
		Price:         in.Price,
		Schedule:      in.Schedule,
	}
	err := s.Store.WithTx(ctx, func(tx *repository.Store) error {
		return tx.Classes.Create(ctx, &c)
	})
	if err != nil {
		return model.ClassView{}, fmt.Errorf("create class: %w", err)
	}
	s.logger().Infof("class %d %q created", c.ID, c.Name)
	return c.View(s.now()), nil
}

// Get returns one class with its derived status.
func (s *ClassService) Get(ctx context.Context, id uint64) (model.ClassView, error) {
	c, err := s.Store.Classes.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.ClassView{}, notFoundf("class not found")
	}
	if err != nil {
		return model.ClassView{}, fmt.Errorf("load class: %w", err)
	}
	return c.View(s.now()), nil
}

// List returns every class, optionally keeping only those whose derived
// status equals status.
func (s *ClassService) List(ctx context.Context, status model.ClassStatus) ([]model.ClassView, error) {
	if status != "" && !status.Valid() {
		return nil, validationf("unknown class status %q", status)
	}
	classes, err := s.Store.Classes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	now := s.now()
	out := make([]model.ClassView, 0, len(classes))
	for _, c := range classes {
		v := c.View(now)
		if status != "" && v.Status != status {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Cancel marks the class cancelled. The flag is sticky.
func (s *ClassService) Cancel(ctx context.Context, id uint64) (model.ClassView, error) {
	var c model.Class
	err := s.Store.WithTx(ctx, func(tx *repository.Store) error {
		var err error
		if err = tx.Classes.Cancel(ctx, id); errors.Is(err, repository.ErrNotFound) {
			return notFoundf("class not found")
		} else if err != nil {
			return fmt.Errorf("cancel class: %w", err)
		}
		c, err = tx.Classes.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return model.ClassView{}, err
	}
	s.logger().Infof("class %d cancelled", id)
	return c.View(s.now()), nil
}
