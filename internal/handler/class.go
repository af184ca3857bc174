package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-management/internal/middleware"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/service"
)

// ClassHandler serves the class catalogue and enrollments.
type ClassHandler struct {
	Classes     *service.ClassService
	Enrollments *service.EnrollmentService
	Cache       *middleware.CachePurger // nil when response caching is off
}

// NewClassHandler panics if a service is missing.
func NewClassHandler(cs *service.ClassService, es *service.EnrollmentService, cache *middleware.CachePurger) *ClassHandler {
	if cs == nil || es == nil {
		panic("nil dependency passed to NewClassHandler")
	}
	return &ClassHandler{Classes: cs, Enrollments: es, Cache: cache}
}

type scheduleSlotReq struct {
	Weekday   int    `json:"weekday" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Room      string `json:"room"`
}

type createClassReq struct {
	Name          string            `json:"name" validate:"required,max=100"`
	Description   string            `json:"description"`
	InstructorID  *uint64           `json:"instructor_id"`
	MaxMembers    int               `json:"max_members" validate:"required,min=1"`
	TotalSessions int               `json:"total_sessions" validate:"required,min=1"`
	StartDate     string            `json:"start_date" validate:"required"`
	EndDate       string            `json:"end_date" validate:"required"`
	Price         int64             `json:"price" validate:"min=0"`
	Schedule      []scheduleSlotReq `json:"schedule" validate:"dive"`
}

type enrollReq struct {
	ClassID uint64 `json:"class_id" validate:"required"`
}

// ListClasses returns the catalogue, optionally filtered by ?status=.
func (h *ClassHandler) ListClasses(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Classes.List(ctx, model.ClassStatus(c.QueryParam("status")))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}

// GetClass returns one class with its derived status.
func (h *ClassHandler) GetClass(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	v, err := h.Classes.Get(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// CreateClass adds a class to the catalogue (admin).
func (h *ClassHandler) CreateClass(c echo.Context) error {
	var req createClassReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return fail(c, err)
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return fail(c, err)
	}
	in := service.ClassInput{
		Name:          req.Name,
		Description:   req.Description,
		InstructorID:  req.InstructorID,
		MaxMembers:    req.MaxMembers,
		TotalSessions: req.TotalSessions,
		StartDate:     start,
		EndDate:       end,
		Price:         req.Price,
	}
	for _, s := range req.Schedule {
		in.Schedule = append(in.Schedule, model.ScheduleSlot{Weekday: s.Weekday, StartTime: s.StartTime, EndTime: s.EndTime, Room: s.Room})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	v, err := h.Classes.Create(ctx, in)
	if err != nil {
		return fail(c, err)
	}
	h.purge(c)
	return c.JSON(http.StatusCreated, v)
}

// CancelClass marks a class cancelled (admin).
func (h *ClassHandler) CancelClass(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	v, err := h.Classes.Cancel(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	h.purge(c)
	return c.JSON(http.StatusOK, v)
}

// Enroll enrolls the caller in a class.
func (h *ClassHandler) Enroll(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": err.Error(), "error": "unauthorized"})
	}
	var req enrollReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	e, err := h.Enrollments.Enroll(ctx, uid, req.ClassID)
	if err != nil {
		return fail(c, err)
	}
	h.purge(c)
	return c.JSON(http.StatusCreated, e)
}

// CancelEnrollment removes one of the caller's enrollments. Admins may
// remove any enrollment.
func (h *ClassHandler) CancelEnrollment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Enrollments.Cancel(ctx, actor(c), id); err != nil {
		return fail(c, err)
	}
	h.purge(c)
	return c.NoContent(http.StatusNoContent)
}

// MyEnrollments lists the caller's enrollments.
func (h *ClassHandler) MyEnrollments(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": err.Error(), "error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Enrollments.ListByUser(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}

// ClassEnrollments lists the enrollments of a class (admin).
func (h *ClassHandler) ClassEnrollments(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Enrollments.ListByClass(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}

// purge drops cached catalogue responses after a mutation that changes
// class state or membership counts.
func (h *ClassHandler) purge(c echo.Context) {
	if err := h.Cache.Purge(c.Request().Context()); err != nil {
		c.Logger().Warnf("cache purge: %v", err)
	}
}
