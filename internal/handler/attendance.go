package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-management/internal/service"
)

// AttendanceHandler serves session and attendance endpoints.
type AttendanceHandler struct {
	Attendance *service.AttendanceService
}

// NewAttendanceHandler panics if the service is missing.
func NewAttendanceHandler(s *service.AttendanceService) *AttendanceHandler {
	if s == nil {
		panic("nil dependency passed to NewAttendanceHandler")
	}
	return &AttendanceHandler{Attendance: s}
}

type createSessionReq struct {
	ClassID       uint64  `json:"class_id" validate:"required"`
	SessionNumber int     `json:"session_number" validate:"required,min=1"`
	Date          string  `json:"date"`
	InstructorID  *uint64 `json:"instructor_id"`
}

type markReq struct {
	SessionID uint64 `json:"session_id" validate:"required"`
	UserID    uint64 `json:"user_id" validate:"required"`
	Note      string `json:"note" validate:"max=255"`
}

// CreateSession opens a numbered session of a class (admin).
func (h *AttendanceHandler) CreateSession(c echo.Context) error {
	var req createSessionReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	date, err := optionalDate("date", req.Date)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Attendance.CreateSession(ctx, service.SessionInput{
		ClassID:       req.ClassID,
		SessionNumber: req.SessionNumber,
		Date:          date,
		InstructorID:  req.InstructorID,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// Mark records a member as present at a session (admin).
func (h *AttendanceHandler) Mark(c echo.Context) error {
	var req markReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Attendance.MarkPresent(ctx, req.SessionID, req.UserID, req.Note)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// GetSession returns a session with its attendees (admin).
func (h *AttendanceHandler) GetSession(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Attendance.GetSession(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// ListSessions lists the sessions of a class (admin).
func (h *AttendanceHandler) ListSessions(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Attendance.ListSessionsByClass(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}

// Report returns the caller's attendance in one class.
func (h *AttendanceHandler) Report(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": err.Error(), "error": "unauthorized"})
	}
	classID, err := pathID(c, "classId")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	r, err := h.Attendance.Report(ctx, uid, classID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}
