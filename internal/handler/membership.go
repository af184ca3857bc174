package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/service"
)

// MembershipHandler serves membership card endpoints.
type MembershipHandler struct {
	Memberships *service.MembershipService
}

// NewMembershipHandler panics if the service is missing.
func NewMembershipHandler(s *service.MembershipService) *MembershipHandler {
	if s == nil {
		panic("nil dependency passed to NewMembershipHandler")
	}
	return &MembershipHandler{Memberships: s}
}

type createMembershipReq struct {
	UserID    uint64 `json:"user_id"` // honoured for admins only
	Type      string `json:"type" validate:"required"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date" validate:"required"`
	Price     int64  `json:"price" validate:"min=0"`
}

type upgradeMembershipReq struct {
	Type    string `json:"type" validate:"required"`
	EndDate string `json:"end_date" validate:"required"`
	Price   int64  `json:"price" validate:"min=0"`
}

type updateMembershipReq struct {
	Type       *string `json:"type"`
	StartDate  *string `json:"start_date"`
	EndDate    *string `json:"end_date"`
	Price      *int64  `json:"price" validate:"omitempty,min=0"`
	Status     *string `json:"status" validate:"omitempty,oneof=pending_payment active expired cancelled upgraded"`
	StatusNote *string `json:"status_note" validate:"omitempty,max=255"`
}

// Create opens a membership awaiting payment for the caller. Admins may
// open one on behalf of another user via user_id.
func (h *MembershipHandler) Create(c echo.Context) error {
	var req createMembershipReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	a := actor(c)
	userID := a.UserID
	if a.Admin && req.UserID != 0 {
		userID = req.UserID
	}
	start, err := optionalDate("start_date", req.StartDate)
	if err != nil {
		return fail(c, err)
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	m, err := h.Memberships.Create(ctx, service.MembershipInput{
		UserID:    userID,
		Type:      req.Type,
		StartDate: start,
		EndDate:   end,
		Price:     req.Price,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// Upgrade replaces an active membership with a new tier.
func (h *MembershipHandler) Upgrade(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req upgradeMembershipReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	m, err := h.Memberships.Upgrade(ctx, actor(c), id, service.UpgradeInput{Type: req.Type, EndDate: end, Price: req.Price})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// Cancel cancels one of the caller's memberships.
func (h *MembershipHandler) Cancel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	m, err := h.Memberships.Cancel(ctx, actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// My lists the caller's memberships together with the active summary.
func (h *MembershipHandler) My(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": err.Error(), "error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Memberships.ListForUser(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	active, err := h.Memberships.Summary(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out), "active": active})
}

// Get returns a membership the caller owns (admins see any).
func (h *MembershipHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	m, err := h.Memberships.Get(ctx, actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// ListAll lists every membership, optionally filtered by ?status= (admin).
func (h *MembershipHandler) ListAll(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Memberships.ListAll(ctx, model.MembershipStatus(c.QueryParam("status")))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}

// Update applies a partial change to a membership (admin).
func (h *MembershipHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req updateMembershipReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	patch := service.MembershipPatch{Type: req.Type, Price: req.Price, StatusNote: req.StatusNote}
	if req.StartDate != nil {
		t, err := parseDate("start_date", *req.StartDate)
		if err != nil {
			return fail(c, err)
		}
		patch.StartDate = &t
	}
	if req.EndDate != nil {
		t, err := parseDate("end_date", *req.EndDate)
		if err != nil {
			return fail(c, err)
		}
		patch.EndDate = &t
	}
	if req.Status != nil {
		st := model.MembershipStatus(*req.Status)
		patch.Status = &st
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	m, err := h.Memberships.Update(ctx, id, patch)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// Delete permanently removes a cancelled membership (admin).
func (h *MembershipHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Memberships.Delete(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
