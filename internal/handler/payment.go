package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/service"
)

// PaymentHandler serves payment recording and reconciliation endpoints.
type PaymentHandler struct {
	Payments *service.PaymentService
}

// NewPaymentHandler panics if the service is missing.
func NewPaymentHandler(s *service.PaymentService) *PaymentHandler {
	if s == nil {
		panic("nil dependency passed to NewPaymentHandler")
	}
	return &PaymentHandler{Payments: s}
}

type paymentItemReq struct {
	Kind string `json:"kind" validate:"required,oneof=enrollment membership"`
	ID   uint64 `json:"id" validate:"required"`
}

type createPaymentReq struct {
	Amount      int64            `json:"amount" validate:"required,gt=0"`
	Method      string           `json:"method" validate:"omitempty,oneof=cash bank_transfer credit_card e_wallet"`
	PaymentType string           `json:"payment_type" validate:"max=50"`
	Items       []paymentItemReq `json:"items" validate:"required,min=1,dive"`
}

type updatePaymentReq struct {
	Amount      *int64           `json:"amount" validate:"omitempty,gt=0"`
	PaymentType *string          `json:"payment_type" validate:"omitempty,max=50"`
	Items       []paymentItemReq `json:"items" validate:"dive"`
}

type rejectReq struct {
	Reason string `json:"reason" validate:"max=255"`
}

func toItems(in []paymentItemReq) []model.PaymentItem {
	out := make([]model.PaymentItem, 0, len(in))
	for _, it := range in {
		out = append(out, model.PaymentItem{Kind: model.ItemKind(it.Kind), ID: it.ID})
	}
	return out
}

// Create records a pending payment covering the caller's items.
func (h *PaymentHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": err.Error(), "error": "unauthorized"})
	}
	var req createPaymentReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.Payments.Create(ctx, service.PaymentInput{
		UserID:      uid,
		Amount:      req.Amount,
		Method:      req.Method,
		Items:       toItems(req.Items),
		PaymentType: req.PaymentType,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// Update merges items into a pending payment or changes its amount.
func (h *PaymentHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req updatePaymentReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	patch := service.PaymentPatch{Amount: req.Amount, PaymentType: req.PaymentType}
	if len(req.Items) > 0 {
		patch.Items = toItems(req.Items)
	}
	p, err := h.Payments.Update(ctx, actor(c), id, patch)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Cancel withdraws one of the caller's pending payments.
func (h *PaymentHandler) Cancel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	r, err := h.Payments.Cancel(ctx, actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// My lists the caller's payments.
func (h *PaymentHandler) My(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": err.Error(), "error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Payments.ListForUser(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}

// Get returns a payment with its items rendered.
func (h *PaymentHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	d, err := h.Payments.GetDetails(ctx, actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// ListAll lists payments, optionally filtered by ?status= (admin).
func (h *PaymentHandler) ListAll(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Payments.ListAll(ctx, model.PaymentStatus(c.QueryParam("status")))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}

// Approve completes a pending payment and settles its items (admin).
func (h *PaymentHandler) Approve(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	r, err := h.Payments.Approve(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// Reject cancels a pending payment with a reason (admin).
func (h *PaymentHandler) Reject(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req rejectReq
	if c.Request().ContentLength != 0 {
		if err := bind(c, &req); err != nil {
			return fail(c, err)
		}
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	r, err := h.Payments.Reject(ctx, id, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// Verify reports which items of a payment still resolve (admin).
func (h *PaymentHandler) Verify(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	v, err := h.Payments.VerifyContents(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"verification": v, "ok": v.OK()})
}

// Delete permanently removes a cancelled payment (admin).
func (h *PaymentHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Payments.Delete(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
