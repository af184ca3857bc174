package router_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-management/internal/config"
	"github.com/iliyamo/gym-management/internal/handler"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/router"
	"github.com/iliyamo/gym-management/internal/service"
	"github.com/iliyamo/gym-management/internal/testutil"
	"github.com/iliyamo/gym-management/internal/utils"
)

const secret = "test-secret"

var epoch = time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC)

var phoneSeq atomic.Int64

type api struct {
	t  *testing.T
	e  *echo.Echo
	db *sql.DB
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db := testutil.OpenDB(t)
	store := repository.NewStore(db)
	clock := testutil.NewClock(epoch)
	deps := service.Deps{Store: store, Now: clock.Now}
	memberships := service.NewMembershipService(deps)
	cfg := config.Config{JWTSecret: secret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}

	e := router.New(router.Handlers{
		Health:     &handler.HealthHandler{DB: db},
		Auth:       handler.NewAuthHandler(cfg, store.Users, store.Tokens, memberships),
		Class:      handler.NewClassHandler(service.NewClassService(deps), service.NewEnrollmentService(deps), nil),
		Attendance: handler.NewAttendanceHandler(service.NewAttendanceService(deps)),
		Membership: handler.NewMembershipHandler(memberships),
		Payment:    handler.NewPaymentHandler(service.NewPaymentService(deps, service.BestEffort)),
	}, router.Options{JWTSecret: secret})
	return &api{t: t, e: e, db: db}
}

func (a *api) token(userID uint64, role string) string {
	a.t.Helper()
	tok, err := utils.NewAccessToken(secret, userID, role, 15)
	require.NoError(a.t, err)
	return tok.Token
}

func (a *api) admin() string {
	return a.token(testutil.InsertUser(a.t, a.db, "admin", model.RoleAdmin), model.RoleAdmin)
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func id(t *testing.T, rec *httptest.ResponseRecorder) uint64 {
	t.Helper()
	v, ok := decode(t, rec)["id"].(float64)
	require.True(t, ok, rec.Body.String())
	return uint64(v)
}

func register(a *api, username string) (string, uint64) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@gym.test",
		"phone":    fmt.Sprintf("0912%07d", phoneSeq.Add(1)),
		"password": "secret123",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		User   struct{ ID uint64 } `json:"user"`
		Access struct{ Token string }
	}
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Access.Token, out.User.ID
}

func createClass(a *api, adminTok string) uint64 {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/v1/admin/classes", adminTok, map[string]any{
		"name":           "Yoga",
		"max_members":    2,
		"total_sessions": 8,
		"start_date":     "2026-12-01",
		"end_date":       "2027-01-31",
		"price":          150000,
		"schedule":       []map[string]any{{"weekday": 1, "start_time": "07:00", "end_time": "08:00"}},
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return id(a.t, rec)
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t)
	_, uid := register(a, "alice")

	rec := a.do(http.MethodPost, "/v1/auth/register", "", map[string]string{
		"username": "alice", "email": "other@gym.test", "phone": "09350000001", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, "/v1/auth/register", "", map[string]string{"username": "bo"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decode(t, rec)["error"])

	rec = a.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"login": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"login": "alice@gym.test", "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pair struct {
		Access  struct{ Token string } `json:"access"`
		Refresh struct{ Token string } `json:"refresh"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/v1/me", "", nil).Code)
	rec = a.do(http.MethodGet, "/v1/me", pair.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode(t, rec)
	assert.Equal(t, float64(uid), me["id"])
	assert.Nil(t, me["membership"])

	rec = a.do(http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": pair.Refresh.Token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": pair.Refresh.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "rotated token is revoked")

	rec = a.do(http.MethodPost, "/v1/auth/logout", pair.Access.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRoleChecks(t *testing.T) {
	a := newAPI(t)
	tok, _ := register(a, "alice")

	rec := a.do(http.MethodPost, "/v1/admin/classes", tok, map[string]any{"name": "Yoga"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(http.MethodGet, "/v1/admin/payments", tok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(http.MethodGet, "/v1/payments/my", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCatalogueAndEnrollment(t *testing.T) {
	a := newAPI(t)
	adminTok := a.admin()
	classID := createClass(a, adminTok)
	alice, _ := register(a, "alice")
	bob, _ := register(a, "bob")
	carol, _ := register(a, "carol")

	rec := a.do(http.MethodGet, "/v1/classes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/classes/%d", classID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "upcoming", decode(t, rec)["status"])

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/v1/classes?status=bogus", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/v1/classes/999", "", nil).Code)

	body := map[string]any{"class_id": classID}
	rec = a.do(http.MethodPost, "/v1/classes/enroll", alice, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	enrollmentID := id(t, rec)
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/v1/classes/enroll", alice, body).Code)
	assert.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/v1/classes/enroll", bob, body).Code)

	rec = a.do(http.MethodPost, "/v1/classes/enroll", carol, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decode(t, rec)["error"])

	rec = a.do(http.MethodGet, "/v1/classes/my-enrollments", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/admin/classes/%d/enrollments", classID), adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode(t, rec)["count"])

	path := fmt.Sprintf("/v1/classes/enrollment/%d", enrollmentID)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodDelete, path, bob, nil).Code)
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, path, alice, nil).Code)
	assert.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/v1/classes/enroll", carol, body).Code)

	rec = a.do(http.MethodPut, fmt.Sprintf("/v1/admin/classes/%d/cancel", classID), adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decode(t, rec)["status"])
}

func TestAttendanceEndpoints(t *testing.T) {
	a := newAPI(t)
	adminTok := a.admin()
	classID := createClass(a, adminTok)
	alice, aliceID := register(a, "alice")
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/v1/classes/enroll", alice, map[string]any{"class_id": classID}).Code)

	rec := a.do(http.MethodPost, "/v1/attendance/session", adminTok, map[string]any{"class_id": classID, "session_number": 1, "date": "2026-12-07"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sessionID := id(t, rec)
	assert.Equal(t, float64(1), decode(t, rec)["total_enrolled"])

	rec = a.do(http.MethodPost, "/v1/attendance/session", adminTok, map[string]any{"class_id": classID, "session_number": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	mark := map[string]any{"session_id": sessionID, "user_id": aliceID, "note": "on time"}
	rec = a.do(http.MethodPost, "/v1/attendance/mark", adminTok, mark)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), decode(t, rec)["total_present"])
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/v1/attendance/mark", adminTok, mark).Code)

	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/attendance/session/%d", sessionID), adminTok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/admin/classes/%d/sessions", classID), adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/attendance/report/%d", classID), alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode(t, rec)
	assert.Equal(t, float64(1), report["attended_count"])
	assert.Equal(t, float64(7), report["remaining_sessions"])
}

func TestMembershipAndPaymentFlow(t *testing.T) {
	a := newAPI(t)
	adminTok := a.admin()
	classID := createClass(a, adminTok)
	alice, aliceID := register(a, "alice")
	bob, _ := register(a, "bob")

	rec := a.do(http.MethodPost, "/v1/classes/enroll", alice, map[string]any{"class_id": classID})
	require.Equal(t, http.StatusCreated, rec.Code)
	enrollmentID := id(t, rec)

	rec = a.do(http.MethodPost, "/v1/memberships", alice, map[string]any{"type": "VIP", "end_date": "2027-11-01", "price": 900000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	membershipID := id(t, rec)
	assert.Equal(t, "pending_payment", decode(t, rec)["status"])

	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/memberships/%d", membershipID), bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/v1/memberships/9999", alice, nil).Code)

	rec = a.do(http.MethodPost, "/v1/payments", alice, map[string]any{"amount": 1050000, "items": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/v1/payments", alice, map[string]any{
		"amount": 1050000,
		"method": "bank_transfer",
		"items":  []map[string]any{{"kind": "enrollment", "id": enrollmentID}, {"kind": "membership", "id": 9999}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_reference", decode(t, rec)["error"])

	rec = a.do(http.MethodPost, "/v1/payments", alice, map[string]any{
		"amount": 1050000,
		"method": "bank_transfer",
		"items":  []map[string]any{{"kind": "enrollment", "id": enrollmentID}, {"kind": "membership", "id": membershipID}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	paymentID := id(t, rec)
	assert.Equal(t, "pending", decode(t, rec)["status"])

	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/admin/payments/%d/verify", paymentID), adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["ok"])

	rec = a.do(http.MethodPut, fmt.Sprintf("/v1/payments/approve/%d", paymentID), alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPut, fmt.Sprintf("/v1/payments/approve/%d", paymentID), adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, float64(2), out["updated_count"])
	assert.Equal(t, float64(0), out["failed_count"])

	assert.Equal(t, http.StatusConflict, a.do(http.MethodPut, fmt.Sprintf("/v1/payments/approve/%d", paymentID), adminTok, nil).Code)

	rec = a.do(http.MethodGet, "/v1/me", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary, ok := decode(t, rec)["membership"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	assert.Equal(t, "vip", summary["type"])

	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/payments/%d", paymentID), alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lines, _ := decode(t, rec)["lines"].([]any)
	assert.Len(t, lines, 2)

	rec = a.do(http.MethodGet, "/v1/payments/my", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = a.do(http.MethodGet, "/v1/admin/payments?status=completed", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = a.do(http.MethodGet, "/v1/admin/memberships?status=active", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	assert.Equal(t, 1, testutil.QueryInt(t, a.db, "SELECT COUNT(*) FROM memberships WHERE user_id=? AND status='active'", aliceID))
}

func TestPaymentCancelAndDelete(t *testing.T) {
	a := newAPI(t)
	adminTok := a.admin()
	alice, _ := register(a, "alice")
	bob, _ := register(a, "bob")

	rec := a.do(http.MethodPost, "/v1/memberships", alice, map[string]any{"type": "basic", "end_date": "2027-02-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	membershipID := id(t, rec)

	rec = a.do(http.MethodPost, "/v1/payments", alice, map[string]any{
		"amount": 100000,
		"items":  []map[string]any{{"kind": "membership", "id": membershipID}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	paymentID := id(t, rec)

	rec = a.do(http.MethodPut, fmt.Sprintf("/v1/payments/%d", paymentID), alice, map[string]any{"amount": 120000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(120000), decode(t, rec)["amount"])
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPut, fmt.Sprintf("/v1/payments/%d", paymentID), bob, map[string]any{"amount": 1}).Code)

	del := fmt.Sprintf("/v1/admin/payments/%d", paymentID)
	assert.Equal(t, http.StatusConflict, a.do(http.MethodDelete, del, adminTok, nil).Code)

	cancelPath := fmt.Sprintf("/v1/payments/cancel/%d", paymentID)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPut, cancelPath, bob, nil).Code)
	rec = a.do(http.MethodPut, cancelPath, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/memberships/%d", membershipID), alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decode(t, rec)["status"])

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, del, adminTok, nil).Code)
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, fmt.Sprintf("/v1/memberships/permanent/%d", membershipID), adminTok, nil).Code)
}

func TestRejectPayment(t *testing.T) {
	a := newAPI(t)
	adminTok := a.admin()
	alice, _ := register(a, "alice")

	rec := a.do(http.MethodPost, "/v1/memberships", alice, map[string]any{"type": "premium", "end_date": "2027-05-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	membershipID := id(t, rec)
	rec = a.do(http.MethodPost, "/v1/payments", alice, map[string]any{
		"amount": 500000,
		"items":  []map[string]any{{"kind": "membership", "id": membershipID}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	paymentID := id(t, rec)

	rec = a.do(http.MethodPut, fmt.Sprintf("/v1/payments/reject/%d", paymentID), adminTok, map[string]string{"reason": "receipt unreadable"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p, _ := decode(t, rec)["payment"].(map[string]any)
	assert.Equal(t, "cancelled", p["status"])
	assert.Equal(t, "receipt unreadable", p["rejection_reason"])
}

func TestMembershipAdminUpdateAndUpgrade(t *testing.T) {
	a := newAPI(t)
	adminTok := a.admin()
	alice, aliceID := register(a, "alice")

	rec := a.do(http.MethodPost, "/v1/memberships", adminTok, map[string]any{"user_id": aliceID, "type": "basic", "end_date": "2027-02-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	membershipID := id(t, rec)
	assert.Equal(t, float64(aliceID), decode(t, rec)["user_id"])

	rec = a.do(http.MethodPut, fmt.Sprintf("/v1/admin/memberships/%d", membershipID), adminTok, map[string]any{"status": "active"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPut, fmt.Sprintf("/v1/memberships/upgrade/%d", membershipID), alice, map[string]any{"type": "premium", "end_date": "2027-06-01", "price": 400000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	upgraded := decode(t, rec)
	assert.Equal(t, "pending_payment", upgraded["status"])
	assert.Equal(t, float64(membershipID), upgraded["upgraded_from_id"])

	rec = a.do(http.MethodGet, "/v1/memberships/my", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode(t, rec)["count"])

	rec = a.do(http.MethodPut, fmt.Sprintf("/v1/admin/memberships/%d", membershipID), adminTok, map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
