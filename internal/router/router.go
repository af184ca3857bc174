// Package router registers the HTTP routes of the API, one Register
// function per audience.
package router

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/gym-management/internal/handler"
	"github.com/iliyamo/gym-management/internal/middleware"
	"github.com/iliyamo/gym-management/internal/model"
)

// Handlers groups every handler the router mounts.
type Handlers struct {
	Health     *handler.HealthHandler
	Auth       *handler.AuthHandler
	Class      *handler.ClassHandler
	Attendance *handler.AttendanceHandler
	Membership *handler.MembershipHandler
	Payment    *handler.PaymentHandler
}

// Options carries the cross-cutting middleware. Nil middleware is
// skipped.
type Options struct {
	JWTSecret string
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// New builds an echo instance with the global middleware and every route.
func New(h Handlers, opt Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if v.Error != nil {
				c.Logger().Errorf("%s %s %d %s id=%s err=%v", v.Method, v.URI, v.Status, v.Latency, v.RequestID, v.Error)
				return nil
			}
			c.Logger().Infof("%s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))

	RegisterRoutes(e, h.Health)
	RegisterPublic(e, h.Class, opt.Cache)
	RegisterAuth(e, h.Auth, opt.JWTSecret)
	RegisterMember(e, h, opt)
	RegisterAdmin(e, h, opt)
	return e
}

// RegisterRoutes registers routes that need no authentication and are not
// part of the versioned API.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterPublic registers the anonymous class catalogue. Responses are
// cached when cache is non-nil.
func RegisterPublic(e *echo.Echo, h *handler.ClassHandler, cache echo.MiddlewareFunc) {
	var m []echo.MiddlewareFunc
	if cache != nil {
		m = append(m, cache)
	}
	e.GET("/v1/classes", h.ListClasses, m...)
	e.GET("/v1/classes/:id", h.GetClass, m...)
}

// RegisterAuth registers signup, login and token endpoints under
// /v1/auth plus the authenticated /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// Logout takes a refresh token in the body or a bearer token, so it
	// runs without the JWT middleware.
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
}

// RegisterMember registers endpoints any signed-in user may call. Admins
// pass the role check too.
func RegisterMember(e *echo.Echo, h Handlers, opt Options) {
	m := []echo.MiddlewareFunc{
		middleware.JWTAuth(opt.JWTSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	}
	if opt.RateLimit != nil {
		m = append(m, opt.RateLimit)
	}
	g := e.Group("/v1", m...)

	// ---- Classes ----
	g.POST("/classes/enroll", h.Class.Enroll)
	g.DELETE("/classes/enrollment/:id", h.Class.CancelEnrollment)
	g.GET("/classes/my-enrollments", h.Class.MyEnrollments)

	// ---- Attendance ----
	g.GET("/attendance/report/:classId", h.Attendance.Report)

	// ---- Memberships ----
	g.POST("/memberships", h.Membership.Create)
	g.PUT("/memberships/upgrade/:id", h.Membership.Upgrade)
	g.DELETE("/memberships/:id", h.Membership.Cancel)
	g.GET("/memberships/my", h.Membership.My)
	g.GET("/memberships/:id", h.Membership.Get)

	// ---- Payments ----
	g.POST("/payments", h.Payment.Create)
	g.PUT("/payments/:id", h.Payment.Update)
	g.PUT("/payments/cancel/:id", h.Payment.Cancel)
	g.GET("/payments/my", h.Payment.My)
	g.GET("/payments/:id", h.Payment.Get)
}

// RegisterAdmin registers admin-only endpoints.
func RegisterAdmin(e *echo.Echo, h Handlers, opt Options) {
	m := []echo.MiddlewareFunc{
		middleware.JWTAuth(opt.JWTSecret),
		middleware.RequireRole(model.RoleAdmin),
	}
	if opt.RateLimit != nil {
		m = append(m, opt.RateLimit)
	}
	g := e.Group("/v1", m...)

	// ---- Classes ----
	g.POST("/admin/classes", h.Class.CreateClass)
	g.PUT("/admin/classes/:id/cancel", h.Class.CancelClass)
	g.GET("/admin/classes/:id/enrollments", h.Class.ClassEnrollments)
	g.GET("/admin/classes/:id/sessions", h.Attendance.ListSessions)

	// ---- Attendance ----
	g.POST("/attendance/session", h.Attendance.CreateSession)
	g.POST("/attendance/mark", h.Attendance.Mark)
	g.GET("/attendance/session/:id", h.Attendance.GetSession)

	// ---- Memberships ----
	g.GET("/admin/memberships", h.Membership.ListAll)
	g.PUT("/admin/memberships/:id", h.Membership.Update)
	g.DELETE("/memberships/permanent/:id", h.Membership.Delete)

	// ---- Payments ----
	g.GET("/admin/payments", h.Payment.ListAll)
	g.PUT("/payments/approve/:id", h.Payment.Approve)
	g.PUT("/payments/reject/:id", h.Payment.Reject)
	g.GET("/admin/payments/:id/verify", h.Payment.Verify)
	g.DELETE("/admin/payments/:id", h.Payment.Delete)
}
