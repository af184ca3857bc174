// Package middleware contains the echo middleware shared by the route
// groups: bearer authentication, role checks, rate limiting and response
// caching.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-management/internal/utils"
)

// Context keys set by JWTAuth.
const (
	ctxUserID = "user_id" // uint64 subject of the access token
	ctxRole   = "role"    // role claim, model.RoleUser or model.RoleAdmin
)

// JWTAuth validates a Bearer access token and stores the caller's id
// (uint64) and role (string) in the echo context under "user_id" and
// "role".
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header is "Bearer " followed by the JWT.
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c, "missing bearer token")
			}
			// ParseAccessToken verifies the token and converts its subject
			// to a numeric id.
			id, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return unauthorized(c, "invalid token")
			}
			// Handlers read these back through UserID and Role.
			c.Set(ctxUserID, id.UserID)
			c.Set(ctxRole, id.Role)
			return next(c)
		}
	}
}

// unauthorized writes the 401 body shared by every authentication failure.
func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"message": msg, "error": "unauthorized"})
}
