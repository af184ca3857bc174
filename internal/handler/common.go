package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-management/internal/middleware"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/service"
)

// requestTimeout bounds the store work of a single request.
const requestTimeout = 5 * time.Second

// RequestValidator adapts go-playground/validator to echo.Validator.
type RequestValidator struct {
	v *validator.Validate
}

// NewRequestValidator returns a validator that reports JSON field names.
func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{v: v}
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "email":
			msgs = append(msgs, fe.Field()+" must be a valid email")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return &service.Error{Kind: service.KindValidation, Message: strings.Join(msgs, "; ")}
}

// bind decodes the body into req and validates it.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return &service.Error{Kind: service.KindValidation, Message: "invalid body"}
	}
	if err := c.Validate(req); err != nil {
		if service.KindOf(err) != "" {
			return err
		}
		return &service.Error{Kind: service.KindValidation, Message: err.Error()}
	}
	return nil
}

var kindStatus = map[service.Kind]int{
	service.KindValidation:       http.StatusBadRequest,
	service.KindUnknownReference: http.StatusBadRequest,
	service.KindNotFound:         http.StatusNotFound,
	service.KindConflict:         http.StatusConflict,
	service.KindForbidden:        http.StatusForbidden,
}

// fail writes err as {"message", "error"} with the status of its kind.
// Unexpected errors are logged and reported as 500 without detail.
func fail(c echo.Context, err error) error {
	kind := service.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error", "error": "internal"})
	}
	return c.JSON(status, echo.Map{"message": err.Error(), "error": string(kind)})
}

// getUserID returns the authenticated user's id.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errors.New("invalid user_id in context")
	}
	return id, nil
}

// actor describes the authenticated caller.
func actor(c echo.Context) service.Actor {
	id, _ := middleware.UserID(c)
	return service.Actor{UserID: id, Admin: middleware.Role(c) == model.RoleAdmin}
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, &service.Error{Kind: service.KindValidation, Message: "invalid " + name}
	}
	return id, nil
}

// parseDate accepts either a calendar date (2006-01-02) or an RFC 3339
// timestamp. Dates are interpreted in UTC.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, &service.Error{Kind: service.KindValidation, Message: field + " must be YYYY-MM-DD or RFC 3339"}
}

// optionalDate parses s unless it is empty.
func optionalDate(field, s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return parseDate(field, s)
}
