package service

import (
	"errors"
	"fmt"
)

// Kind classifies a business error. Handlers map kinds to HTTP statuses.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindForbidden        Kind = "forbidden"
	KindUnknownReference Kind = "unknown_reference"
)

// Error is a business rule violation detected before or during a
// mutation. Any transaction open when it is returned is rolled back.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches sentinel errors of the same kind, so callers can write
// errors.Is(err, service.ErrConflict).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrForbidden        = &Error{Kind: KindForbidden}
	ErrUnknownReference = &Error{Kind: KindUnknownReference}
)

// KindOf returns the kind of err, or "" for unexpected errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newErr(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationf(format string, args ...any) error { return newErr(KindValidation, format, args...) }
func notFoundf(format string, args ...any) error   { return newErr(KindNotFound, format, args...) }
func conflictf(format string, args ...any) error   { return newErr(KindConflict, format, args...) }
func forbiddenf(format string, args ...any) error  { return newErr(KindForbidden, format, args...) }

func unknownRef(format string, args ...any) error {
	return newErr(KindUnknownReference, format, args...)
}
