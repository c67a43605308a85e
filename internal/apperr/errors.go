package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes errors surfaced to callers.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindAuth        Kind = "auth"
	KindForbidden   Kind = "forbidden"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindState       Kind = "state"
	KindSchemaDrift Kind = "schema_drift"
	KindTransport   Kind = "transport"
)

// Error is the single error type handlers know how to render.
type Error struct {
	Kind    Kind
	Message string

	// Details is rendered as the optional "details" field.
	Details any

	// Status overrides the status derived from Kind when non-zero.
	Status int

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// WithStatus returns a copy of e rendered with the given HTTP status.
func (e *Error) WithStatus(status int) *Error {
	cp := *e
	cp.Status = status
	return &cp
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error { return newf(KindValidation, format, args...) }
func Auth(format string, args ...any) *Error       { return newf(KindAuth, format, args...) }
func Forbidden(format string, args ...any) *Error  { return newf(KindForbidden, format, args...) }
func NotFound(format string, args ...any) *Error   { return newf(KindNotFound, format, args...) }
func Conflict(format string, args ...any) *Error   { return newf(KindConflict, format, args...) }
func State(format string, args ...any) *Error      { return newf(KindState, format, args...) }

// SchemaDrift wraps a store rejection the job writer could not recover from.
func SchemaDrift(err error, format string, args ...any) *Error {
	e := newf(KindSchemaDrift, format, args...)
	e.Err = err
	return e
}

// Transport wraps an upstream failure. The message is kept verbatim.
func Transport(err error, format string, args ...any) *Error {
	e := newf(KindTransport, format, args...)
	e.Err = err
	return e
}

// KindOf reports the kind of err, or KindTransport for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransport
}

func is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func IsValidation(err error) bool  { return is(err, KindValidation) }
func IsAuth(err error) bool        { return is(err, KindAuth) }
func IsForbidden(err error) bool   { return is(err, KindForbidden) }
func IsNotFound(err error) bool    { return is(err, KindNotFound) }
func IsConflict(err error) bool    { return is(err, KindConflict) }
func IsState(err error) bool       { return is(err, KindState) }
func IsSchemaDrift(err error) bool { return is(err, KindSchemaDrift) }
func IsTransport(err error) bool   { return is(err, KindTransport) }

// HTTPStatus maps err to the status code the HTTP surface uses.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindValidation, KindState:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
