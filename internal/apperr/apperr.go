package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindAuthz      Kind = "authz"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindDelivery   Kind = "delivery"
	KindRequest    Kind = "request"
	KindRateLimit  Kind = "rate_limit"
	KindInternal   Kind = "internal"
)

// Error is the single error type that reaches the HTTP boundary.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Fields  map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Operational reports whether the error is an anticipated, user facing failure.
func (e *Error) Operational() bool { return e.Kind != KindInternal }

// StatusText is "fail" for 4xx and "error" otherwise.
func (e *Error) StatusText() string {
	if e.Status >= 400 && e.Status < 500 {
		return "fail"
	}
	return "error"
}

// Stack returns the captured stack of an internal error, or "".
func (e *Error) Stack() string {
	type stackTracer interface{ StackTrace() pkgerrors.StackTrace }

	var st stackTracer
	if errors.As(e.cause, &st) {
		return strings.TrimSpace(fmt.Sprintf("%+v", st.StackTrace()))
	}
	return ""
}

func newError(kind Kind, status int, msg string, fields map[string]any) *Error {
	return &Error{Kind: kind, Status: status, Message: msg, Fields: fields}
}

func Validation(msg string, fields map[string]any) *Error {
	return newError(KindValidation, http.StatusBadRequest, msg, fields)
}

func Auth(msg string) *Error {
	return newError(KindAuth, http.StatusUnauthorized, msg, nil)
}

func Authz(msg string) *Error {
	return newError(KindAuthz, http.StatusForbidden, msg, nil)
}

func NotFound(msg string) *Error {
	return newError(KindNotFound, http.StatusNotFound, msg, nil)
}

// Conflict keeps the 400 status used for duplicate unique values.
func Conflict(msg string, fields map[string]any) *Error {
	return newError(KindConflict, http.StatusBadRequest, msg, fields)
}

// TooLarge rejects a request body over the configured limit.
func TooLarge(msg string) *Error {
	return newError(KindRequest, http.StatusRequestEntityTooLarge, msg, nil)
}

func UnsupportedMediaType(msg string) *Error {
	return newError(KindRequest, http.StatusUnsupportedMediaType, msg, nil)
}

func RateLimited(msg string) *Error {
	return newError(KindRateLimit, http.StatusTooManyRequests, msg, nil)
}

// Delivery is an operational 500: an outbound side effect failed and the caller may retry.
func Delivery(msg string, cause error) *Error {
	e := newError(KindDelivery, http.StatusInternalServerError, msg, nil)
	e.cause = cause
	return e
}

// Internal wraps cause with a stack trace. The message is only shown outside production.
func Internal(msg string, cause error) *Error {
	e := newError(KindInternal, http.StatusInternalServerError, msg, nil)
	if cause != nil {
		e.cause = pkgerrors.WithStack(cause)
	} else {
		e.cause = pkgerrors.New(msg)
	}
	return e
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
