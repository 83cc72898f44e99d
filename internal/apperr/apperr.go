package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthorized
	KindPermission
	KindNotFound
	KindConflict
	KindRateLimited
	KindUnavailable
)

// Error is a request-scoped failure carrying its transport classification.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	RetryAfter int
	Allowed    []string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches errors with the same code so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// Status returns the HTTP status for the error kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindUnauthorized:
		return fiber.StatusUnauthorized
	case KindPermission:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict:
		return fiber.StatusConflict
	case KindRateLimited:
		return fiber.StatusTooManyRequests
	case KindUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Validation reports malformed input.
func Validation(code, msg string) *Error { return newError(KindValidation, code, msg) }

// Unauthorized reports missing or invalid credentials.
func Unauthorized(msg string) *Error { return newError(KindUnauthorized, "unauthorized", msg) }

// Forbidden reports a role or ownership mismatch.
func Forbidden(msg string) *Error { return newError(KindPermission, "permission_denied", msg) }

// NotFound reports a missing entity.
func NotFound(msg string) *Error { return newError(KindNotFound, "not_found", msg) }

// Conflict reports a uniqueness or concurrency violation.
func Conflict(code, msg string) *Error { return newError(KindConflict, code, msg) }

// Unavailable reports a failed downstream dependency.
func Unavailable(code, msg string) *Error { return newError(KindUnavailable, code, msg) }

// RateLimited reports a throttled request. retryAfter is in seconds; zero means unknown.
func RateLimited(retryAfter int) *Error {
	msg := "too many requests, please try again later"
	if retryAfter > 0 {
		msg = fmt.Sprintf("please wait %d seconds before requesting a new code", retryAfter)
	}
	return &Error{Kind: KindRateLimited, Code: "rate_limited", Message: msg, RetryAfter: retryAfter}
}

// InvalidChoice reports a value outside a fixed allowed set.
func InvalidChoice(field, value string, allowed []string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    "invalid_" + field,
		Message: fmt.Sprintf("invalid %s %q, allowed values: %s", field, value, strings.Join(allowed, ", ")),
		Allowed: allowed,
	}
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasKind reports whether err is an *Error of the given kind.
func HasKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
