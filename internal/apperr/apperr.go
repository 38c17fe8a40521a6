// Package apperr defines the closed set of error kinds the engine and its
// subsystems surface to callers, following the teacher's pattern of a typed
// sentinel (storage.ErrNotFound) alongside a typed struct error
// (permission.RejectedError) rather than a generic error-code package.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error kinds named by the error-handling design.
type Kind string

const (
	NotFound          Kind = "not_found"
	Conflict          Kind = "conflict"
	InvalidRequest    Kind = "invalid_request"
	CapabilityDenied  Kind = "capability_denied"
	RateLimited       Kind = "rate_limited"
	ProviderError     Kind = "provider_error"
	BackendError      Kind = "backend_error"
	SerializationError Kind = "serialization_error"
	Cancelled         Kind = "cancelled"
	BridgeClosed      Kind = "bridge_closed"
)

// Error is a typed application error carrying one of the closed Kinds.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// RetryAfterSecs is set only on RateLimited errors that carry a
	// provider-supplied retry-after hint; nil means the caller should fall
	// back to its own backoff schedule.
	RetryAfterSecs *float64
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

// InvalidRequestf builds an InvalidRequest error.
func InvalidRequestf(format string, args ...any) *Error {
	return New(InvalidRequest, fmt.Sprintf(format, args...))
}

// CapabilityDeniedf builds a CapabilityDenied error.
func CapabilityDeniedf(format string, args ...any) *Error {
	return New(CapabilityDenied, fmt.Sprintf(format, args...))
}

// RateLimitedErr builds a RateLimited error, optionally carrying a
// provider-supplied retry-after hint in seconds.
func RateLimitedErr(message string, retryAfterSecs *float64) *Error {
	return &Error{Kind: RateLimited, Message: message, RetryAfterSecs: retryAfterSecs}
}
