// Package apperr implements the tagged-variant error taxonomy shared by
// every component of the extraction engine. Errors are classified by Kind
// so that each layer can add context without losing the classification the
// HTTP boundary needs to pick a status code.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for the purposes of retry policy and the
// user-visible HTTP status mapping.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindInvalidRequest Kind = "invalid_request"
	KindNotFound       Kind = "not_found"
	KindAlreadyExists  Kind = "already_exists"
	KindRateLimited    Kind = "rate_limited"
	KindDependency     Kind = "dependency"
	KindTimeout        Kind = "timeout"
	KindCircuitOpen    Kind = "circuit_open"
	KindResourceLimit  Kind = "resource_limit"
	KindCache          Kind = "cache"
	KindStorage        Kind = "storage"
	KindInternal       Kind = "internal"
)

// Error is the tagged-variant error type. Fields beyond Kind/Message are
// populated only by the variants that need them.
type Error struct {
	Kind       Kind
	Message    string
	Cause      error
	RetryAfter time.Duration // KindRateLimited
	Operation  string        // KindTimeout
	Duration   time.Duration // KindTimeout
	Circuit    string        // KindCircuitOpen
	Resource   string        // KindResourceLimit
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, apperr.KindX) style checks via a sentinel Error
// whose Kind is set and all other fields are zero.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WrapPreserve wraps cause with an added prefix but keeps cause's Kind if
// cause is itself an *Error. This is the "each layer may add one
// descriptive prefix but must not change the kind" propagation policy.
func WrapPreserve(prefix string, cause error) error {
	if cause == nil {
		return nil
	}
	var existing *Error
	if errors.As(cause, &existing) {
		return &Error{
			Kind:       existing.Kind,
			Message:    prefix + ": " + existing.Message,
			Cause:      existing.Cause,
			RetryAfter: existing.RetryAfter,
			Operation:  existing.Operation,
			Duration:   existing.Duration,
			Circuit:    existing.Circuit,
			Resource:   existing.Resource,
		}
	}
	return &Error{Kind: KindInternal, Message: prefix, Cause: cause}
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func InvalidRequest(format string, args ...interface{}) *Error {
	return New(KindInvalidRequest, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func AlreadyExists(format string, args ...interface{}) *Error {
	return New(KindAlreadyExists, fmt.Sprintf(format, args...))
}

func RateLimited(retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Message: "rate limited", RetryAfter: retryAfter}
}

func Dependency(name, msg string) *Error {
	return New(KindDependency, fmt.Sprintf("%s: %s", name, msg))
}

func Timeout(operation string, d time.Duration) *Error {
	return &Error{
		Kind:      KindTimeout,
		Message:   fmt.Sprintf("%s timed out after %s", operation, d),
		Operation: operation,
		Duration:  d,
	}
}

func CircuitOpen(circuit string) *Error {
	return &Error{Kind: KindCircuitOpen, Message: fmt.Sprintf("circuit %q is open", circuit), Circuit: circuit}
}

func ResourceLimit(resource string) *Error {
	return &Error{Kind: KindResourceLimit, Message: fmt.Sprintf("resource limit exceeded: %s", resource), Resource: resource}
}

func Cache(format string, args ...interface{}) *Error {
	return New(KindCache, fmt.Sprintf(format, args...))
}

func Storage(format string, args ...interface{}) *Error {
	return New(KindStorage, fmt.Sprintf(format, args...))
}

func Internal(format string, args ...interface{}) *Error {
	return New(KindInternal, fmt.Sprintf(format, args...))
}

// KindOf extracts the Kind of err, defaulting to KindInternal for errors
// that are not *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retryable reports whether an error's kind may be retried per the
// retry discipline in spec §7: never retry Validation, InvalidRequest,
// ResourceLimit, or CircuitOpen.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindInvalidRequest, KindResourceLimit, KindCircuitOpen:
		return false
	default:
		return true
	}
}

// HTTPStatus maps a Kind to the user-visible status code from spec §7.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindInvalidRequest:
		return 400
	case KindNotFound:
		return 404
	case KindAlreadyExists:
		return 409
	case KindRateLimited:
		return 429
	case KindDependency:
		return 502
	case KindTimeout:
		return 504
	case KindCircuitOpen:
		return 503
	case KindResourceLimit:
		return 507
	case KindCache, KindStorage:
		return 503
	default:
		return 500
	}
}
