// Package errs defines the error kinds surfaced by taskflow services and how they
// map onto HTTP responses.
package errs

import (
	"context"
	"errors"
	"net/http"
)

// StatusClientClosedRequest is the status recorded when the caller went away
// before the response was written.
const StatusClientClosedRequest = 499

// Kind classifies an error for callers and transports.
type Kind int

const (
	Internal Kind = iota
	Invalid
	NotFound
	Conflict
	Unauthorized
	Forbidden
	UpstreamUnavailable
	ProvisioningFailed
	Canceled
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case UpstreamUnavailable:
		return "upstream_unavailable"
	case ProvisioningFailed:
		return "provisioning_failed"
	case Canceled:
		return "canceled"
	default:
		return "internal"
	}
}

// Error carries a kind, a message that is safe to show to the caller and an
// optional underlying cause that is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind with a caller-facing message.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and message to err. A nil err yields nil.
func Wrap(kind Kind, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain. Bare context
// errors are Canceled or UpstreamUnavailable; anything else is Internal.
func KindOf(err error) Kind {
	var e *Error
	switch {
	case errors.As(err, &e):
		return e.Kind
	case errors.Is(err, context.Canceled):
		return Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return UpstreamUnavailable
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the caller-facing message for err. Errors without a kind get a
// generic message so internal detail never leaks.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	switch KindOf(err) {
	case Canceled:
		return "request canceled"
	case UpstreamUnavailable:
		return "upstream timed out"
	}
	return "internal error"
}

// HTTPStatus maps a kind to the HTTP status code returned for it.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Invalid:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case UpstreamUnavailable:
		return http.StatusServiceUnavailable
	case Canceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}
