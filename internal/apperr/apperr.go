// Package apperr classifies service failures so HTTP handlers can map them
// to status codes without inspecting wrapped driver errors.
package apperr

import (
	"errors"
	"net/http"
)

// Kind enumerates failure categories surfaced by the service layer.
type Kind int

const (
	// KindInternal marks unexpected failures.
	KindInternal Kind = iota
	// KindValidation marks rejected input.
	KindValidation
	// KindUnauthorized marks missing or invalid credentials.
	KindUnauthorized
	// KindNotFound marks a missing record.
	KindNotFound
	// KindInsufficientCredits marks a metered operation with no balance.
	KindInsufficientCredits
	// KindUpstreamConfig marks a dependency that is not configured.
	KindUpstreamConfig
	// KindUpstream marks a dependency call that failed.
	KindUpstream
)

// Error carries a user-safe message, a category, and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error returns the user-safe message.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New constructs an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error that preserves the underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the failure category from an error chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error chain to an HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindInsufficientCredits:
		return http.StatusPaymentRequired
	case KindUpstreamConfig:
		return http.StatusServiceUnavailable
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-safe message for an error chain, falling back to
// a generic message for unclassified errors.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "internal error"
}
