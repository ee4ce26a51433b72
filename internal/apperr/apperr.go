// Package apperr defines the business error taxonomy shared by every service.
// Match kinds with errors.Is against the exported sentinels.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRevoked      = errors.New("token revoked")
	ErrExpired      = errors.New("token expired")
	ErrNotFound     = errors.New("not found")
	ErrInternal     = errors.New("internal error")
)

// Error carries a kind, a client-safe message and an optional cause.
type Error struct {
	Kind    error
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation reports malformed or missing input. Details name the offending fields.
func Validation(msg string, details ...string) error {
	return &Error{Kind: ErrValidation, Message: msg, Details: details}
}

// Conflict reports a uniqueness violation.
func Conflict(msg string) error { return &Error{Kind: ErrConflict, Message: msg} }

// Unauthorized reports bad credentials or a bad or missing token.
func Unauthorized(msg string) error { return &Error{Kind: ErrUnauthorized, Message: msg} }

// Revoked reports a refresh token that is no longer the stored one.
func Revoked(msg string) error { return &Error{Kind: ErrRevoked, Message: msg} }

// Expired reports a token past its validity window.
func Expired(msg string) error { return &Error{Kind: ErrExpired, Message: msg} }

// NotFound reports a referenced entity that does not exist.
func NotFound(msg string) error { return &Error{Kind: ErrNotFound, Message: msg} }

// Internal wraps an unexpected failure. The cause is kept for operator logs only.
func Internal(msg string, cause error) error {
	return &Error{Kind: ErrInternal, Message: msg, Err: cause}
}

// Wrap converts err into an Internal error unless it already carries a kind.
// Deadline and cancellation errors from store or media calls are reported as
// timeouts so operators can tell them apart from other internal failures.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != ErrInternal {
		return err
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Internal("operation timed out", err)
	}
	return Internal(msg, err)
}

// KindOf returns the sentinel classifying err, defaulting to ErrInternal.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrConflict, ErrUnauthorized, ErrRevoked, ErrExpired, ErrNotFound} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}

// Status maps an error to the HTTP status code surfaced to clients.
func Status(err error) int {
	switch KindOf(err) {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrConflict:
		return http.StatusConflict
	case ErrUnauthorized, ErrRevoked, ErrExpired:
		return http.StatusUnauthorized
	case ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message. Internal failures never leak
// detail; timeouts are named so clients can tell them from other failures.
func Message(err error) string {
	kind := KindOf(err)
	if kind == ErrInternal {
		if errors.Is(err, context.DeadlineExceeded) {
			return "operation timed out"
		}
		return "internal server error"
	}
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return kind.Error()
}

// DetailsOf returns field-level details attached to a validation error.
func DetailsOf(err error) []string {
	var appErr *Error
	if errors.As(err, &appErr) && KindOf(err) != ErrInternal {
		return appErr.Details
	}
	return nil
}
