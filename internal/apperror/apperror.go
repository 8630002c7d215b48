// Package apperror defines the error taxonomy shared by every layer of the client.
//
// Each AppError wraps one sentinel so callers branch with errors.Is and still
// get a human-readable message to show the user:
//
//	if errors.Is(err, apperror.ErrNotFound) { ... }
//	flash(apperror.Message(err))
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAuth marks a failure reported by the identity provider
	// (bad credentials, duplicate signup, expired refresh token).
	ErrAuth = errors.New("authentication failed")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when an operation needs a session and there is none.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// AuthFailed carries the identity provider's own message, e.g.
// "Invalid login credentials" or "User already registered".
func AuthFailed(message string) *AppError {
	if message == "" {
		message = ErrAuth.Error()
	}
	return &AppError{
		Err:     ErrAuth,
		Message: message,
	}
}

// detailer is implemented by errors that carry a server-supplied detail
// message (api.Error). Declared here so apperror doesn't import api.
type detailer interface {
	Detail() string
}

// Message returns the text shown to a user for err.
//
// Order of preference: a server-supplied detail, an AppError message, the
// raw error text. Returns "" for a nil error.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var d detailer
	if errors.As(err, &d) {
		if msg := d.Detail(); msg != "" {
			return msg
		}
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}

	return err.Error()
}
