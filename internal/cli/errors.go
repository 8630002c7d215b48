package cli

import (
	"errors"

	"github.com/sakif/habit-tracker/internal/apperror"
)

// commandError is a failure as the user reads it: what failed, then the
// server's or provider's own message.
type commandError struct {
	prefix string
	err    error
}

func (e *commandError) Error() string { return e.prefix + apperror.Message(e.err) }

func (e *commandError) Unwrap() error { return e.err }

// failed prefixes backend and provider errors. Local validation messages
// ("Please enter a name") stand alone.
func failed(prefix string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && errors.Is(err, apperror.ErrValidation) {
		return err
	}
	return &commandError{prefix: prefix, err: err}
}
