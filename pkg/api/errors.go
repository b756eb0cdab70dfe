package api

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or missing input fields.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a duplicate natural key on insert.
	ErrConflict = errors.New("duplicate notification")
)

// ValidationError describes a single invalid input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
