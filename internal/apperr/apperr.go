// Package apperr defines the error kinds shared by the maintenance engine.
// Domain errors wrap one of these so callers can classify them with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks user-correctable input errors.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks references to missing entities.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks operations that are illegal in the entity's current state.
	ErrConflict = errors.New("conflict")
)

// Validation returns a formatted validation error.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound returns a formatted not-found error.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflict returns a formatted state error.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
