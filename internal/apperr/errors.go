// Package apperr holds the error taxonomy shared by the storage layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation failed")
	ErrUnknownKind   = errors.New("unknown storage kind")
	ErrBackendCall   = errors.New("backend call failed")

	// ErrBackendRejected means the backend answered with an error payload.
	// It also matches ErrBackendCall.
	ErrBackendRejected = fmt.Errorf("%w: rejected", ErrBackendCall)
)

// ValidationError reports the first rule a user input violated. Key is an
// abstract message key; callers localize it for display.
type ValidationError struct {
	Key   string
	Field string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Key)
	}
	return fmt.Sprintf("validation failed: %s (%s)", e.Key, e.Field)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
