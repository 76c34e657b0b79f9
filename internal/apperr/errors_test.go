package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestBackendRejectedMatchesBackendCall(t *testing.T) {
	err := fmt.Errorf("storageops: create: %w", ErrBackendRejected)
	if !errors.Is(err, ErrBackendRejected) {
		t.Error("expected ErrBackendRejected")
	}
	if !errors.Is(err, ErrBackendCall) {
		t.Error("rejected errors should also match ErrBackendCall")
	}
	if errors.Is(ErrBackendCall, ErrBackendRejected) {
		t.Error("plain call failures must not match ErrBackendRejected")
	}
}

func TestValidationError(t *testing.T) {
	var err error = &ValidationError{Key: "parameter_required", Field: "host"}
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected ErrValidation")
	}
	var ve *ValidationError
	if !errors.As(fmt.Errorf("wrap: %w", err), &ve) {
		t.Fatal("errors.As failed")
	}
	if ve.Field != "host" {
		t.Errorf("field = %q", ve.Field)
	}
}
