package service

import (
	"context"
	"errors"
	"fmt"

	"legal-rag/internal/rag"
)

var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrExternalService is returned when a dependency fails outside the pipeline error taxonomy.
	ErrExternalService = errors.New("external service error")
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Is makes validation errors match ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// wrapEngineError keeps pipeline errors as they are for status mapping and marks anything else as an
// external service failure.
func wrapEngineError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if rag.CodeOf(err) != "" || errors.Is(err, context.Canceled) {
		return WrapError(err, msg)
	}
	return WrapError(fmt.Errorf("%w: %w", ErrExternalService, err), msg)
}
