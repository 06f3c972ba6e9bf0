package rag

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrProviderUnavailable marks a single provider failure that was absorbed.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrAllProvidersUnavailable is fatal for the request.
	ErrAllProvidersUnavailable = errors.New("all providers unavailable")
	// ErrTimeout is returned when generation or the whole request ran past its deadline.
	ErrTimeout = errors.New("deadline exceeded")
	// ErrQualityGateEmpty is returned when no candidate passed the quality gate.
	ErrQualityGateEmpty = errors.New("no grounded answer possible")
	// ErrCitationEnforcementIncomplete is logged when a repaired answer still fails validation.
	ErrCitationEnforcementIncomplete = errors.New("citation enforcement incomplete")
)

// Code is the caller-facing error code.
type Code string

const (
	CodeProviderUnavailable           Code = "PROVIDER_UNAVAILABLE"
	CodeEmbeddingUnavailable          Code = "EMBEDDING_UNAVAILABLE"
	CodeAllProvidersUnavailable       Code = "ALL_PROVIDERS_UNAVAILABLE"
	CodeTimeout                       Code = "TIMEOUT"
	CodeQualityGateEmpty              Code = "QUALITY_GATE_EMPTY"
	CodeCitationEnforcementIncomplete Code = "CITATION_ENFORCEMENT_INCOMPLETE"
)

// Error is a pipeline failure carrying its taxonomy kind and code.
type Error struct {
	Kind    error
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// HTTPStatus maps the error to the status used at the API boundary.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeEmbeddingUnavailable, CodeAllProvidersUnavailable, CodeProviderUnavailable:
		return http.StatusServiceUnavailable
	case CodeQualityGateEmpty:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind error, code Code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Err: cause}
}

// CodeOf returns the pipeline code carried by err, or "" when err is not a pipeline error.
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
