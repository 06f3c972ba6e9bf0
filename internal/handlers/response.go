package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"legal-rag/internal/contextutil"
	"legal-rag/internal/rag"
	"legal-rag/internal/service"
)

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
	// Code is the pipeline error code when one applies (e.g. "TIMEOUT").
	Code string `json:"code,omitempty"`
}

// writeJSON writes v with the given status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}

// errorStatus maps a service error to its HTTP status, public message and pipeline code.
func errorStatus(err error) (int, string, rag.Code) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Error(), ""
	}

	var pe *rag.Error
	if errors.As(err, &pe) {
		switch pe.Code {
		case rag.CodeTimeout:
			return pe.HTTPStatus(), "The request took too long to process", pe.Code
		case rag.CodeEmbeddingUnavailable:
			return pe.HTTPStatus(), "Embedding service unavailable", pe.Code
		case rag.CodeAllProvidersUnavailable, rag.CodeProviderUnavailable:
			return pe.HTTPStatus(), "Generation service unavailable", pe.Code
		default:
			return pe.HTTPStatus(), pe.Message, pe.Code
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The request took too long to process", rag.CodeTimeout
	case errors.Is(err, service.ErrExternalService):
		return http.StatusBadGateway, "External service error", ""
	default:
		return http.StatusInternalServerError, "Internal server error", ""
	}
}

// handleServiceError logs err and writes the mapped error response.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	status, message, code := errorStatus(err)
	logger := contextutil.LoggerFromContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "status", status, "code", code, "error", err)
	} else {
		logger.WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: string(code)})
}

// abstainReason returns the reason code when err is an empty quality gate.
func abstainReason(err error) (string, bool) {
	if errors.Is(err, rag.ErrQualityGateEmpty) {
		return "no_relevant_context", true
	}
	return "", false
}

func debugEnabled(r *http.Request) bool {
	v := r.URL.Query().Get("debug")
	return v == "true" || v == "1"
}
