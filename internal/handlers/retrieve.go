package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"legal-rag/internal/contextutil"
	"legal-rag/internal/rag"
	"legal-rag/internal/service"
)

// RetrieveHandler handles HTTP requests for retrieval without generation.
type RetrieveHandler struct {
	consultService service.ConsultService
	coverage       CoverageSource
}

// NewRetrieveHandler creates a new RetrieveHandler.
func NewRetrieveHandler(consultService service.ConsultService, coverage CoverageSource) *RetrieveHandler {
	return &RetrieveHandler{consultService: consultService, coverage: coverage}
}

// RetrieveResponse lists the ranked, gated sources for a question.
//
// swagger:model RetrieveResponse
type RetrieveResponse struct {
	Query       rag.Query            `json:"query"`
	// Threshold applies to each source's scores.vector, not to scores.final.
	Threshold   float64              `json:"threshold"`
	Relaxed     bool                 `json:"relaxed,omitempty"`
	Sources     []SourceResponse     `json:"sources"`
	Abrogations []rag.AbrogationFlag `json:"abrogations,omitempty"`

	Abstained     bool   `json:"abstained,omitempty"`
	AbstainReason string `json:"abstain_reason,omitempty"`

	Debug *DebugInfo `json:"debug,omitempty"`
}

// ServeHTTP handles HTTP requests for retrieval.
//
// swagger:route POST /api/v1/retrieve retrieve
//
// # Retrieve ranked legal sources
//
// Runs the retrieval pipeline only and returns the sources with every stage score.
//
// responses:
//
//	'200': RetrieveResponse
//	'400': ErrorResponse
//	'503': ErrorResponse
//	'504': ErrorResponse
func (h *RetrieveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ConsultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	start := time.Now()
	rc, err := h.consultService.Retrieve(ctx, req.toService())
	resp := RetrieveResponse{
		Query:       rc.Query,
		Threshold:   rc.Threshold,
		Relaxed:     rc.Relaxed,
		Sources:     toSources(rc.Results),
		Abrogations: rc.Abrogations,
	}
	if err != nil {
		reason, ok := abstainReason(err)
		if !ok {
			handleServiceError(ctx, w, err)
			return
		}
		resp.Abstained = true
		resp.AbstainReason = reason
	}
	if debugEnabled(r) {
		resp.Debug = buildDebug(rc, nil, 0, time.Since(start), h.coverage)
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}
