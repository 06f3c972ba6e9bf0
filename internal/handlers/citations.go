package handlers

import (
	"encoding/json"
	"net/http"

	"legal-rag/internal/citation"
	"legal-rag/internal/contextutil"
	"legal-rag/internal/service"
)

// CitationsHandler validates answers against the cite-before-explain protocol.
type CitationsHandler struct {
	consultService service.ConsultService
}

// NewCitationsHandler creates a new CitationsHandler.
func NewCitationsHandler(consultService service.ConsultService) *CitationsHandler {
	return &CitationsHandler{consultService: consultService}
}

// CitationsRequest is the payload of a citation check.
//
// swagger:model CitationsRequest
type CitationsRequest struct {
	Answer string `json:"answer"`
	// Sources are the context texts in rank order; sources[0] backs [Source-1].
	Sources []string `json:"sources,omitempty"`
	Enforce bool     `json:"enforce,omitempty"`
}

// CitationsResponse is the outcome of a citation check.
//
// swagger:model CitationsResponse
type CitationsResponse struct {
	Valid            bool                  `json:"valid"`
	Issue            citation.Issue        `json:"issue"`
	CitationCount    int                   `json:"citation_count"`
	WordsBeforeFirst int                   `json:"words_before_first"`
	HasQuote         bool                  `json:"has_quote"`
	Citations        []citation.Marker     `json:"citations"`
	Warnings         []citation.Warning    `json:"warnings,omitempty"`
	Enforcement      *citation.Enforcement `json:"enforcement,omitempty"`
}

// ServeHTTP handles HTTP requests for citation checks.
//
// swagger:route POST /api/v1/citations/validate validateCitations
//
// # Validate citations in an answer
//
// responses:
//
//	'200': CitationsResponse
//	'400': ErrorResponse
func (h *CitationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req CitationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	out, err := h.consultService.CheckCitations(ctx, service.CitationCheckRequest{
		Answer:  req.Answer,
		Sources: req.Sources,
		Enforce: req.Enforce,
	})
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	resp := CitationsResponse{
		Valid:            out.Validation.Valid(),
		Issue:            out.Validation.Issue,
		CitationCount:    out.Validation.CitationCount,
		WordsBeforeFirst: out.Validation.WordsBeforeFirst,
		HasQuote:         out.Validation.HasQuote,
		Citations:        out.Validation.Citations,
		Warnings:         out.Warnings,
		Enforcement:      out.Enforcement,
	}
	if resp.Citations == nil {
		resp.Citations = []citation.Marker{}
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}
