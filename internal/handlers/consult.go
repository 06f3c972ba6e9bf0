package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"legal-rag/internal/contextutil"
	"legal-rag/internal/rag"
	"legal-rag/internal/service"
)

// AbstainMessage is returned as the answer when no source is reliable enough to ground one.
var AbstainMessage = rag.BilingualMessage{
	AR: "لم يتم العثور على نص قانوني كاف للإجابة عن هذا السؤال بشكل موثوق.",
	FR: "Aucun texte juridique suffisamment pertinent n'a été trouvé pour répondre de manière fiable.",
}

// ConsultHandler handles HTTP requests for legal consultations.
type ConsultHandler struct {
	consultService service.ConsultService
	timeout        time.Duration
	coverage       CoverageSource
}

// NewConsultHandler creates a new ConsultHandler. A zero timeout leaves the request deadline to the
// server.
func NewConsultHandler(consultService service.ConsultService, timeout time.Duration, coverage CoverageSource) *ConsultHandler {
	return &ConsultHandler{
		consultService: consultService,
		timeout:        timeout,
		coverage:       coverage,
	}
}

// ConsultRequest represents the HTTP request payload for a consultation.
//
// swagger:model ConsultRequest
type ConsultRequest struct {
	Question string `json:"question"`
	// Operation is "consultation" (default) or "analysis".
	Operation string `json:"operation,omitempty"`
	// AllowRelaxed permits the secondary quality gate thresholds.
	AllowRelaxed bool `json:"allow_relaxed,omitempty"`
	// Categories overrides the prioritised corpus categories.
	Categories []string `json:"categories,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
}

func (r ConsultRequest) toService() service.ConsultRequest {
	return service.ConsultRequest{
		Question:     r.Question,
		Operation:    r.Operation,
		AllowRelaxed: r.AllowRelaxed,
		Categories:   r.Categories,
		MaxResults:   r.MaxResults,
	}
}

// ConsultResponse represents the HTTP response payload for a consultation.
//
// swagger:model ConsultResponse
type ConsultResponse struct {
	// The answer, opening with a [Source-N] marker and a verbatim quote
	Answer             string                  `json:"answer"`
	Citations          []rag.Citation          `json:"citations"`
	AbrogationWarnings []rag.AbrogationWarning `json:"abrogation_warnings"`
	CitationWarnings   []rag.CitationWarning   `json:"citation_warnings"`
	Sources            []SourceResponse        `json:"sources"`
	// Provider is the generator that produced the answer.
	Provider string `json:"provider,omitempty"`

	// Abstained is set when no source passed the quality gate; Answer then carries AbstainMessage.
	Abstained     bool   `json:"abstained,omitempty"`
	AbstainReason string `json:"abstain_reason,omitempty"`

	// CitationIssue is the validation verdict on the raw model output.
	CitationIssue string `json:"citation_issue,omitempty"`
	Enforced      bool   `json:"enforced,omitempty"`
	FinalIssue    string `json:"final_issue,omitempty"`

	// Debug contains debug information when debug mode is enabled (via ?debug=true query parameter).
	Debug *DebugInfo `json:"debug,omitempty"`
}

// ServeHTTP handles HTTP requests for legal consultations.
//
// swagger:route POST /api/v1/consult consult
//
// # Ask a legal question
//
// Retrieves the relevant Tunisian legal texts and generates an answer that cites them first.
//
// responses:
//
//	'200': ConsultResponse
//	'400': ErrorResponse
//	'502': ErrorResponse
//	'503': ErrorResponse
//	'504': ErrorResponse
func (h *ConsultHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := h.consultService.Consult(ctx, req.toService())
	if err != nil {
		if reason, ok := abstainReason(err); ok {
			resp := ConsultResponse{
				Answer:        abstainText(answer.Context.Query.Language),
				Sources:       []SourceResponse{},
				Abstained:     true,
				AbstainReason: reason,
			}
			if debugEnabled(r) {
				resp.Debug = buildDebug(answer.Context, nil, 0, time.Since(start), h.coverage)
			}
			writeJSON(ctx, w, http.StatusOK, resp)
			return
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && rag.CodeOf(err) == "" {
			err = &rag.Error{Kind: rag.ErrTimeout, Code: rag.CodeTimeout, Message: "request deadline exceeded", Err: err}
		}
		handleServiceError(ctx, w, err)
		return
	}

	resp := ConsultResponse{
		Answer:             answer.Answer,
		Citations:          answer.Citations,
		AbrogationWarnings: answer.AbrogationWarnings,
		CitationWarnings:   answer.CitationWarnings,
		Sources:            toSources(answer.Sources),
		Provider:           answer.Provider,
		CitationIssue:      answer.CitationIssue,
		Enforced:           answer.Enforced,
		FinalIssue:         answer.FinalIssue,
	}
	if resp.Citations == nil {
		resp.Citations = []rag.Citation{}
	}
	if resp.AbrogationWarnings == nil {
		resp.AbrogationWarnings = []rag.AbrogationWarning{}
	}
	if resp.CitationWarnings == nil {
		resp.CitationWarnings = []rag.CitationWarning{}
	}
	if debugEnabled(r) {
		resp.Debug = buildDebug(answer.Context, answer.Attempts, answer.GenerationTime, time.Since(start), h.coverage)
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}

func abstainText(lang rag.Language) string {
	switch lang {
	case rag.LangArabic:
		return AbstainMessage.AR
	case rag.LangFrench:
		return AbstainMessage.FR
	default:
		return AbstainMessage.AR + "\n" + AbstainMessage.FR
	}
}
