package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_consult_service.go -package=mocks -mock_names=ConsultService=MockConsultService legal-rag/internal/service ConsultService

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"legal-rag/internal/citation"
	"legal-rag/internal/contextutil"
	"legal-rag/internal/rag"
)

// MaxQuestionRunes caps the length of a legal question.
const MaxQuestionRunes = 2000

// ConsultRequest represents a legal question in the domain layer.
type ConsultRequest struct {
	Question     string
	Operation    string
	AllowRelaxed bool
	Categories   []string
	MaxResults   int
}

// CitationCheckRequest asks for a Citation-First check of an answer text.
type CitationCheckRequest struct {
	Answer  string
	Sources []string
	// Enforce applies one repair pass when the answer is invalid and sources are given.
	Enforce bool
}

// CitationCheckResponse is the outcome of CheckCitations.
type CitationCheckResponse struct {
	Validation  citation.Result       `json:"validation"`
	Warnings    []citation.Warning    `json:"warnings,omitempty"`
	Enforcement *citation.Enforcement `json:"enforcement,omitempty"`
}

// ConsultService answers legal questions from the indexed corpus.
type ConsultService interface {
	// Consult retrieves context and generates a cited answer.
	Consult(ctx context.Context, req ConsultRequest) (rag.GroundedAnswer, error)
	// Retrieve returns the ranked, gated context without generating.
	Retrieve(ctx context.Context, req ConsultRequest) (rag.RankedContext, error)
	// CheckCitations validates (and optionally repairs) an answer against the citation protocol.
	CheckCitations(ctx context.Context, req CitationCheckRequest) (CitationCheckResponse, error)
}

type consultService struct {
	engine   rag.Engine
	checker  *citation.Checker
	maxRunes int
}

// NewConsultService creates a new ConsultService.
func NewConsultService(engine rag.Engine, checker *citation.Checker) ConsultService {
	if checker == nil {
		checker = citation.NewChecker(citation.DefaultPatterns())
	}
	return &consultService{
		engine:   engine,
		checker:  checker,
		maxRunes: MaxQuestionRunes,
	}
}

// Consult processes a consultation request.
func (s *consultService) Consult(ctx context.Context, req ConsultRequest) (rag.GroundedAnswer, error) {
	logger := contextutil.LoggerFromContext(ctx)

	question, err := s.validate(req)
	if err != nil {
		logger.WarnContext(ctx, "invalid consultation request", "error", err)
		return rag.GroundedAnswer{}, err
	}

	answer, err := s.engine.Consult(ctx, question, toOptions(req))
	if err != nil {
		if errors.Is(err, rag.ErrQualityGateEmpty) {
			logger.InfoContext(ctx, "abstained: no source passed the quality gate")
		} else {
			logger.ErrorContext(ctx, "consultation failed", "code", rag.CodeOf(err), "error", err)
		}
		return answer, wrapEngineError(err, "consultation failed")
	}

	logger.InfoContext(ctx, "consultation processed successfully",
		"question_length", utf8.RuneCountInString(question),
		"provider", answer.Provider,
		"sources", len(answer.Sources),
		"citation_issue", answer.CitationIssue,
	)
	return answer, nil
}

// Retrieve processes a retrieval-only request.
func (s *consultService) Retrieve(ctx context.Context, req ConsultRequest) (rag.RankedContext, error) {
	logger := contextutil.LoggerFromContext(ctx)

	question, err := s.validate(req)
	if err != nil {
		logger.WarnContext(ctx, "invalid retrieval request", "error", err)
		return rag.RankedContext{}, err
	}

	rc, err := s.engine.Retrieve(ctx, question, toOptions(req))
	if err != nil {
		return rc, wrapEngineError(err, "retrieval failed")
	}
	return rc, nil
}

// CheckCitations validates an answer text.
func (s *consultService) CheckCitations(ctx context.Context, req CitationCheckRequest) (CitationCheckResponse, error) {
	if strings.TrimSpace(req.Answer) == "" {
		return CitationCheckResponse{}, &ValidationError{Field: "answer", Message: "cannot be empty"}
	}

	res := s.checker.Validate(req.Answer)
	out := CitationCheckResponse{Validation: res}
	if len(req.Sources) > 0 {
		out.Warnings = s.checker.UnverifiedLabels(res, len(req.Sources))
	}
	if req.Enforce && !res.Valid() && len(req.Sources) > 0 {
		enforcement := s.checker.Enforce(req.Answer, req.Sources)
		out.Enforcement = &enforcement
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "citations checked",
		"issue", res.Issue,
		"citations", res.CitationCount,
		"enforced", out.Enforcement != nil && out.Enforcement.Applied,
	)
	return out, nil
}

func (s *consultService) validate(req ConsultRequest) (string, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return "", &ValidationError{Field: "question", Message: "cannot be empty"}
	}
	if n := utf8.RuneCountInString(question); n > s.maxRunes {
		return "", &ValidationError{Field: "question", Message: "exceeds maximum length"}
	}
	switch req.Operation {
	case "", rag.OperationConsultation, rag.OperationAnalysis:
	default:
		return "", &ValidationError{Field: "operation", Message: "unknown operation " + req.Operation}
	}
	for _, c := range req.Categories {
		if strings.TrimSpace(c) == "" {
			return "", &ValidationError{Field: "categories", Message: "cannot contain empty values"}
		}
	}
	if req.MaxResults < 0 {
		return "", &ValidationError{Field: "max_results", Message: "cannot be negative"}
	}
	return question, nil
}

func toOptions(req ConsultRequest) rag.Options {
	return rag.Options{
		Operation:    req.Operation,
		AllowRelaxed: req.AllowRelaxed,
		Categories:   req.Categories,
		MaxResults:   req.MaxResults,
	}
}
