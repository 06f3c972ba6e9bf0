package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_rag.go -package=mocks legal-rag/internal/rag Embedder,ChunkStore,Generator,Engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"legal-rag/internal/citation"
	"legal-rag/internal/contextutil"
)

// Engine provides retrieval and grounded answer generation over the legal corpus.
type Engine interface {
	// Retrieve turns a raw question into a ranked, quality-gated context set.
	Retrieve(ctx context.Context, query string, opts Options) (RankedContext, error)
	// GenerateGroundedAnswer generates an answer from rc and enforces the citation protocol on it.
	GenerateGroundedAnswer(ctx context.Context, query string, rc RankedContext, opts Options) (GroundedAnswer, error)
	// Consult runs Retrieve and then GenerateGroundedAnswer.
	Consult(ctx context.Context, query string, opts Options) (GroundedAnswer, error)
}

// Deps are the collaborators of the engine. Only Embedders and Store are required for retrieval;
// Generators are required for answers.
type Deps struct {
	Embedders    []Embedder
	Store        ChunkStore
	Reformulator Reformulator
	Pairwise     PairwiseScorer
	Generators   []Generator
	Alerter      Alerter
	Tokens       TokenCounter
	Citations    *citation.Checker
}

type ragEngine struct {
	params       Params
	embedders    []Embedder
	store        ChunkStore
	reformulator Reformulator
	reranker     *Reranker
	orchestrator *Orchestrator
	tokens       TokenCounter
	citations    *citation.Checker
}

// NewEngine validates params and wires the pipeline stages.
func NewEngine(params Params, deps Deps) (Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline parameters: %w", err)
	}
	if deps.Store == nil {
		return nil, errors.New("chunk store is required")
	}
	checker := deps.Citations
	if checker == nil {
		checker = citation.NewChecker(citation.DefaultPatterns())
	}
	tokens := deps.Tokens
	if tokens == nil {
		tokens = runeCounter{}
	}
	return &ragEngine{
		params:       params,
		embedders:    deps.Embedders,
		store:        deps.Store,
		reformulator: deps.Reformulator,
		reranker:     NewReranker(deps.Pairwise),
		orchestrator: NewOrchestrator(deps.Generators, params.Plans, params.FallbackEnabled, deps.Alerter),
		tokens:       tokens,
		citations:    checker,
	}, nil
}

// Retrieve runs preprocessing, embedding, search, fusion, re-ranking, gating and abrogation demotion.
func (e *ragEngine) Retrieve(ctx context.Context, query string, opts Options) (RankedContext, error) {
	logger := contextutil.LoggerFromContext(ctx)
	p := e.params

	if p.RetrievalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.RetrievalTimeout)
		defer cancel()
	}

	start := time.Now()
	q := Preprocess(ctx, query, p, e.reformulator)
	rc := RankedContext{Query: q}
	rc.Stats.PreprocessDur = time.Since(start)

	logger.InfoContext(ctx, "retrieval started",
		"language", q.Language,
		"class", q.Class,
		"expanded", q.Expanded != "",
		"degraded_mode", q.Degraded,
	)

	stageStart := time.Now()
	vectors, statuses, err := embedQuery(ctx, e.embedders, q.SemanticText(), p)
	rc.Providers = statuses
	rc.Stats.EmbedDur = time.Since(stageStart)
	if err != nil {
		if terr := deadlineError(ctx, "embedding", err); terr != nil {
			return rc, terr
		}
		logger.ErrorContext(ctx, "no embedding provider available", "code", CodeOf(err), "error", err)
		return rc, err
	}

	categories := opts.Categories
	if len(categories) == 0 {
		categories = p.PriorityCategories
	}

	stageStart = time.Now()
	plan := planSearches(q, vectors, categories, p)
	lists, failed := executeSearches(ctx, e.store, plan, p)
	rc.Stats.SearchDur = time.Since(stageStart)
	rc.Stats.Searches = len(plan)
	rc.Stats.FailedSearch = failed
	if len(plan) > 0 && failed == len(plan) {
		if terr := deadlineError(ctx, "search", nil); terr != nil {
			return rc, terr
		}
		logger.ErrorContext(ctx, "every search failed", "searches", len(plan))
		return rc, newError(ErrAllProvidersUnavailable, CodeAllProvidersUnavailable,
			fmt.Sprintf("all %d searches failed", len(plan)), nil)
	}

	stageStart = time.Now()
	fused := Fuse(lists, q, p)
	rc.Stats.Candidates = len(fused)
	ranked := e.reranker.Rerank(ctx, q, fused, p)

	gated, threshold, relaxed := ApplyQualityGate(ctx, ranked, q.Language, p.Thresholds, opts.AllowRelaxed || p.AllowRelaxedGate)
	rc.Threshold = threshold
	rc.Relaxed = relaxed
	rc.Stats.Dropped = len(ranked) - len(gated)
	if len(gated) == 0 {
		rc.Stats.RankDur = time.Since(stageStart)
		logger.WarnContext(ctx, "quality gate empty", "candidates", len(ranked), "threshold", threshold)
		return rc, gateEmptyError(q.Language, len(ranked), threshold)
	}

	demoted, flags := DemoteAbrogated(ctx, gated, p.AbrogationMarkers)

	limit := p.MaxContextChunks
	if opts.MaxResults > 0 && opts.MaxResults < limit {
		limit = opts.MaxResults
	}
	if len(demoted) > limit {
		demoted = demoted[:limit]
	}
	rc.Results = demoted
	rc.Abrogations = keepFlagsFor(flags, demoted)
	rc.Stats.RankDur = time.Since(stageStart)

	logger.InfoContext(ctx, "retrieval completed",
		"results", len(rc.Results),
		"candidates", rc.Stats.Candidates,
		"threshold", rc.Threshold,
		"relaxed", rc.Relaxed,
		"abrogated", len(rc.Abrogations),
		"duration", time.Since(start),
	)
	return rc, nil
}

// GenerateGroundedAnswer builds the prompt from rc, runs the generation cascade and enforces the
// citation protocol once on the output.
func (e *ragEngine) GenerateGroundedAnswer(ctx context.Context, query string, rc RankedContext, opts Options) (GroundedAnswer, error) {
	logger := contextutil.LoggerFromContext(ctx)
	p := e.params
	answer := GroundedAnswer{Context: rc}

	if len(rc.Results) == 0 {
		return answer, gateEmptyError(rc.Query.Language, 0, rc.Threshold)
	}

	prompt, included := buildPrompt(query, rc.Results, p, e.tokens)
	sources := rc.Results[:included]
	answer.Sources = sources
	logger.InfoContext(ctx, "prompt built",
		"sources", included,
		"prompt_tokens", e.tokens.Count(prompt),
		"budget", p.MaxContextTokens,
	)

	start := time.Now()
	outcome, err := e.orchestrator.Run(ctx, opts.Operation, GenerateRequest{
		System:      p.SystemPrompt,
		Prompt:      prompt,
		MaxTokens:   p.MaxAnswerTokens,
		Temperature: p.Temperature,
	})
	answer.Attempts = outcome.Attempts
	answer.GenerationTime = time.Since(start)
	if err != nil {
		logger.ErrorContext(ctx, "generation failed", "code", CodeOf(err), "attempts", len(outcome.Attempts), "error", err)
		return answer, err
	}
	answer.Provider = outcome.Provider

	texts := make([]string, len(sources))
	for i, s := range sources {
		texts[i] = s.Chunk.Text
	}
	enforcement := e.citations.Enforce(outcome.Text, texts)
	answer.Answer = enforcement.Text
	answer.CitationIssue = string(enforcement.Before)
	answer.Enforced = enforcement.Applied
	answer.FinalIssue = string(enforcement.After)

	if enforcement.After != citation.IssueValid {
		logger.WarnContext(ctx, "citation protocol still violated after enforcement",
			"code", CodeCitationEnforcementIncomplete,
			"before", enforcement.Before,
			"after", enforcement.After,
			"strategy", enforcement.Strategy,
		)
	} else if enforcement.Applied {
		logger.InfoContext(ctx, "citation protocol enforced", "before", enforcement.Before, "strategy", enforcement.Strategy)
	}

	result := e.citations.Validate(answer.Answer)
	answer.Citations = resolveCitations(result, sources)
	for _, w := range e.citations.UnverifiedLabels(result, len(sources)) {
		answer.CitationWarnings = append(answer.CitationWarnings, CitationWarning{Label: w.Label, Reason: w.Reason})
	}
	answer.AbrogationWarnings = abrogationWarnings(sources, rc.Abrogations)

	return answer, nil
}

// Consult retrieves and answers in one call.
func (e *ragEngine) Consult(ctx context.Context, query string, opts Options) (GroundedAnswer, error) {
	rc, err := e.Retrieve(ctx, query, opts)
	if err != nil {
		return GroundedAnswer{Context: rc}, err
	}
	return e.GenerateGroundedAnswer(ctx, query, rc, opts)
}

// deadlineError returns a TIMEOUT error when ctx ran out during stage.
func deadlineError(ctx context.Context, stage string, cause error) *Error {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil
	}
	if cause == nil {
		cause = ctx.Err()
	}
	return newError(ErrTimeout, CodeTimeout, fmt.Sprintf("retrieval deadline exceeded during %s", stage), cause)
}

func keepFlagsFor(flags []AbrogationFlag, results []FusedResult) []AbrogationFlag {
	if len(flags) == 0 {
		return nil
	}
	kept := make(map[string]struct{}, len(results))
	for _, r := range results {
		kept[r.Chunk.ID] = struct{}{}
	}
	out := make([]AbrogationFlag, 0, len(flags))
	for _, f := range flags {
		if _, ok := kept[f.ChunkID]; ok {
			out = append(out, f)
		}
	}
	return out
}

func resolveCitations(res citation.Result, sources []FusedResult) []Citation {
	citations := make([]Citation, 0, len(res.Citations))
	for _, m := range res.Citations {
		c := Citation{Label: m.Text(), Number: m.Number, Quote: m.Quote}
		if m.Number >= 1 && m.Number <= len(sources) {
			c.ChunkID = sources[m.Number-1].Chunk.ID
			c.Verified = true
		}
		citations = append(citations, c)
	}
	return citations
}

func abrogationWarnings(sources []FusedResult, flags []AbrogationFlag) []AbrogationWarning {
	byChunk := make(map[string]AbrogationFlag, len(flags))
	for _, f := range flags {
		byChunk[f.ChunkID] = f
	}

	var warnings []AbrogationWarning
	for i, s := range sources {
		flag, ok := byChunk[s.Chunk.ID]
		if !ok || !s.Abrogated {
			continue
		}
		ref := SourceLabel(i + 1)
		if s.Chunk.Title != "" {
			ref += " " + s.Chunk.Title
		}
		warnings = append(warnings, AbrogationWarning{
			Reference: ref,
			Severity:  flag.Severity,
			Message: BilingualMessage{
				AR: fmt.Sprintf("تنبيه: النص %s قد يكون ملغى أو منسوخًا (%s). يرجى التثبت من النص الساري المفعول.", ref, flag.Marker),
				FR: fmt.Sprintf("Attention : le texte %s semble abrogé ou remplacé (%s). Vérifiez la version en vigueur.", ref, flag.Marker),
			},
			Info: flag,
		})
	}
	return warnings
}
