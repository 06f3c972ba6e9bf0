package rag

import (
	"context"
	"sync"

	"legal-rag/internal/contextutil"
)

// SearchRequest is one similarity search against the chunk store.
type SearchRequest struct {
	Provider Provider
	Vector   []float32
	// QueryText is the original query, used by the store's lexical component.
	QueryText string
	// Category restricts the search; empty means general.
	Category      string
	Threshold     float64
	Limit         int
	LexicalWeight float64
}

// ScoredChunk is a store hit.
type ScoredChunk struct {
	Chunk       Chunk
	Score       float64
	VectorScore float64
}

// ChunkStore is the read-only similarity search capability the pipeline depends on.
type ChunkStore interface {
	SimilaritySearch(ctx context.Context, req SearchRequest) ([]ScoredChunk, error)
}

// lexicalWeight returns the lexical share of the hybrid blend for the query class.
func lexicalWeight(class QueryClass, p Params) float64 {
	if class == ClassKeyword {
		return p.KeywordLexicalWeight
	}
	return p.SemanticLexicalWeight
}

// planSearches builds one general search per provider plus one forced search per prioritised category.
func planSearches(q Query, vectors []QueryVector, categories []string, p Params) []SearchRequest {
	weight := lexicalWeight(q.Class, p)
	plan := make([]SearchRequest, 0, len(vectors)*(1+len(categories)))
	for _, qv := range vectors {
		plan = append(plan, SearchRequest{
			Provider:      qv.Provider,
			Vector:        qv.Vector,
			QueryText:     q.Original,
			Threshold:     p.GeneralThreshold,
			Limit:         p.SearchLimit,
			LexicalWeight: weight,
		})
		for _, category := range categories {
			if category == "" {
				continue
			}
			plan = append(plan, SearchRequest{
				Provider:      qv.Provider,
				Vector:        qv.Vector,
				QueryText:     q.Original,
				Category:      category,
				Threshold:     p.ForcedThreshold,
				Limit:         p.SearchLimit,
				LexicalWeight: weight,
			})
		}
	}
	return plan
}

// executeSearches runs every planned search concurrently. A failed or timed-out search yields an
// empty list; the returned slice is indexed like plan.
func executeSearches(ctx context.Context, store ChunkStore, plan []SearchRequest, p Params) ([][]SearchResult, int) {
	logger := contextutil.LoggerFromContext(ctx)

	lists := make([][]SearchResult, len(plan))
	failed := make([]bool, len(plan))

	var wg sync.WaitGroup
	for i, req := range plan {
		wg.Add(1)
		go func(i int, req SearchRequest) {
			defer wg.Done()

			callCtx := ctx
			if p.SearchTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, p.SearchTimeout)
				defer cancel()
			}

			hits, err := store.SimilaritySearch(callCtx, req)
			if err != nil {
				failed[i] = true
				logger.WarnContext(ctx, "search failed, continuing with empty list",
					"provider", req.Provider.String(),
					"category", req.Category,
					"code", CodeProviderUnavailable,
					"error", err,
				)
				return
			}

			results := make([]SearchResult, 0, min(len(hits), req.Limit))
			for _, hit := range hits {
				if len(results) >= req.Limit {
					break
				}
				if hit.VectorScore < req.Threshold {
					continue
				}
				results = append(results, SearchResult{
					Chunk:       hit.Chunk,
					Score:       hit.Score,
					VectorScore: hit.VectorScore,
					Provider:    req.Provider,
					Category:    req.Category,
					Rank:        len(results) + 1,
				})
			}
			lists[i] = results
		}(i, req)
	}
	wg.Wait()

	var failures int
	for _, f := range failed {
		if f {
			failures++
		}
	}
	logger.InfoContext(ctx, "searches completed", "searches", len(plan), "failed", failures)
	return lists, failures
}
