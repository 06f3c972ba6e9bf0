package rag

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"legal-rag/internal/contextutil"
)

// Embedder produces one query vector for a single provider variant.
type Embedder interface {
	Provider() Provider
	Embed(ctx context.Context, text string) ([]float32, error)
}

// QueryVector is a successful embedding for one provider.
type QueryVector struct {
	Provider Provider
	Vector   []float32
}

// embedQuery embeds text with every embedder concurrently. Individual failures only remove that
// provider's search path; zero successes is EMBEDDING_UNAVAILABLE.
func embedQuery(ctx context.Context, embedders []Embedder, text string, p Params) ([]QueryVector, []ProviderStatus, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(embedders) == 0 {
		return nil, nil, newError(ErrAllProvidersUnavailable, CodeEmbeddingUnavailable, "no embedding provider configured", nil)
	}

	type outcome struct {
		vector QueryVector
		status ProviderStatus
	}

	outcomes := make([]outcome, len(embedders))
	var wg sync.WaitGroup
	for i, embedder := range embedders {
		wg.Add(1)
		go func(i int, embedder Embedder) {
			defer wg.Done()

			callCtx := ctx
			if p.EmbeddingTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, p.EmbeddingTimeout)
				defer cancel()
			}

			provider := embedder.Provider()
			start := time.Now()
			vec, err := embedder.Embed(callCtx, text)
			if err == nil && len(vec) == 0 {
				err = fmt.Errorf("empty embedding")
			}

			status := ProviderStatus{
				Provider: provider.String(),
				Stage:    "embedding",
				OK:       err == nil,
				Latency:  time.Since(start),
			}
			if err != nil {
				status.Error = err.Error()
				outcomes[i] = outcome{status: status}
				return
			}
			outcomes[i] = outcome{vector: QueryVector{Provider: provider, Vector: vec}, status: status}
		}(i, embedder)
	}
	wg.Wait()

	vectors := make([]QueryVector, 0, len(embedders))
	statuses := make([]ProviderStatus, 0, len(embedders))
	for _, o := range outcomes {
		statuses = append(statuses, o.status)
		if !o.status.OK {
			logger.WarnContext(ctx, "embedding provider unavailable",
				"provider", o.status.Provider,
				"code", CodeProviderUnavailable,
				"error", o.status.Error,
			)
			continue
		}
		vectors = append(vectors, o.vector)
	}

	if len(vectors) == 0 {
		return nil, statuses, newError(ErrAllProvidersUnavailable, CodeEmbeddingUnavailable,
			fmt.Sprintf("all %d embedding providers failed", len(embedders)), ctx.Err())
	}

	sort.Slice(vectors, func(i, j int) bool { return vectors[i].Provider < vectors[j].Provider })

	logger.InfoContext(ctx, "query embedded", "providers_ok", len(vectors), "providers_total", len(embedders))
	return vectors, statuses, nil
}
