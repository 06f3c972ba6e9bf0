package llm

import (
	"context"

	"golang.org/x/time/rate"

	"legal-rag/internal/rag"
)

// NewLimiter returns a token bucket allowing requestsPerSecond with the given burst. A non-positive
// rate disables limiting.
func NewLimiter(requestsPerSecond float64, burst int) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// RateLimitedEmbedder waits for the limiter before every call so a provider quota is never exceeded
// by the parallel fan-out.
type RateLimitedEmbedder struct {
	rag.Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder wraps e.
func NewRateLimitedEmbedder(e rag.Embedder, limiter *rate.Limiter) *RateLimitedEmbedder {
	return &RateLimitedEmbedder{Embedder: e, limiter: limiter}
}

// Embed implements rag.Embedder.
func (r *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Provider: r.Provider().String(), Message: "rate limiter wait", Err: err}
	}
	return r.Embedder.Embed(ctx, text)
}

// RateLimitedGenerator waits for the limiter before every generation call.
type RateLimitedGenerator struct {
	rag.Generator
	limiter *rate.Limiter
}

// NewRateLimitedGenerator wraps g.
func NewRateLimitedGenerator(g rag.Generator, limiter *rate.Limiter) *RateLimitedGenerator {
	return &RateLimitedGenerator{Generator: g, limiter: limiter}
}

// Generate implements rag.Generator.
func (r *RateLimitedGenerator) Generate(ctx context.Context, req rag.GenerateRequest) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", &ProviderError{Provider: r.Name(), Message: "rate limiter wait", Err: err}
	}
	return r.Generator.Generate(ctx, req)
}
