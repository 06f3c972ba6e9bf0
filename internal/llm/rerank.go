package llm

import (
	"context"
	"fmt"
	"math"

	"legal-rag/internal/rag"
)

// RerankClient scores (query, chunk) pairs with a cross-encoder served behind a /v1/rerank endpoint
// (llama.cpp, Jina or text-embeddings-inference compatible).
type RerankClient struct {
	endpoint
	Model string
}

// NewRerankClient creates a new rerank client.
func NewRerankClient(baseURL, apiKey, model string) *RerankClient {
	return &RerankClient{endpoint: newEndpoint("rerank", baseURL, apiKey), Model: model}
}

// RerankRequest is the request payload of the rerank API.
type RerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

// RerankResult is one scored document.
type RerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// RerankResponse is the response of the rerank API.
type RerankResponse struct {
	Results []RerankResult `json:"results"`
}

// Score implements rag.PairwiseScorer. Raw logits are squashed into [0,1].
func (c *RerankClient) Score(ctx context.Context, query string, chunks []rag.Chunk) ([]float64, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	docs := make([]string, len(chunks))
	for i, ch := range chunks {
		docs[i] = ch.Text
	}
	var rr RerankResponse
	if err := c.post(ctx, "/v1/rerank", RerankRequest{Model: c.Model, Query: query, Documents: docs, TopN: len(docs)}, &rr); err != nil {
		return nil, err
	}
	if len(rr.Results) != len(chunks) {
		return nil, fmt.Errorf("expected %d rerank scores, got %d", len(chunks), len(rr.Results))
	}

	scores := make([]float64, len(chunks))
	seen := make([]bool, len(chunks))
	bounded := true
	for _, r := range rr.Results {
		if r.Index < 0 || r.Index >= len(chunks) || seen[r.Index] {
			return nil, fmt.Errorf("invalid rerank index %d", r.Index)
		}
		seen[r.Index] = true
		scores[r.Index] = r.RelevanceScore
		if r.RelevanceScore < 0 || r.RelevanceScore > 1 {
			bounded = false
		}
	}
	if !bounded {
		for i, s := range scores {
			scores[i] = 1 / (1 + math.Exp(-s))
		}
	}
	return scores, nil
}
