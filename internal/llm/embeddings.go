package llm

import (
	"context"
	"errors"
	"fmt"

	"legal-rag/internal/rag"
)

// EmbeddingsClient fills one provider's vector slot from a llama.cpp or Ollama /v1/embeddings
// endpoint.
type EmbeddingsClient struct {
	endpoint
	provider rag.Provider
	Model    string
	// Dimensions is the vector size every response must match; 0 disables the check.
	Dimensions int
}

// NewEmbeddingsClient creates an embeddings client for provider.
func NewEmbeddingsClient(provider rag.Provider, baseURL, apiKey, model string, dimensions int) *EmbeddingsClient {
	return &EmbeddingsClient{
		endpoint:   newEndpoint(provider.String(), baseURL, apiKey),
		provider:   provider,
		Model:      model,
		Dimensions: dimensions,
	}
}

// EmbeddingsRequest is the /v1/embeddings payload.
type EmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingData is one vector of the reply.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingsResponse is the /v1/embeddings reply.
type EmbeddingsResponse struct {
	Data []EmbeddingData `json:"data"`
}

func (c *EmbeddingsClient) Provider() rag.Provider {
	return c.provider
}

// Embed implements rag.Embedder.
func (c *EmbeddingsClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds texts in one request. The vectors come back in input order.
func (c *EmbeddingsClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("empty input array")
	}

	var resp EmbeddingsResponse
	if err := c.post(ctx, "/v1/embeddings", EmbeddingsRequest{Model: c.Model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%s: expected %d embeddings, got %d", c.name, len(texts), len(resp.Data))
	}

	// Servers that omit the index send vectors in input order.
	indexed := false
	for _, d := range resp.Data {
		indexed = indexed || d.Index != 0
	}

	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		if c.Dimensions > 0 && len(d.Embedding) != c.Dimensions {
			return nil, fmt.Errorf("%s: embedding %d has %d dimensions, want %d", c.name, i, len(d.Embedding), c.Dimensions)
		}
		slot := i
		if indexed {
			slot = d.Index
		}
		if slot < 0 || slot >= len(texts) || out[slot] != nil {
			return nil, fmt.Errorf("%s: invalid embedding index %d", c.name, d.Index)
		}
		out[slot] = toFloat32(d.Embedding)
	}
	return out, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
