package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	provider Provider
	vector   []float32
	err      error
	delay    time.Duration
}

func (f fakeEmbedder) Provider() Provider { return f.provider }

func (f fakeEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.vector, f.err
}

func TestEmbedQueryPartialSuccess(t *testing.T) {
	embedders := []Embedder{
		fakeEmbedder{provider: ProviderOpenAI, err: errors.New("rate limited")},
		fakeEmbedder{provider: ProviderOllama, err: errors.New("connection refused")},
		fakeEmbedder{provider: ProviderBGE, vector: []float32{0.1, 0.2}},
	}

	vectors, statuses, err := embedQuery(context.Background(), embedders, "question", DefaultParams())

	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, ProviderBGE, vectors[0].Provider)
	require.Len(t, statuses, 3)
	assert.False(t, statuses[0].OK)
	assert.Equal(t, "rate limited", statuses[0].Error)
	assert.True(t, statuses[2].OK)
}

func TestEmbedQueryAllFail(t *testing.T) {
	embedders := []Embedder{
		fakeEmbedder{provider: ProviderOpenAI, err: errors.New("down")},
		fakeEmbedder{provider: ProviderBGE, vector: []float32{}},
	}

	_, statuses, err := embedQuery(context.Background(), embedders, "question", DefaultParams())

	require.Error(t, err)
	assert.Equal(t, CodeEmbeddingUnavailable, CodeOf(err))
	assert.ErrorIs(t, err, ErrAllProvidersUnavailable)
	assert.Len(t, statuses, 2)
}

func TestEmbedQueryNoEmbedders(t *testing.T) {
	_, _, err := embedQuery(context.Background(), nil, "question", DefaultParams())
	assert.Equal(t, CodeEmbeddingUnavailable, CodeOf(err))
}

func TestEmbedQueryPerProviderTimeout(t *testing.T) {
	p := DefaultParams()
	p.EmbeddingTimeout = 20 * time.Millisecond
	embedders := []Embedder{
		fakeEmbedder{provider: ProviderOpenAI, vector: []float32{1}, delay: time.Second},
		fakeEmbedder{provider: ProviderOllama, vector: []float32{1, 2}},
	}

	vectors, statuses, err := embedQuery(context.Background(), embedders, "question", p)

	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, ProviderOllama, vectors[0].Provider)
	assert.Contains(t, statuses[0].Error, "deadline exceeded")
}

func TestEmbedQuerySortsByProvider(t *testing.T) {
	embedders := []Embedder{
		fakeEmbedder{provider: ProviderBGE, vector: []float32{3}},
		fakeEmbedder{provider: ProviderOpenAI, vector: []float32{1}},
	}

	vectors, _, err := embedQuery(context.Background(), embedders, "q", DefaultParams())

	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, vectors[0].Provider)
	assert.Equal(t, ProviderBGE, vectors[1].Provider)
}
