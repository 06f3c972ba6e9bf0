package rag

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	mu       sync.Mutex
	requests []SearchRequest
	hits     map[string][]ScoredChunk
	fail     map[Provider]bool
}

func (s *recordingStore) SimilaritySearch(_ context.Context, req SearchRequest) ([]ScoredChunk, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.fail[req.Provider] {
		return nil, errors.New("store unavailable")
	}
	return s.hits[req.Category], nil
}

func TestPlanSearches(t *testing.T) {
	p := DefaultParams()
	q := Query{Original: "article 39", Class: ClassKeyword}
	vectors := []QueryVector{{Provider: ProviderOpenAI, Vector: []float32{1}}, {Provider: ProviderBGE, Vector: []float32{2}}}

	plan := planSearches(q, vectors, []string{"codes", "", "jurisprudence"}, p)

	require.Len(t, plan, 6)
	assert.Equal(t, "", plan[0].Category)
	assert.Equal(t, 0.25, plan[0].Threshold)
	assert.Equal(t, "codes", plan[1].Category)
	assert.Equal(t, 0.20, plan[1].Threshold)
	assert.Equal(t, "jurisprudence", plan[2].Category)
	assert.Equal(t, ProviderBGE, plan[3].Provider)
	for _, req := range plan {
		assert.Equal(t, 0.6, req.LexicalWeight)
		assert.Equal(t, 30, req.Limit)
		assert.Equal(t, "article 39", req.QueryText)
	}
}

func TestPlanSearchesSemanticWeight(t *testing.T) {
	q := Query{Original: "quelles sont les conditions ?", Expanded: "étendu", Class: ClassSemantic}
	plan := planSearches(q, []QueryVector{{Provider: ProviderOllama}}, nil, DefaultParams())

	require.Len(t, plan, 1)
	assert.Equal(t, 0.3, plan[0].LexicalWeight)
	assert.Equal(t, q.Original, plan[0].QueryText)
}

func TestExecuteSearchesFiltersAndRanks(t *testing.T) {
	p := DefaultParams()
	p.SearchLimit = 2
	store := &recordingStore{hits: map[string][]ScoredChunk{
		"": {
			{Chunk: chunk("a"), Score: 0.9, VectorScore: 0.8},
			{Chunk: chunk("low"), Score: 0.85, VectorScore: 0.1},
			{Chunk: chunk("b"), Score: 0.7, VectorScore: 0.5},
			{Chunk: chunk("c"), Score: 0.6, VectorScore: 0.4},
		},
	}}
	plan := []SearchRequest{{Provider: ProviderOpenAI, Threshold: 0.25, Limit: 2}}

	lists, failed := executeSearches(context.Background(), store, plan, p)

	assert.Equal(t, 0, failed)
	require.Len(t, lists, 1)
	require.Len(t, lists[0], 2)
	assert.Equal(t, "a", lists[0][0].Chunk.ID)
	assert.Equal(t, 1, lists[0][0].Rank)
	assert.Equal(t, "b", lists[0][1].Chunk.ID)
	assert.Equal(t, 2, lists[0][1].Rank)
	assert.Equal(t, ProviderOpenAI, lists[0][1].Provider)
}

func TestExecuteSearchesIsolatesFailures(t *testing.T) {
	store := &recordingStore{
		hits: map[string][]ScoredChunk{"codes": {{Chunk: chunk("a"), Score: 0.5, VectorScore: 0.5}}},
		fail: map[Provider]bool{ProviderOpenAI: true},
	}
	plan := []SearchRequest{
		{Provider: ProviderOpenAI, Category: "codes", Threshold: 0.2, Limit: 30},
		{Provider: ProviderBGE, Category: "codes", Threshold: 0.2, Limit: 30},
	}

	lists, failed := executeSearches(context.Background(), store, plan, DefaultParams())

	assert.Equal(t, 1, failed)
	assert.Empty(t, lists[0])
	require.Len(t, lists[1], 1)
	assert.True(t, lists[1][0].Forced())
	assert.Len(t, store.requests, 2)
}
