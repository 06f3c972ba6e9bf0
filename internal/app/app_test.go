package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal-rag/internal/config"
	"legal-rag/internal/rag"
)

func TestBuildEmbedders(t *testing.T) {
	cfg := &config.Config{
		OpenAIAPIKey:     "sk-test",
		OpenAIEmbedModel: "text-embedding-3-small",
		OpenAIEmbedSize:  1536,
		BGEEmbedURL:      "http://bge:8081/v1",
		BGEEmbedModel:    "bge-m3",
		BGEEmbedSize:     1024,
		EmbedCacheTTL:    time.Minute,
		ProviderRPS:      5,
	}

	query, batch, names := buildEmbedders(cfg)

	require.Len(t, query, 2)
	require.Len(t, batch, 2)
	assert.Equal(t, []string{"text-embedding-3-small", "bge-m3"}, names)
	assert.Equal(t, rag.ProviderOpenAI, query[0].Provider())
	assert.Equal(t, rag.ProviderBGE, query[1].Provider())
	assert.Equal(t, rag.ProviderBGE, batch[1].Provider())
}

func TestBuildGenerators_CascadeOrder(t *testing.T) {
	cfg := &config.Config{
		OpenAIAPIKey:    "sk-test",
		OpenAIModel:     "gpt-4o-mini",
		LocalLLMBaseURL: "http://localhost:8080",
		LocalLLMModel:   "Llama-3.1-8B-Instruct",
		ProviderRPS:     0,
	}

	generators, err := buildGenerators(context.Background(), cfg)
	require.NoError(t, err)

	names := make([]string, len(generators))
	for i, g := range generators {
		names[i] = g.Name()
	}
	assert.Equal(t, []string{"openai", "local"}, names)
}

func TestProviderDims(t *testing.T) {
	cfg := &config.Config{
		OllamaEmbedURL:  "http://ollama:11434/v1",
		OllamaEmbedSize: 768,
		BGEEmbedURL:     "http://bge:8081/v1",
		BGEEmbedSize:    1024,
	}

	dims := providerDims(cfg)
	assert.Equal(t, map[rag.Provider]int{rag.ProviderOllama: 768, rag.ProviderBGE: 1024}, dims)
}

func TestApp_CloseReversesOrder(t *testing.T) {
	var order []int
	a := &App{}
	for i := 0; i < 3; i++ {
		a.closers = append(a.closers, func() error { order = append(order, i); return nil })
	}

	require.NoError(t, a.Close())
	assert.Equal(t, []int{2, 1, 0}, order)
	assert.NoError(t, a.Close(), "second Close is a no-op")
}
