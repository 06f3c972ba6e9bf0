package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"legal-rag/internal/rag"
)

// OpenAIConfig configures the go-openai backed clients. BaseURL may point at any OpenAI-compatible
// server.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func newOpenAIClient(cfg OpenAIConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return openai.NewClientWithConfig(clientConfig)
}

// OpenAIGenerator generates answers with the Chat Completions API. It is the primary generator.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates the "openai" generator.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{client: newOpenAIClient(cfg), model: model}, nil
}

// Name implements rag.Generator.
func (g *OpenAIGenerator) Name() string {
	return "openai"
}

// Generate implements rag.Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, req rag.GenerateRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", wrapError(g.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: g.Name(), Message: "no response from OpenAI"}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// CompatEmbedder embeds through an OpenAI-compatible embeddings server. It serves the BGE-M3 slot,
// typically behind text-embeddings-inference or vLLM.
type CompatEmbedder struct {
	client       *openai.Client
	model        string
	provider     rag.Provider
	expectedSize int
}

// NewCompatEmbedder creates an embedder for provider.
func NewCompatEmbedder(provider rag.Provider, cfg OpenAIConfig, expectedSize int) *CompatEmbedder {
	return &CompatEmbedder{
		client:       newOpenAIClient(cfg),
		model:        cfg.Model,
		provider:     provider,
		expectedSize: expectedSize,
	}
}

// Provider implements rag.Embedder.
func (e *CompatEmbedder) Provider() rag.Provider {
	return e.provider
}

// Embed implements rag.Embedder.
func (e *CompatEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds a batch of texts, preserving input order.
func (e *CompatEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, wrapError(e.provider.String(), err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		if e.expectedSize > 0 && len(d.Embedding) != e.expectedSize {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", d.Index, len(d.Embedding), e.expectedSize)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
