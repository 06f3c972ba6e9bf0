package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"legal-rag/internal/rag"
)

// GeminiConfig configures the Gemini generator. BaseURL overrides the API endpoint.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GeminiGenerator implements rag.Generator using the google.golang.org/genai SDK.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates the "gemini" generator on the Gemini API backend.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Name implements rag.Generator.
func (g *GeminiGenerator) Name() string {
	return "gemini"
}

// Generate implements rag.Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, req rag.GenerateRequest) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx,
		g.model,
		[]*genai.Content{
			{Parts: []*genai.Part{{Text: req.Prompt}}, Role: "user"},
		},
		config,
	)
	if err != nil {
		return "", wrapError(g.Name(), err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &ProviderError{Provider: g.Name(), Message: "empty response"}
	}
	return text, nil
}
