package llm

import (
	"context"
	"fmt"
	"strings"

	"legal-rag/internal/rag"
)

// Client talks to a local llama.cpp chat completions server. It is the "local" generator, last in
// the cascade.
type Client struct {
	endpoint
	Model string
}

// NewClient creates a local generation client.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{endpoint: newEndpoint("local", baseURL, apiKey), Model: model}
}

// ChatMessage is one turn of a chat completion.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the /v1/chat/completions payload.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float32      `json:"temperature,omitempty"`
}

// ChatChoice is one completion alternative.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatResponse is the /v1/chat/completions reply.
type ChatResponse struct {
	ID      string       `json:"id"`
	Choices []ChatChoice `json:"choices"`
}

func (c *Client) Name() string {
	return c.name
}

// Generate implements rag.Generator.
func (c *Client) Generate(ctx context.Context, req rag.GenerateRequest) (string, error) {
	var messages []ChatMessage
	if req.System != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: req.Prompt})

	return c.Complete(ctx, messages, ChatParams{MaxTokens: req.MaxTokens, Temperature: req.Temperature})
}

// Complete runs one chat completion and returns the trimmed content of the first choice.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage, params ChatParams) (string, error) {
	payload := ChatRequest{
		Model:     c.Model,
		Messages:  messages,
		MaxTokens: params.MaxTokens,
	}
	if params.Model != "" {
		payload.Model = params.Model
	}
	if params.Temperature > 0 {
		payload.Temperature = &params.Temperature
	}

	var resp ChatResponse
	if err := c.post(ctx, "/v1/chat/completions", payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices returned", c.name)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
