package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ChatParams overrides per-request settings of a chat completion. Zero values keep the server or
// client defaults.
type ChatParams struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

// endpoint is an OpenAI-compatible HTTP server (llama.cpp, Ollama, TEI) reached with plain JSON.
type endpoint struct {
	name    string
	baseURL string
	apiKey  string
	http    *http.Client
}

func newEndpoint(name, baseURL, apiKey string) endpoint {
	return endpoint{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    http.DefaultClient,
	}
}

// post sends in to path and decodes a 200 reply into out. Transport failures and non-200 replies
// come back as *ProviderError so the cascade can classify them.
func (e endpoint) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return &ProviderError{Provider: e.name, Message: "failed to send request", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(e.name, resp.StatusCode, raw)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", e.name, err)
	}
	return nil
}
