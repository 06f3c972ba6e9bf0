package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"
	openaisdk "github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// ProviderError is a failure reported by an LLM or embedding backend, normalised across SDKs.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt, possibly on another provider, can succeed. Rate
// limits, server errors, request timeouts and transport failures are retryable; other client
// errors such as bad requests or authentication failures are not.
func (e *ProviderError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return !errors.Is(e.Err, context.Canceled)
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// statusError builds a ProviderError from a raw HTTP response status and body.
func statusError(provider string, status int, body []byte) *ProviderError {
	msg := string(body)
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return &ProviderError{Provider: provider, StatusCode: status, Message: msg}
}

// wrapError converts SDK errors into a ProviderError carrying the HTTP status when one is known.
func wrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}

	status := 0
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	var sdkErr *openaisdk.Error
	var genaiErr genai.APIError
	var genaiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	case errors.As(err, &sdkErr):
		status = sdkErr.StatusCode
	case errors.As(err, &genaiErr):
		status = genaiErr.Code
	case errors.As(err, &genaiErrPtr):
		status = genaiErrPtr.Code
	}
	return &ProviderError{Provider: provider, StatusCode: status, Message: err.Error(), Err: err}
}
