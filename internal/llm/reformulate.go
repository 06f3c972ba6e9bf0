package llm

import (
	"context"
	"fmt"
	"strings"

	"legal-rag/internal/rag"
)

const reformulateSystem = `You rewrite short legal search queries about Tunisian law into one complete, explicit question
in the same language as the query. Keep every legal term, article and law number. Return only the question.`

// Reformulator expands short queries with a generator. It implements rag.Reformulator.
type Reformulator struct {
	generator rag.Generator
	maxTokens int
}

// NewReformulator creates a reformulator backed by g.
func NewReformulator(g rag.Generator) *Reformulator {
	return &Reformulator{generator: g, maxTokens: 128}
}

// Reformulate implements rag.Reformulator.
func (r *Reformulator) Reformulate(ctx context.Context, query string, lang rag.Language) (string, error) {
	language := "French"
	switch lang {
	case rag.LangArabic:
		language = "Arabic"
	case rag.LangBilingual:
		language = "the dominant language of the query"
	}

	out, err := r.generator.Generate(ctx, rag.GenerateRequest{
		System:      reformulateSystem,
		Prompt:      fmt.Sprintf("Language: %s\nQuery: %s", language, query),
		MaxTokens:   r.maxTokens,
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("reformulate query: %w", err)
	}

	out = strings.Trim(strings.TrimSpace(out), `"«»`)
	if out == "" {
		return "", fmt.Errorf("reformulate query: empty output")
	}
	return out, nil
}
