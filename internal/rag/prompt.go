package rag

import (
	"fmt"
	"strings"
)

// TokenCounter estimates the token length of a text for the context budget.
type TokenCounter interface {
	Count(text string) int
}

// runeCounter approximates four characters per token when no tokenizer is configured.
type runeCounter struct{}

func (runeCounter) Count(text string) int {
	return (len([]rune(text)) + 3) / 4
}

// SourceLabel returns the citation marker for the n-th (1-based) context source.
func SourceLabel(n int) string {
	return fmt.Sprintf("[Source-%d]", n)
}

// buildPrompt formats the ranked context as numbered sources and appends the question. Sources are
// added in rank order until the token budget is spent; the first source is always included. It
// returns the prompt and the number of sources included.
func buildPrompt(question string, results []FusedResult, p Params, counter TokenCounter) (string, int) {
	if counter == nil {
		counter = runeCounter{}
	}

	var header strings.Builder
	header.WriteString("--- Sources ---\n\n")
	footer := fmt.Sprintf("--- End Sources ---\n\nQuestion: %s", question)

	budget := p.MaxContextTokens - counter.Count(header.String()) - counter.Count(footer)

	var body strings.Builder
	included := 0
	for i, r := range results {
		block := formatSource(i+1, r)
		cost := counter.Count(block)
		if included > 0 && p.MaxContextTokens > 0 && cost > budget {
			break
		}
		body.WriteString(block)
		budget -= cost
		included++
	}

	return header.String() + body.String() + footer, included
}

func formatSource(n int, r FusedResult) string {
	var b strings.Builder
	b.WriteString(SourceLabel(n))
	if r.Chunk.Title != "" {
		fmt.Fprintf(&b, " %s", r.Chunk.Title)
	}
	if len(r.Chunk.Articles) > 0 {
		fmt.Fprintf(&b, " (art. %s)", strings.Join(r.Chunk.Articles, ", "))
	}
	if r.Chunk.Category != "" {
		fmt.Fprintf(&b, " [%s]", r.Chunk.Category)
	}
	b.WriteString("\n")
	if r.Abrogated {
		fmt.Fprintf(&b, "WARNING: this text is marked as repealed or replaced (%s).\n", r.AbrogationMarker)
	}
	b.WriteString(r.Chunk.Text)
	b.WriteString("\n\n")
	return b.String()
}
