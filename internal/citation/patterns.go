// Package citation checks and repairs the cite-before-explain protocol of generated answers.
package citation

import "regexp"

// Patterns is the data that drives validation and enforcement. New labels or quote styles are added
// here, not in the validator.
type Patterns struct {
	// Marker matches a citation marker; group 1 is the label, group 2 the source number.
	Marker *regexp.Regexp
	// Quote matches a quoted span; the first non-empty group is the quoted content.
	Quote *regexp.Regexp
	// CitationFirst matches text that opens with a marker, allowing markdown decoration before it.
	CitationFirst *regexp.Regexp
	// WordBudget is the maximum number of words allowed before the first marker.
	WordBudget int
	// QuoteMaxChars bounds the length of a quote attached to a marker.
	QuoteMaxChars int
	// QuoteGap is the maximum number of characters between a marker and its quote.
	QuoteGap int
	// ExcerptMaxChars bounds excerpts spliced in by the enforcer.
	ExcerptMaxChars int
	// Label is the label used when the enforcer writes a new marker.
	Label string
	// KnownLabels are the labels accepted as referring to the numbered context sources.
	KnownLabels []string
}

// DefaultPatterns returns the production pattern table.
func DefaultPatterns() Patterns {
	return Patterns{
		Marker:          regexp.MustCompile(`\[(\p{L}+)-(\d+)\]`),
		Quote:           regexp.MustCompile(`"([^"]*)"|«([^»]*)»|“([^”]*)”`),
		CitationFirst:   regexp.MustCompile(`^[\s#>*_\-]*\[\p{L}+-\d+\]`),
		WordBudget:      10,
		QuoteMaxChars:   500,
		QuoteGap:        3,
		ExcerptMaxChars: 200,
		Label:           "Source",
		KnownLabels:     []string{"Source", "Sources", "مصدر", "المصدر"},
	}
}
