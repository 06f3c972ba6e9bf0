package citation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Strategy names the repair applied by Enforce.
type Strategy string

const (
	StrategyNone     Strategy = "none"
	StrategyPrepend  Strategy = "prepend_citation"
	StrategyRelocate Strategy = "relocate_citation"
	StrategySplice   Strategy = "splice_quote"
)

// Enforcement is the outcome of a single repair pass.
type Enforcement struct {
	Text     string   `json:"text"`
	Before   Issue    `json:"before"`
	After    Issue    `json:"after"`
	Strategy Strategy `json:"strategy"`
	Applied  bool     `json:"applied"`
}

// Enforce applies at most one repair chosen by the validation issue of text. sources are the context
// texts in rank order; sources[0] backs [Source-1]. Without sources the text is returned unchanged:
// the enforcer never invents a reference. The result is re-validated once and may still be invalid.
func (c *Checker) Enforce(text string, sources []string) Enforcement {
	res := c.Validate(text)
	out := Enforcement{Text: text, Before: res.Issue, After: res.Issue, Strategy: StrategyNone}
	if res.Valid() {
		return out
	}

	var repaired string
	switch res.Issue {
	case IssueNoCitations, IssueMissingCitationFirst:
		excerpt := c.excerptFor(sources, 1)
		if excerpt == "" {
			return out
		}
		repaired = c.newMarker(1) + ` "` + excerpt + `"` + "\n\n" + strings.TrimLeftFunc(text, unicode.IsSpace)
		out.Strategy = StrategyPrepend

	case IssueCitationTooLate:
		if len(sources) == 0 {
			return out
		}
		first := res.Citations[0]
		end := first.End
		if first.HasQuote() {
			end = first.QuoteEnd
		}
		before := strings.TrimSpace(text[:first.Start])
		after := strings.TrimLeftFunc(text[end:], unicode.IsSpace)
		if before != "" && after != "" {
			before += " "
		}
		repaired = text[first.Start:end] + " " + before + after
		out.Strategy = StrategyRelocate

	case IssueMissingQuote:
		first := res.Citations[0]
		excerpt := c.excerptFor(sources, first.Number)
		if excerpt == "" {
			return out
		}
		repaired = text[:first.End] + ` "` + excerpt + `"` + text[first.End:]
		out.Strategy = StrategySplice
	}

	out.Text = repaired
	out.Applied = true
	out.After = c.Validate(repaired).Issue
	return out
}

func (c *Checker) newMarker(n int) string {
	return Marker{Label: c.patterns.Label, Number: n}.Text()
}

// excerptFor returns an excerpt of source n (1-based), falling back to the top source when n is out
// of range.
func (c *Checker) excerptFor(sources []string, n int) string {
	if len(sources) == 0 {
		return ""
	}
	if n < 1 || n > len(sources) {
		n = 1
	}
	return c.Excerpt(sources[n-1])
}

// Excerpt returns the leading complete sentences of text that fit in ExcerptMaxChars. When even the
// first sentence is too long it is cut at a word boundary and suffixed with "...". Double quotes are
// replaced so the excerpt can be embedded in a quoted span.
func (c *Checker) Excerpt(text string) string {
	limit := c.patterns.ExcerptMaxChars
	text = collapseSpaces(strings.TrimSpace(text))
	text = strings.NewReplacer(`"`, "'", "«", "'", "»", "'", "“", "'", "”", "'").Replace(text)
	if text == "" {
		return ""
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}

	var b strings.Builder
	for _, sentence := range splitSentences(text) {
		candidate := strings.TrimSpace(b.String() + " " + sentence)
		if utf8.RuneCountInString(candidate) > limit {
			break
		}
		b.Reset()
		b.WriteString(candidate)
	}
	if b.Len() > 0 {
		return b.String()
	}

	runes := []rune(text)
	if limit <= 3 {
		return string(runes[:limit])
	}
	cut := string(runes[:limit-3])
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRightFunc(cut, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsPunct(r) }) + "..."
}

// splitSentences splits after ".", "!", "?", "؟" and ";" when followed by a space or the end.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		if !strings.ContainsRune(".!?؟;", r) {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		sentences = append(sentences, strings.TrimSpace(string(runes[start:i+1])))
		start = i + 1
	}
	if start < len(runes) {
		if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
			sentences = append(sentences, tail)
		}
	}
	return sentences
}

func collapseSpaces(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
