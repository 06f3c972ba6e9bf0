package citation

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Issue is the validation verdict.
type Issue string

const (
	IssueValid                Issue = "valid"
	IssueNoCitations          Issue = "no_citations"
	IssueCitationTooLate      Issue = "citation_too_late"
	IssueMissingCitationFirst Issue = "missing_citation_first"
	IssueMissingQuote         Issue = "missing_quote"
)

// Marker is one citation marker found in a text.
type Marker struct {
	Label  string `json:"label"`
	Number int    `json:"number"`
	// Start and End are byte offsets of the marker itself.
	Start int `json:"start"`
	End   int `json:"end"`
	// Quote is the attached quoted excerpt, if any. QuoteEnd is the byte offset after its closing mark.
	Quote    string `json:"quote,omitempty"`
	QuoteEnd int    `json:"-"`
}

// Text returns the marker as written, e.g. "[Source-2]".
func (m Marker) Text() string {
	return "[" + m.Label + "-" + strconv.Itoa(m.Number) + "]"
}

// HasQuote reports whether a quoted excerpt is attached to the marker.
func (m Marker) HasQuote() bool {
	return m.Quote != ""
}

// Result is the outcome of Validate.
type Result struct {
	Issue            Issue    `json:"issue"`
	CitationCount    int      `json:"citation_count"`
	WordsBeforeFirst int      `json:"words_before_first"`
	HasQuote         bool     `json:"has_quote"`
	Citations        []Marker `json:"citations"`
}

// Valid reports whether the text follows the protocol.
func (r Result) Valid() bool {
	return r.Issue == IssueValid
}

// Checker validates and enforces the protocol with a fixed pattern table. It is stateless and safe
// for concurrent use.
type Checker struct {
	patterns Patterns
}

// NewChecker returns a Checker using p. Zero-valued numeric limits fall back to the defaults.
func NewChecker(p Patterns) *Checker {
	def := DefaultPatterns()
	if p.Marker == nil {
		p.Marker = def.Marker
	}
	if p.Quote == nil {
		p.Quote = def.Quote
	}
	if p.CitationFirst == nil {
		p.CitationFirst = def.CitationFirst
	}
	if p.WordBudget <= 0 {
		p.WordBudget = def.WordBudget
	}
	if p.QuoteMaxChars <= 0 {
		p.QuoteMaxChars = def.QuoteMaxChars
	}
	if p.QuoteGap < 0 {
		p.QuoteGap = def.QuoteGap
	}
	if p.ExcerptMaxChars <= 0 {
		p.ExcerptMaxChars = def.ExcerptMaxChars
	}
	if p.Label == "" {
		p.Label = def.Label
	}
	if len(p.KnownLabels) == 0 {
		p.KnownLabels = []string{p.Label}
	}
	return &Checker{patterns: p}
}

// Patterns returns the table the checker was built with.
func (c *Checker) Patterns() Patterns {
	return c.patterns
}

// Validate classifies text into exactly one issue. Checks run in order: no citations, too many
// words before the first marker, text not opening with a marker, no marker carrying a quote.
func (c *Checker) Validate(text string) Result {
	markers := c.markers(text)
	res := Result{Citations: markers, CitationCount: len(markers)}

	if len(markers) == 0 {
		res.WordsBeforeFirst = countWords(text)
		res.Issue = IssueNoCitations
		return res
	}

	for _, m := range markers {
		if m.HasQuote() {
			res.HasQuote = true
			break
		}
	}
	res.WordsBeforeFirst = countWords(text[:markers[0].Start])

	switch {
	case res.WordsBeforeFirst > c.patterns.WordBudget:
		res.Issue = IssueCitationTooLate
	case !c.patterns.CitationFirst.MatchString(text):
		res.Issue = IssueMissingCitationFirst
	case !res.HasQuote:
		res.Issue = IssueMissingQuote
	default:
		res.Issue = IssueValid
	}
	return res
}

// markers extracts every marker in text with its attached quote.
func (c *Checker) markers(text string) []Marker {
	locs := c.patterns.Marker.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	quotes := c.patterns.Quote.FindAllStringSubmatchIndex(text, -1)

	markers := make([]Marker, 0, len(locs))
	for _, loc := range locs {
		n, err := strconv.Atoi(text[loc[4]:loc[5]])
		if err != nil {
			continue
		}
		m := Marker{Label: text[loc[2]:loc[3]], Number: n, Start: loc[0], End: loc[1]}
		m.Quote, m.QuoteEnd = c.attachedQuote(text, m.End, quotes)
		markers = append(markers, m)
	}
	return markers
}

// attachedQuote returns the quote starting at most QuoteGap characters after end, provided the gap
// holds no letters or digits and the quote is non-empty and within QuoteMaxChars.
func (c *Checker) attachedQuote(text string, end int, quotes [][]int) (string, int) {
	for _, q := range quotes {
		if q[0] < end {
			continue
		}
		gap := text[end:q[0]]
		if utf8.RuneCountInString(gap) > c.patterns.QuoteGap || strings.IndexFunc(gap, isWordRune) >= 0 {
			return "", 0
		}
		content := ""
		for g := 2; g+1 < len(q); g += 2 {
			if q[g] >= 0 && q[g+1] > q[g] {
				content = text[q[g]:q[g+1]]
				break
			}
		}
		content = strings.TrimSpace(content)
		if content == "" || utf8.RuneCountInString(content) > c.patterns.QuoteMaxChars {
			return "", 0
		}
		return content, q[1]
	}
	return "", 0
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// countWords counts whitespace-separated fields carrying at least one letter or digit, so markdown
// decoration is not counted.
func countWords(text string) int {
	n := 0
	for _, f := range strings.Fields(text) {
		if strings.IndexFunc(f, isWordRune) >= 0 {
			n++
		}
	}
	return n
}

// Warning flags a marker that does not resolve to a provided source.
type Warning struct {
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// UnverifiedLabels returns one warning per distinct marker that names an unknown label or a source
// number outside 1..sourceCount.
func (c *Checker) UnverifiedLabels(res Result, sourceCount int) []Warning {
	var warnings []Warning
	seen := make(map[string]struct{})
	for _, m := range res.Citations {
		label := m.Text()
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}

		switch {
		case !c.knownLabel(m.Label):
			warnings = append(warnings, Warning{Label: label, Reason: "unknown citation label"})
		case m.Number < 1 || m.Number > sourceCount:
			warnings = append(warnings, Warning{Label: label, Reason: "source not in context"})
		}
	}
	return warnings
}

func (c *Checker) knownLabel(label string) bool {
	for _, known := range c.patterns.KnownLabels {
		if strings.EqualFold(label, known) {
			return true
		}
	}
	return false
}
