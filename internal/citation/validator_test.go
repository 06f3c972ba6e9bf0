package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	c := NewChecker(DefaultPatterns())

	tests := []struct {
		name      string
		text      string
		want      Issue
		citations int
	}{
		{"no markers", "شروط الدفاع الشرعي هي...", IssueNoCitations, 0},
		{"valid french", `[Source-1] "N'est pas punissable celui qui agit en légitime défense." La loi exige une agression actuelle.`, IssueValid, 1},
		{"valid with emphasis", `**[Source-1]** "texte du code" puis l'explication.`, IssueValid, 1},
		{"valid guillemets arabic label", `[مصدر-1] «يعتبر في حالة دفاع شرعي» والشرح بعد ذلك.`, IssueValid, 1},
		{"valid heading prefix", "## [Source-2] “article 39” explication", IssueValid, 1},
		{
			"too late",
			`Il faut savoir que dans le droit tunisien la légitime défense est admise sous conditions [Source-1] "texte"`,
			IssueCitationTooLate, 1,
		},
		{"not first", `Selon la loi, [Source-1] "texte" explique la règle.`, IssueMissingCitationFirst, 1},
		{"missing quote", "[Source-1] La légitime défense est admise. [Source-2] Voir aussi.", IssueMissingQuote, 2},
		{"quote too far", `[Source-1] selon le texte "citation"`, IssueMissingQuote, 1},
		{"empty quote", `[Source-1] "" explication`, IssueMissingQuote, 1},
		{"second marker quoted", `[Source-1] explication [Source-2] "texte exact"`, IssueValid, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Validate(tt.text)
			assert.Equal(t, tt.want, res.Issue)
			assert.Equal(t, tt.citations, res.CitationCount)
		})
	}
}

func TestValidateWordsBeforeFirst(t *testing.T) {
	c := NewChecker(DefaultPatterns())

	res := c.Validate(`un deux trois quatre cinq six sept huit neuf dix [Source-1] "x"`)
	assert.Equal(t, 10, res.WordsBeforeFirst)
	assert.Equal(t, IssueMissingCitationFirst, res.Issue)

	res = c.Validate(`un deux trois quatre cinq six sept huit neuf dix onze [Source-1] "x"`)
	assert.Equal(t, 11, res.WordsBeforeFirst)
	assert.Equal(t, IssueCitationTooLate, res.Issue)
}

func TestValidateQuoteLength(t *testing.T) {
	p := DefaultPatterns()
	p.QuoteMaxChars = 5
	c := NewChecker(p)

	assert.Equal(t, IssueValid, c.Validate(`[Source-1] "court"`).Issue)
	assert.Equal(t, IssueMissingQuote, c.Validate(`[Source-1] "beaucoup trop long"`).Issue)
}

func TestValidateMarkerDetails(t *testing.T) {
	c := NewChecker(DefaultPatterns())
	res := c.Validate(`[Source-3] "premier" puis [KB-12] suite`)

	require.Len(t, res.Citations, 2)
	assert.Equal(t, "Source", res.Citations[0].Label)
	assert.Equal(t, 3, res.Citations[0].Number)
	assert.Equal(t, "premier", res.Citations[0].Quote)
	assert.Equal(t, "[KB-12]", res.Citations[1].Text())
	assert.False(t, res.Citations[1].HasQuote())
	assert.True(t, res.HasQuote)
}

func TestUnverifiedLabels(t *testing.T) {
	c := NewChecker(DefaultPatterns())
	res := c.Validate(`[Source-1] "a" [Source-3] "b" [Source-3] [KB-1] [مصدر-2]`)

	warnings := c.UnverifiedLabels(res, 2)
	assert.Equal(t, []Warning{
		{Label: "[Source-3]", Reason: "source not in context"},
		{Label: "[KB-1]", Reason: "unknown citation label"},
	}, warnings)
}
