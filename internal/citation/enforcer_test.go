package citation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSources = []string{
	"يعتبر في حالة دفاع شرعي من يدفع عن نفسه اعتداء حالا وغير شرعي.",
	"N'est pas punissable celui qui commet un acte commandé par la nécessité actuelle de la légitime défense.",
}

func TestEnforceNoCitationsPrepends(t *testing.T) {
	c := NewChecker(DefaultPatterns())

	out := c.Enforce("شروط الدفاع الشرعي هي...", testSources)

	require.True(t, out.Applied)
	assert.Equal(t, IssueNoCitations, out.Before)
	assert.Equal(t, StrategyPrepend, out.Strategy)
	assert.True(t, strings.HasPrefix(out.Text, `[Source-1] "`+testSources[0]+`"`))
	assert.True(t, strings.HasSuffix(out.Text, "\n\nشروط الدفاع الشرعي هي..."))
	assert.Equal(t, IssueValid, out.After)
	assert.Equal(t, IssueValid, c.Validate(out.Text).Issue)
}

func TestEnforceTooLateRelocates(t *testing.T) {
	c := NewChecker(DefaultPatterns())
	text := `Il faut savoir que dans le droit tunisien la légitime défense est admise sous certaines conditions strictes [Source-2] "acte commandé par la nécessité" et la suite.`
	require.Equal(t, 17, c.Validate(text).WordsBeforeFirst)

	out := c.Enforce(text, testSources)

	require.True(t, out.Applied)
	assert.Equal(t, StrategyRelocate, out.Strategy)
	assert.Equal(t, `[Source-2] "acte commandé par la nécessité" Il faut savoir que dans le droit tunisien la légitime défense est admise sous certaines conditions strictes et la suite.`, out.Text)

	res := c.Validate(out.Text)
	assert.LessOrEqual(t, res.WordsBeforeFirst, 10)
	assert.Equal(t, IssueValid, out.After)
}

func TestEnforceTooLateWithoutQuoteChangesIssue(t *testing.T) {
	c := NewChecker(DefaultPatterns())
	text := "un deux trois quatre cinq six sept huit neuf dix onze douze [Source-1] fin."

	out := c.Enforce(text, testSources)

	assert.Equal(t, IssueCitationTooLate, out.Before)
	assert.NotEqual(t, out.Before, out.After)
	assert.Equal(t, IssueMissingQuote, out.After)
}

func TestEnforceMissingQuoteSplices(t *testing.T) {
	c := NewChecker(DefaultPatterns())

	out := c.Enforce("[Source-2] La légitime défense suppose une agression.", testSources)

	require.True(t, out.Applied)
	assert.Equal(t, StrategySplice, out.Strategy)
	assert.Equal(t, `[Source-2] "`+testSources[1]+`" La légitime défense suppose une agression.`, out.Text)
	assert.Equal(t, IssueValid, out.After)
}

func TestEnforceMissingQuoteOutOfRangeUsesTopSource(t *testing.T) {
	c := NewChecker(DefaultPatterns())

	out := c.Enforce("[Source-9] explication", testSources)

	assert.Equal(t, `[Source-9] "`+testSources[0]+`" explication`, out.Text)
}

func TestEnforceMissingCitationFirst(t *testing.T) {
	c := NewChecker(DefaultPatterns())

	out := c.Enforce(`Selon la loi, [Source-1] "texte" explique la règle.`, testSources)

	assert.Equal(t, IssueMissingCitationFirst, out.Before)
	assert.Equal(t, StrategyPrepend, out.Strategy)
	assert.Equal(t, IssueValid, out.After)
}

func TestEnforceWithoutSourcesNeverInvents(t *testing.T) {
	c := NewChecker(DefaultPatterns())
	for _, text := range []string{
		"pas de citation",
		"un deux trois quatre cinq six sept huit neuf dix onze douze [Source-1] fin.",
		"[Source-1] sans citation",
	} {
		out := c.Enforce(text, nil)
		assert.False(t, out.Applied)
		assert.Equal(t, text, out.Text)
		assert.Equal(t, StrategyNone, out.Strategy)
	}
}

func TestEnforceValidUnchanged(t *testing.T) {
	c := NewChecker(DefaultPatterns())
	text := `[Source-1] "texte" explication`

	out := c.Enforce(text, testSources)

	assert.False(t, out.Applied)
	assert.Equal(t, text, out.Text)
	assert.Equal(t, IssueValid, out.After)
}

func TestExcerpt(t *testing.T) {
	c := NewChecker(DefaultPatterns())

	t.Run("short text kept", func(t *testing.T) {
		assert.Equal(t, "Texte court.", c.Excerpt("  Texte   court. "))
	})

	t.Run("complete sentences", func(t *testing.T) {
		long := "Première phrase courte. " + strings.Repeat("mot ", 60) + "fin."
		assert.Equal(t, "Première phrase courte.", c.Excerpt(long))
	})

	t.Run("word boundary cut", func(t *testing.T) {
		got := c.Excerpt(strings.Repeat("abcdef ", 50))
		assert.True(t, strings.HasSuffix(got, "..."))
		assert.LessOrEqual(t, utf8.RuneCountInString(got), 200)
		assert.False(t, strings.Contains(got, "abcdef ..."))
	})

	t.Run("quotes sanitized", func(t *testing.T) {
		assert.Equal(t, "Il a dit 'non'.", c.Excerpt(`Il a dit "non".`))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, c.Excerpt("   "))
	})
}
