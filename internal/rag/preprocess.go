package rag

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"legal-rag/internal/contextutil"
)

const (
	arabicRatioFloor = 0.7
	latinRatioCeil   = 0.3
)

// Reformulator expands a short query into a fuller legal question.
type Reformulator interface {
	Reformulate(ctx context.Context, query string, lang Language) (string, error)
}

// DetectLanguage classifies text by the ratio of Arabic-block letters to Latin letters.
// Text without letters is treated as French.
func DetectLanguage(text string) Language {
	var arabic, latin int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Arabic, r) && unicode.IsLetter(r):
			arabic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	total := arabic + latin
	if total == 0 {
		return LangFrench
	}
	ratio := float64(arabic) / float64(total)
	switch {
	case ratio >= arabicRatioFloor:
		return LangArabic
	case ratio <= latinRatioCeil:
		return LangFrench
	default:
		return LangBilingual
	}
}

// Classify decides whether a query is keyword-dominant or semantic-dominant. Ties go to semantic.
func Classify(text string, rules ClassifierRules) QueryClass {
	var keyword, semantic int
	for _, re := range rules.KeywordPatterns {
		if re.MatchString(text) {
			keyword++
		}
	}
	interrogative := false
	for _, re := range rules.InterrogativePatterns {
		if re.MatchString(text) {
			interrogative = true
			break
		}
	}
	if interrogative {
		semantic++
	}

	words := len(strings.Fields(text))
	if words <= rules.ShortQueryWords && !interrogative {
		keyword++
	}
	if rules.LongQueryWords > 0 && words > rules.LongQueryWords {
		semantic++
	}

	if keyword > semantic {
		return ClassKeyword
	}
	return ClassSemantic
}

// Preprocess builds the Query for raw. The expansion call is optional and never fatal.
func Preprocess(ctx context.Context, raw string, p Params, reformulator Reformulator) Query {
	logger := contextutil.LoggerFromContext(ctx)

	original := strings.TrimSpace(raw)
	q := Query{
		Original: original,
		Language: DetectLanguage(original),
		Class:    Classify(original, p.Classifier),
	}

	if reformulator == nil || utf8.RuneCountInString(original) >= p.ExpansionThreshold {
		return q
	}

	expandCtx := ctx
	if p.ExpansionTimeout > 0 {
		var cancel context.CancelFunc
		expandCtx, cancel = context.WithTimeout(ctx, p.ExpansionTimeout)
		defer cancel()
	}

	expanded, err := reformulator.Reformulate(expandCtx, original, q.Language)
	expanded = strings.TrimSpace(expanded)
	if err != nil || expanded == "" {
		q.Degraded = true
		logger.WarnContext(ctx, "query expansion failed, using original query",
			"degraded_mode", true,
			"error", err,
		)
		return q
	}

	q.Expanded = expanded
	logger.DebugContext(ctx, "query expanded", "original", original, "expanded", expanded)
	return q
}
