package rag

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var lexicalStopwords = map[string]struct{}{
	// French
	"le": {}, "la": {}, "les": {}, "un": {}, "une": {}, "des": {}, "de": {}, "du": {}, "et": {}, "ou": {},
	"en": {}, "dans": {}, "par": {}, "pour": {}, "sur": {}, "au": {}, "aux": {}, "est": {}, "sont": {},
	"que": {}, "qui": {}, "quoi": {}, "ce": {}, "ces": {}, "cette": {}, "il": {}, "elle": {}, "se": {},
	"sa": {}, "son": {}, "ses": {}, "l": {}, "d": {}, "qu": {}, "a": {}, "avec": {}, "quel": {},
	"quels": {}, "quelle": {}, "quelles": {}, "comment": {}, "pourquoi": {}, "ne": {}, "pas": {},
	// Arabic, after normalization
	"في": {}, "من": {}, "علي": {}, "الي": {}, "عن": {}, "ما": {}, "هي": {}, "هو": {}, "هل": {},
	"التي": {}, "الذي": {}, "ان": {}, "او": {}, "و": {}, "كيف": {}, "ماذا": {}, "لماذا": {}, "مع": {},
	"هذا": {}, "هذه": {}, "ذلك": {}, "تلك": {}, "كل": {}, "قد": {}, "لا": {}, "ثم": {},
}

var arabicLetterFold = strings.NewReplacer(
	"ـ", "", // tatweel
	"ى", "ي",
	"ة", "ه",
)

// normalizeText lowercases, strips combining marks (French accents and Arabic diacritics, which also
// folds hamza-carrying alef forms to bare alef) and folds Arabic letter variants.
func normalizeText(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		folded = strings.ToLower(text)
	}
	return arabicLetterFold.Replace(folded)
}

// tokenize splits normalized text on anything that is not a letter or a digit.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range normalizeText(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	tokens := strings.Fields(builder.String())
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

func filterStopwords(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}

	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := lexicalStopwords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// queryTerms returns the distinct content terms of text in first-seen order.
func queryTerms(text string) []string {
	tokens := filterStopwords(tokenize(text))
	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}
