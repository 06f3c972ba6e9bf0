package rag

import (
	"context"
	"regexp"
	"slices"
)

var articleNumberPattern = regexp.MustCompile(`(?i)(?:\b(?:article|art\.?)|الفصل|فصل|المادة)\s*(\d+)`)

// HeuristicPairwise is a deterministic stand-in for a cross-encoder. It combines query-term
// coverage, bigram overlap and article-number agreement.
type HeuristicPairwise struct{}

// Score implements PairwiseScorer.
func (HeuristicPairwise) Score(_ context.Context, query string, chunks []Chunk) ([]float64, error) {
	terms := queryTerms(query)
	qBigrams := bigrams(filterStopwords(tokenize(query)))
	qArticles := articleNumbers(query)

	scores := make([]float64, len(chunks))
	for i, c := range chunks {
		tokens := filterStopwords(tokenize(c.Text))
		tokenSet := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			tokenSet[t] = struct{}{}
		}

		var weights, total float64
		if len(terms) > 0 {
			var hit int
			for _, t := range terms {
				if _, ok := tokenSet[t]; ok {
					hit++
				}
			}
			total += 0.5 * float64(hit) / float64(len(terms))
			weights += 0.5
		}
		if len(qBigrams) > 0 {
			cBigrams := bigrams(tokens)
			var hit int
			for b := range qBigrams {
				if _, ok := cBigrams[b]; ok {
					hit++
				}
			}
			total += 0.3 * float64(hit) / float64(len(qBigrams))
			weights += 0.3
		}
		if len(qArticles) > 0 {
			chunkArticles := append(articleNumbers(c.Text), c.Articles...)
			for _, a := range qArticles {
				if slices.Contains(chunkArticles, a) {
					total += 0.2
					break
				}
			}
			weights += 0.2
		}

		if weights > 0 {
			scores[i] = clamp01(total / weights)
		}
	}
	return scores, nil
}

func bigrams(tokens []string) map[string]struct{} {
	set := make(map[string]struct{})
	for i := 0; i+1 < len(tokens); i++ {
		set[tokens[i]+" "+tokens[i+1]] = struct{}{}
	}
	return set
}

func articleNumbers(text string) []string {
	matches := articleNumberPattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if !slices.Contains(out, m[1]) {
			out = append(out, m[1])
		}
	}
	return out
}
