package rag

import (
	"context"
	"math"
	"sort"

	"legal-rag/internal/contextutil"
)

// bm25K1 saturates repeated terms so one frequent word cannot dominate a chunk.
const bm25K1 = 1.2

// PairwiseScorer scores (query, chunk) relevance in [0,1], one score per chunk, in order.
type PairwiseScorer interface {
	Score(ctx context.Context, query string, chunks []Chunk) ([]float64, error)
}

// Reranker applies the lexical pass and then the pairwise pass. Both passes blend with the
// incoming score so they can be chained.
type Reranker struct {
	pairwise PairwiseScorer
	fallback PairwiseScorer
}

// NewReranker returns a Reranker. A nil pairwise scorer uses the heuristic scorer.
func NewReranker(pairwise PairwiseScorer) *Reranker {
	fallback := HeuristicPairwise{}
	if pairwise == nil {
		pairwise = fallback
	}
	return &Reranker{pairwise: pairwise, fallback: fallback}
}

// Rerank rescores results in place order-independently and returns them sorted by score, ties
// broken by original rank.
func (r *Reranker) Rerank(ctx context.Context, q Query, results []FusedResult, p Params) []FusedResult {
	if len(results) == 0 {
		return results
	}
	logger := contextutil.LoggerFromContext(ctx)

	out := make([]FusedResult, len(results))
	copy(out, results)

	var maxFused float64
	for _, res := range out {
		if res.FusedScore > maxFused {
			maxFused = res.FusedScore
		}
	}
	for i := range out {
		if maxFused > 0 {
			out[i].Score = out[i].FusedScore / maxFused
		} else {
			out[i].Score = 0
		}
	}

	texts := make([]string, len(out))
	chunks := make([]Chunk, len(out))
	for i, res := range out {
		texts[i] = res.Chunk.Text
		chunks[i] = res.Chunk
	}

	lexical := LexicalScores(q.Original, texts)
	for i := range out {
		out[i].LexicalScore = lexical[i]
		out[i].Score = p.LexicalBlend*lexical[i] + (1-p.LexicalBlend)*out[i].Score
	}

	pairwise, err := r.pairwise.Score(ctx, q.Original, chunks)
	if err != nil || len(pairwise) != len(chunks) {
		logger.WarnContext(ctx, "pairwise scorer failed, using heuristic scores", "error", err)
		pairwise, _ = r.fallback.Score(ctx, q.Original, chunks)
	}
	for i := range out {
		s := clamp01(pairwise[i])
		out[i].PairwiseScore = s
		out[i].Score = p.PairwiseBlend*s + (1-p.PairwiseBlend)*out[i].Score
	}

	sortByScore(out)
	return out
}

// LexicalScores computes an idf-weighted term overlap between the query and each text. Document
// frequencies come from the candidate set itself. Scores are normalized to [0,1].
func LexicalScores(query string, texts []string) []float64 {
	scores := make([]float64, len(texts))
	terms := queryTerms(query)
	if len(terms) == 0 || len(texts) == 0 {
		return scores
	}

	freqs := make([]map[string]int, len(texts))
	df := make(map[string]int, len(terms))
	for i, text := range texts {
		freq := make(map[string]int)
		for _, token := range tokenize(text) {
			freq[token]++
		}
		freqs[i] = freq
		for _, term := range terms {
			if freq[term] > 0 {
				df[term]++
			}
		}
	}

	n := float64(len(texts))
	idf := make(map[string]float64, len(terms))
	var idfTotal float64
	for _, term := range terms {
		d := float64(df[term])
		idf[term] = math.Log(1 + (n-d+0.5)/(d+0.5))
		idfTotal += idf[term]
	}
	if idfTotal == 0 {
		return scores
	}

	for i, freq := range freqs {
		var sum float64
		for _, term := range terms {
			tf := float64(freq[term])
			if tf == 0 {
				continue
			}
			sum += idf[term] * (tf * (bm25K1 + 1) / (tf + bm25K1)) / (bm25K1 + 1)
		}
		scores[i] = clamp01(sum / idfTotal)
	}
	return scores
}

func sortByScore(results []FusedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].OriginalRank < results[j].OriginalRank
	})
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
