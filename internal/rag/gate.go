package rag

import (
	"context"
	"fmt"

	"legal-rag/internal/contextutil"
)

// ApplyQualityGate keeps results whose primary vector score reaches the language threshold. The
// secondary thresholds are tried only when allowRelaxed is set and the primary gate kept nothing.
// The returned threshold is the one that produced the kept set.
func ApplyQualityGate(ctx context.Context, results []FusedResult, lang Language, t Thresholds, allowRelaxed bool) ([]FusedResult, float64, bool) {
	logger := contextutil.LoggerFromContext(ctx)

	threshold := t.For(lang, false)
	kept := filterByVectorScore(results, threshold)
	if len(kept) > 0 || !allowRelaxed {
		logger.InfoContext(ctx, "quality gate applied",
			"language", lang,
			"threshold", threshold,
			"kept", len(kept),
			"dropped", len(results)-len(kept),
		)
		return kept, threshold, false
	}

	relaxed := t.For(lang, true)
	kept = filterByVectorScore(results, relaxed)
	logger.WarnContext(ctx, "primary quality gate empty, relaxed thresholds applied",
		"language", lang,
		"primary_threshold", threshold,
		"secondary_threshold", relaxed,
		"kept", len(kept),
	)
	return kept, relaxed, true
}

func filterByVectorScore(results []FusedResult, threshold float64) []FusedResult {
	kept := make([]FusedResult, 0, len(results))
	for _, r := range results {
		if r.VectorScore >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}

// DemoteAbrogated multiplies the score of every chunk carrying a repeal marker by the strongest
// matching factor, exactly once, and flags it. No result is removed. The output is re-sorted by
// final score with ties broken by original rank.
func DemoteAbrogated(ctx context.Context, results []FusedResult, markers []AbrogationMarker) ([]FusedResult, []AbrogationFlag) {
	logger := contextutil.LoggerFromContext(ctx)

	out := make([]FusedResult, len(results))
	copy(out, results)

	var flags []AbrogationFlag
	for i := range out {
		marker, ok := strongestMarker(out[i].Chunk, markers)
		if !ok {
			continue
		}
		out[i].PreAbrogationScore = out[i].Score
		out[i].Score *= marker.Factor
		out[i].Abrogated = true
		out[i].AbrogationMarker = marker.Term

		flags = append(flags, AbrogationFlag{
			ChunkID:    out[i].Chunk.ID,
			DocumentID: out[i].Chunk.DocumentID,
			Title:      out[i].Chunk.Title,
			Articles:   out[i].Chunk.Articles,
			Marker:     marker.Term,
			Language:   marker.Language,
			Severity:   marker.Severity,
			Factor:     marker.Factor,
		})
		logger.InfoContext(ctx, "abrogated source demoted",
			"chunk_id", out[i].Chunk.ID,
			"marker", marker.Term,
			"factor", marker.Factor,
		)
	}

	sortByScore(out)
	return out, flags
}

// strongestMarker returns the matching marker with the lowest factor.
func strongestMarker(c Chunk, markers []AbrogationMarker) (AbrogationMarker, bool) {
	var best AbrogationMarker
	found := false
	for _, m := range markers {
		if m.Pattern == nil || !m.Pattern.MatchString(c.Text) {
			continue
		}
		if !found || m.Factor < best.Factor {
			best = m
			found = true
		}
	}
	return best, found
}

// gateEmptyError builds the QUALITY_GATE_EMPTY failure for lang.
func gateEmptyError(lang Language, candidates int, threshold float64) *Error {
	return newError(ErrQualityGateEmpty, CodeQualityGateEmpty,
		fmt.Sprintf("no source above threshold %.2f for language %s (%d candidates)", threshold, lang, candidates), nil)
}
