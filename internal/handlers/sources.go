package handlers

import (
	"time"

	"legal-rag/internal/indexer"
	"legal-rag/internal/rag"
)

// SourceResponse is one ranked legal source.
//
// swagger:model SourceResponse
type SourceResponse struct {
	// Rank is the 1-based position; rank N backs the [Source-N] marker.
	Rank       int      `json:"rank"`
	ChunkID    string   `json:"chunk_id"`
	DocumentID string   `json:"document_id"`
	Title      string   `json:"title,omitempty"`
	Category   string   `json:"category"`
	SourceType string   `json:"source_type,omitempty"`
	Articles   []string `json:"articles,omitempty"`
	Text       string   `json:"text"`
	Scores     Scores   `json:"scores"`
	Forced     bool     `json:"forced,omitempty"`
	// Abrogated is set when the text marks the provision as repealed or superseded.
	Abrogated        bool       `json:"abrogated,omitempty"`
	AbrogationMarker string     `json:"abrogation_marker,omitempty"`
	Boosts           []rag.Boost `json:"boosts,omitempty"`
}

// Scores exposes every stage score of a source.
//
// swagger:model Scores
type Scores struct {
	Vector        float64 `json:"vector"`
	RRF           float64 `json:"rrf"`
	Fused         float64 `json:"fused"`
	Lexical       float64 `json:"lexical"`
	Pairwise      float64 `json:"pairwise"`
	Final         float64 `json:"final"`
	PreAbrogation float64 `json:"pre_abrogation,omitempty"`
}

func toSources(results []rag.FusedResult) []SourceResponse {
	out := make([]SourceResponse, len(results))
	for i, r := range results {
		out[i] = SourceResponse{
			Rank:       i + 1,
			ChunkID:    r.Chunk.ID,
			DocumentID: r.Chunk.DocumentID,
			Title:      r.Chunk.Title,
			Category:   r.Chunk.Category,
			SourceType: r.Chunk.SourceType,
			Articles:   r.Chunk.Articles,
			Text:       r.Chunk.Text,
			Scores: Scores{
				Vector:        r.VectorScore,
				RRF:           r.RRFScore,
				Fused:         r.FusedScore,
				Lexical:       r.LexicalScore,
				Pairwise:      r.PairwiseScore,
				Final:         r.Score,
				PreAbrogation: r.PreAbrogationScore,
			},
			Forced:           r.Forced,
			Abrogated:        r.Abrogated,
			AbrogationMarker: r.AbrogationMarker,
			Boosts:           r.Boosts,
		}
	}
	return out
}

// DebugInfo contains debug information when debug mode is enabled.
//
// swagger:model DebugInfo
type DebugInfo struct {
	// Query is the analysed question: language, class, expansion and degraded mode.
	Query rag.Query `json:"query"`
	// Latency contains timing breakdown for each stage of the pipeline.
	Latency LatencyBreakdown `json:"latency"`
	// Providers reports each embedding provider's outcome.
	Providers []rag.ProviderStatus `json:"providers,omitempty"`
	// Attempts lists the generation cascade attempts in order.
	Attempts       []rag.Attempt `json:"attempts,omitempty"`
	Searches       int           `json:"searches"`
	FailedSearches int           `json:"failed_searches"`
	Candidates     int           `json:"candidates"`
	Dropped        int           `json:"dropped"`
	Threshold      float64       `json:"threshold"`
	Relaxed        bool          `json:"relaxed,omitempty"`
	// IndexingCoverage is the outcome of the last corpus indexing run, when known.
	IndexingCoverage *indexer.IndexingCoverageStats `json:"indexing_coverage,omitempty"`
}

// LatencyBreakdown contains timing information for each stage (milliseconds).
//
// swagger:model LatencyBreakdown
type LatencyBreakdown struct {
	PreprocessMs int64 `json:"preprocess_ms"`
	EmbedMs      int64 `json:"embed_ms"`
	SearchMs     int64 `json:"search_ms"`
	RankMs       int64 `json:"rank_ms"`
	GenerationMs int64 `json:"generation_ms"`
	TotalMs      int64 `json:"total_ms"`
}

// CoverageSource reports the last indexing run.
type CoverageSource interface {
	LastStats() *indexer.IndexingCoverageStats
}

func buildDebug(rc rag.RankedContext, attempts []rag.Attempt, generation, total time.Duration, coverage CoverageSource) *DebugInfo {
	d := &DebugInfo{
		Query: rc.Query,
		Latency: LatencyBreakdown{
			PreprocessMs: rc.Stats.PreprocessDur.Milliseconds(),
			EmbedMs:      rc.Stats.EmbedDur.Milliseconds(),
			SearchMs:     rc.Stats.SearchDur.Milliseconds(),
			RankMs:       rc.Stats.RankDur.Milliseconds(),
			GenerationMs: generation.Milliseconds(),
			TotalMs:      total.Milliseconds(),
		},
		Providers:      rc.Providers,
		Attempts:       attempts,
		Searches:       rc.Stats.Searches,
		FailedSearches: rc.Stats.FailedSearch,
		Candidates:     rc.Stats.Candidates,
		Dropped:        rc.Stats.Dropped,
		Threshold:      rc.Threshold,
		Relaxed:        rc.Relaxed,
	}
	if coverage != nil {
		d.IndexingCoverage = coverage.LastStats()
	}
	return d
}
