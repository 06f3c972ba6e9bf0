package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"strings"
)

const (
	// ChunkerVersion changes whenever chunk boundaries would move, forcing a full reindex.
	ChunkerVersion = "v3.0-articles"
	// TokensPerRune is an approximation for token counting (4 chars per token).
	TokensPerRune = 4.0
)

// IndexingCoverageStats contains statistics about one indexing run.
type IndexingCoverageStats struct {
	// DocsProcessed is the total number of documents processed.
	DocsProcessed int `json:"docs_processed"`
	// DocsUnchanged is the number of documents skipped because their hash matched.
	DocsUnchanged int `json:"docs_unchanged"`
	// DocsFailed is the number of documents that could not be indexed.
	DocsFailed int `json:"docs_failed"`
	// DocsWith0Chunks is the number of documents that produced 0 chunks.
	DocsWith0Chunks int `json:"docs_with_0_chunks"`
	// ChunksAttempted is the total number of chunks that were attempted to be embedded.
	ChunksAttempted int `json:"chunks_attempted"`
	// ChunksEmbedded is the number of chunks stored with at least one vector.
	ChunksEmbedded int `json:"chunks_embedded"`
	// ChunksSkipped is the number of chunks not stored.
	ChunksSkipped int `json:"chunks_skipped"`
	// ChunksSkippedReasons is a breakdown of skipped chunks and missing vector slots.
	ChunksSkippedReasons map[string]int `json:"chunks_skipped_reasons,omitempty"`
	// ChunkTokenStats contains statistics about token counts per chunk.
	ChunkTokenStats ChunkTokenStats `json:"chunk_token_stats"`
	// ChunkerVersion is the version of the chunker used.
	ChunkerVersion string `json:"chunker_version"`
	// IndexVersion is a hash identifying the index build (chunker + embedding models + params).
	IndexVersion string `json:"index_version"`

	tokenCounts []int
}

// ChunkTokenStats contains statistics about token counts in chunks.
type ChunkTokenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// NewCoverageStats starts stats for a run embedding with modelNames.
func NewCoverageStats(modelNames []string) *IndexingCoverageStats {
	return &IndexingCoverageStats{
		ChunksSkippedReasons: make(map[string]int),
		ChunkerVersion:       ChunkerVersion,
		IndexVersion:         indexVersion(modelNames),
	}
}

// Record folds one IndexFile outcome into the stats.
func (s *IndexingCoverageStats) Record(res FileResult, err error) {
	s.DocsProcessed++
	switch {
	case res.Unchanged:
		s.DocsUnchanged++
		return
	case len(res.Chunks) == 0 && err == nil:
		s.DocsWith0Chunks++
		return
	}

	s.ChunksAttempted += len(res.Chunks)
	if err != nil {
		s.DocsFailed++
		s.ChunksSkipped += len(res.Chunks)
		s.ChunksSkippedReasons["document_failed"] += len(res.Chunks)
		return
	}

	s.ChunksEmbedded += len(res.Chunks)
	for _, provider := range res.FailedProviders {
		s.ChunksSkippedReasons["missing_vector:"+provider] += len(res.Chunks)
	}
	for _, chunk := range res.Chunks {
		s.tokenCounts = append(s.tokenCounts, chunk.TokenCount)
	}
}

// Finalize computes the token statistics.
func (s *IndexingCoverageStats) Finalize() {
	s.ChunkTokenStats = computeTokenStats(s.tokenCounts)
}

// indexVersion hashes chunker version, embedding models and chunking params.
func indexVersion(modelNames []string) string {
	sorted := slices.Sorted(slices.Values(modelNames))
	input := fmt.Sprintf("%s|%s|minChunkSize=%d|maxChunkSize=%d",
		ChunkerVersion, strings.Join(sorted, ","), minChunkSize, maxChunkSize)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16] // 16 hex chars = 64 bits
}

// computeTokenStats summarises chunk sizes. P95 takes the value at index ceil(0.95n), clamped to
// the last one.
func computeTokenStats(counts []int) ChunkTokenStats {
	if len(counts) == 0 {
		return ChunkTokenStats{}
	}
	sorted := slices.Sorted(slices.Values(counts))

	total := 0
	for _, c := range sorted {
		total += c
	}
	p95 := min(int(math.Ceil(0.95*float64(len(sorted)))), len(sorted)-1)

	return ChunkTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(float64(total)/float64(len(sorted))*100) / 100,
		P95:  sorted[p95],
	}
}
