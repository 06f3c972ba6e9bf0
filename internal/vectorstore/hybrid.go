package vectorstore

import (
	"context"
	"fmt"
	"sort"

	"legal-rag/internal/contextutil"
	"legal-rag/internal/rag"
	"legal-rag/internal/storage"
)

// ChunkLoader resolves point IDs to chunk text and metadata.
type ChunkLoader interface {
	GetByIDs(ctx context.Context, ids []string) ([]storage.ChunkRecord, error)
}

// HybridStore implements rag.ChunkStore on top of a VectorStore holding the named vectors and a
// ChunkLoader holding the text. The returned score blends vector similarity with a lexical score
// computed over the hits; VectorScore stays the raw similarity.
type HybridStore struct {
	vectors    VectorStore
	chunks     ChunkLoader
	collection string
}

// NewHybridStore creates a new hybrid store over collection.
func NewHybridStore(vectors VectorStore, chunks ChunkLoader, collection string) *HybridStore {
	return &HybridStore{vectors: vectors, chunks: chunks, collection: collection}
}

// SimilaritySearch implements rag.ChunkStore.
func (h *HybridStore) SimilaritySearch(ctx context.Context, req rag.SearchRequest) ([]rag.ScoredChunk, error) {
	logger := contextutil.LoggerFromContext(ctx)

	query := SearchQuery{
		Using:          req.Provider.String(),
		Vector:         req.Vector,
		Limit:          req.Limit,
		ScoreThreshold: float32(req.Threshold),
	}
	if req.Category != "" {
		query.Filters = map[string]string{"category": req.Category}
	}

	hits, err := h.vectors.Search(ctx, h.collection, query)
	if err != nil {
		return nil, fmt.Errorf("vector search %s: %w", req.Provider, err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.PointID
	}
	records, err := h.chunks.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	byID := make(map[string]storage.ChunkRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	out := make([]rag.ScoredChunk, 0, len(hits))
	texts := make([]string, 0, len(hits))
	for _, hit := range hits {
		rec, ok := byID[hit.PointID]
		if !ok {
			logger.DebugContext(ctx, "vector hit without chunk record", "point_id", hit.PointID)
			continue
		}
		out = append(out, rag.ScoredChunk{
			Chunk:       rec.ToChunk(),
			Score:       float64(hit.Score),
			VectorScore: float64(hit.Score),
		})
		texts = append(texts, rec.Text)
	}

	if w := req.LexicalWeight; w > 0 && req.QueryText != "" {
		lexical := rag.LexicalScores(req.QueryText, texts)
		for i := range out {
			out[i].Score = (1-w)*out[i].VectorScore + w*lexical[i]
		}
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Score > out[j].Score
		})
	}
	return out, nil
}
