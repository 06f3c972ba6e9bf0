package indexer

import (
	"context"
	"errors"
	"fmt"

	"legal-rag/internal/contextutil"
	"legal-rag/internal/rag"
	"legal-rag/internal/storage"
	"legal-rag/internal/vectorstore"
)

// Sink persists indexed documents. storage.PostgresStore and SQLiteQdrantSink implement it.
type Sink interface {
	// DocumentHash returns the stored content hash of relPath, or "" when unseen.
	DocumentHash(ctx context.Context, relPath string) (string, error)
	// ReplaceDocument upserts doc and replaces all of its chunks.
	ReplaceDocument(ctx context.Context, doc *storage.DocumentRecord, chunks []storage.IndexedChunk) error
}

// SQLiteQdrantSink writes text and metadata to SQLite and the named vectors to Qdrant.
type SQLiteQdrantSink struct {
	docs       storage.DocumentStore
	chunks     storage.ChunkStore
	vectors    vectorstore.VectorStore
	collection string
}

// NewSQLiteQdrantSink creates a new sink.
func NewSQLiteQdrantSink(docs storage.DocumentStore, chunks storage.ChunkStore, vectors vectorstore.VectorStore, collection string) *SQLiteQdrantSink {
	return &SQLiteQdrantSink{docs: docs, chunks: chunks, vectors: vectors, collection: collection}
}

// DocumentHash implements Sink.
func (s *SQLiteQdrantSink) DocumentHash(ctx context.Context, relPath string) (string, error) {
	doc, err := s.docs.GetByPath(ctx, relPath)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to check existing document: %w", err)
	}
	return doc.Hash, nil
}

// ReplaceDocument implements Sink.
func (s *SQLiteQdrantSink) ReplaceDocument(ctx context.Context, doc *storage.DocumentRecord, chunks []storage.IndexedChunk) error {
	logger := contextutil.LoggerFromContext(ctx)

	if err := s.docs.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	oldChunkIDs, err := s.chunks.ListIDsByDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to list old chunk IDs: %w", err)
	}
	if len(oldChunkIDs) > 0 {
		if err := s.vectors.Delete(ctx, s.collection, oldChunkIDs); err != nil {
			// new points are written with fresh IDs, stale ones only waste space
			logger.WarnContext(ctx, "failed to delete old chunks from Qdrant", "error", err, "count", len(oldChunkIDs))
		}
		if err := s.chunks.DeleteByDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("failed to delete old chunks from SQLite: %w", err)
		}
	}

	points := make([]vectorstore.Point, 0, len(chunks))
	for i := range chunks {
		record := chunks[i].ChunkRecord
		record.DocumentID = doc.ID
		if err := s.chunks.Insert(ctx, &record); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}

		named := make(map[string][]float32, len(chunks[i].Vectors))
		for _, p := range rag.AllProviders() {
			if vec, ok := chunks[i].Vectors[p]; ok && len(vec) > 0 {
				named[p.String()] = vec
			}
		}
		if len(named) == 0 {
			continue
		}
		points = append(points, vectorstore.Point{
			ID:      record.ID,
			Vectors: named,
			Payload: map[string]any{
				"document_id":  doc.ID,
				"rel_path":     doc.RelPath,
				"category":     doc.Category,
				"language":     doc.Language,
				"title":        doc.Title,
				"heading_path": record.HeadingPath,
				"chunk_index":  record.ChunkIndex,
				"articles":     stringsToAny(record.Articles),
			},
		})
	}

	if err := s.vectors.Upsert(ctx, s.collection, points); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	return nil
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
