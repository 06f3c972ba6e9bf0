package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"legal-rag/internal/contextutil"
	"legal-rag/internal/rag"
)

// PostgresStore keeps documents, chunk text and every provider's vector in one Postgres database
// with the pgvector extension. It implements rag.ChunkStore and the indexer's sink, and can replace
// the SQLite + Qdrant pair.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// vectorColumn returns the embedding column of a provider. Only known variants map to a column, so
// the name is safe to format into SQL.
func vectorColumn(p rag.Provider) (string, error) {
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %v", p)
	}
	return "embedding_" + p.String(), nil
}

// Migrate creates the extension and tables. dims overrides the default vector size per provider.
func (s *PostgresStore) Migrate(ctx context.Context, dims map[rag.Provider]int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS legal_documents (
			id UUID PRIMARY KEY,
			rel_path TEXT NOT NULL UNIQUE,
			title TEXT,
			category TEXT NOT NULL,
			language TEXT,
			source_type TEXT,
			hash TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS legal_chunks (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES legal_documents(id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			heading_path TEXT,
			articles TEXT[],
			token_count INT NOT NULL DEFAULT 0,
			text TEXT NOT NULL,
			tsv tsvector GENERATED ALWAYS AS (to_tsvector('simple', text)) STORED
		)`,
		`CREATE INDEX IF NOT EXISTS legal_chunks_tsv_idx ON legal_chunks USING GIN (tsv)`,
		`CREATE INDEX IF NOT EXISTS legal_chunks_document_idx ON legal_chunks (document_id)`,
	}
	for _, p := range rag.AllProviders() {
		col, _ := vectorColumn(p)
		size := p.Dimensions()
		if d, ok := dims[p]; ok && d > 0 {
			size = d
		}
		stmts = append(stmts, fmt.Sprintf(`ALTER TABLE legal_chunks ADD COLUMN IF NOT EXISTS %s vector(%d)`, col, size))
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SimilaritySearch implements rag.ChunkStore. Score blends cosine similarity with ts_rank_cd
// normalised into [0,1); VectorScore is the raw similarity.
func (s *PostgresStore) SimilaritySearch(ctx context.Context, req rag.SearchRequest) ([]rag.ScoredChunk, error) {
	col, err := vectorColumn(req.Provider)
	if err != nil {
		return nil, err
	}
	if req.Limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}

	query := fmt.Sprintf(`SELECT c.id::text, c.document_id::text, c.chunk_index, COALESCE(c.heading_path, ''),
		COALESCE(c.articles, '{}'), c.token_count, c.text,
		COALESCE(d.title, ''), d.category, COALESCE(d.language, ''), COALESCE(d.source_type, ''),
		1 - (c.%[1]s <=> $1) AS vector_score,
		ts_rank_cd(c.tsv, plainto_tsquery('simple', $2), 32) AS lexical_score
		FROM legal_chunks c JOIN legal_documents d ON d.id = c.document_id
		WHERE c.%[1]s IS NOT NULL
		AND ($3::text = '' OR d.category = $3)
		AND 1 - (c.%[1]s <=> $1) >= $4
		ORDER BY c.%[1]s <=> $1
		LIMIT $5`, col)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(req.Vector), req.QueryText, req.Category, req.Threshold, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var out []rag.ScoredChunk
	for rows.Next() {
		var rec ChunkRecord
		var vectorScore, lexicalScore float64
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.ChunkIndex, &rec.HeadingPath, &rec.Articles, &rec.TokenCount, &rec.Text,
			&rec.Title, &rec.Category, &rec.Language, &rec.SourceType, &vectorScore, &lexicalScore); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		out = append(out, rag.ScoredChunk{
			Chunk:       rec.ToChunk(),
			Score:       blend(vectorScore, lexicalScore, req.LexicalWeight),
			VectorScore: vectorScore,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func blend(vectorScore, lexicalScore, lexicalWeight float64) float64 {
	if lexicalWeight <= 0 {
		return vectorScore
	}
	return (1-lexicalWeight)*vectorScore + lexicalWeight*lexicalScore
}

// DocumentHash returns the stored content hash of relPath, or "" when the document is unknown.
func (s *PostgresStore) DocumentHash(ctx context.Context, relPath string) (string, error) {
	var hash string
	err := s.pool.QueryRow(ctx, `SELECT hash FROM legal_documents WHERE rel_path = $1`, relPath).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query document hash: %w", err)
	}
	return hash, nil
}

// ReplaceDocument upserts doc and replaces all its chunks in one transaction.
func (s *PostgresStore) ReplaceDocument(ctx context.Context, doc *DocumentRecord, chunks []IndexedChunk) error {
	logger := contextutil.LoggerFromContext(ctx)

	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = tx.QueryRow(ctx,
		`INSERT INTO legal_documents (id, rel_path, title, category, language, source_type, hash, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 ON CONFLICT (rel_path) DO UPDATE SET
		 title = excluded.title, category = excluded.category, language = excluded.language,
		 source_type = excluded.source_type, hash = excluded.hash, updated_at = now()
		 RETURNING id::text`,
		doc.ID, doc.RelPath, doc.Title, doc.Category, doc.Language, doc.SourceType, doc.Hash,
	).Scan(&doc.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM legal_chunks WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		args := []any{c.ID, doc.ID, c.ChunkIndex, c.HeadingPath, c.Articles, c.TokenCount, c.Text}
		for _, p := range rag.AllProviders() {
			if vec, ok := c.Vectors[p]; ok && len(vec) > 0 {
				args = append(args, pgvector.NewVector(vec))
			} else {
				args = append(args, nil)
			}
		}
		batch.Queue(`INSERT INTO legal_chunks
			(id, document_id, chunk_index, heading_path, articles, token_count, text, embedding_openai, embedding_ollama, embedding_bge)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, args...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	logger.InfoContext(ctx, "replaced document", "rel_path", doc.RelPath, "chunks", len(chunks))
	return nil
}
