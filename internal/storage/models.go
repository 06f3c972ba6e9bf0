package storage

import (
	"strings"
	"time"

	"legal-rag/internal/rag"
)

// DocumentRecord is one legal source file (a code, a law, a ruling) in the corpus.
type DocumentRecord struct {
	ID         string // UUID
	RelPath    string // Relative path from corpus root
	Title      string
	Category   string // First path segment: codes, jurisprudence, ...
	Language   string
	SourceType string
	Hash       string // SHA256 hex string of file content
	UpdatedAt  time.Time
}

// ChunkRecord is an indexed chunk joined with the document fields the pipeline needs.
type ChunkRecord struct {
	ID          string // UUID (same as Qdrant point ID)
	DocumentID  string
	ChunkIndex  int
	HeadingPath string // Format: "# Heading1 > ## Heading2"
	Articles    []string
	TokenCount  int
	Text        string

	// Joined from documents on reads.
	Title      string
	Category   string
	Language   string
	SourceType string
}

// ToChunk converts the record to the pipeline's chunk type.
func (c ChunkRecord) ToChunk() rag.Chunk {
	title := c.Title
	if c.HeadingPath != "" {
		title = c.HeadingPath
		if c.Title != "" && !strings.HasPrefix(c.HeadingPath, c.Title) {
			title = c.Title + " > " + c.HeadingPath
		}
	}
	return rag.Chunk{
		ID:         c.ID,
		DocumentID: c.DocumentID,
		Title:      title,
		Category:   c.Category,
		Language:   c.Language,
		Text:       c.Text,
		TokenCount: c.TokenCount,
		Articles:   c.Articles,
		SourceType: c.SourceType,
	}
}

func joinArticles(articles []string) string {
	return strings.Join(articles, ",")
}

func splitArticles(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// IndexedChunk is a chunk ready to be written with its vectors, keyed by provider. A provider that
// failed during indexing has no entry.
type IndexedChunk struct {
	ChunkRecord
	Vectors map[rag.Provider][]float32
}
