package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks legal-rag/internal/vectorstore VectorStore

import "context"

// Point is a chunk with one named vector per embedding provider. Providers that failed during
// indexing simply have no entry.
type Point struct {
	ID      string
	Vectors map[string][]float32
	Payload map[string]any
}

// SearchQuery is a similarity search against one named vector.
type SearchQuery struct {
	// Using is the vector name to search (the provider name).
	Using  string
	Vector []float32
	Limit  int
	// ScoreThreshold drops hits below this similarity. Zero disables it.
	ScoreThreshold float32
	// Filters are exact keyword matches on payload fields (category, document_id).
	Filters map[string]string
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Payload map[string]any
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a similarity search with optional filters.
	Search(ctx context.Context, collection string, query SearchQuery) ([]SearchResult, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error
}
