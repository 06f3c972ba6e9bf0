package indexer

// Chunk represents a chunk of text from a legal markdown document.
type Chunk struct {
	Index       int      // Chunk index within document (starts at 0)
	HeadingPath string   // Format: "# Heading1 > ## Heading2"
	Text        string   // Chunk text content
	Articles    []string // Article numbers opened in the chunk
	TokenCount  int
}
