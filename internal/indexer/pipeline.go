package indexer

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"legal-rag/internal/contextutil"
	"legal-rag/internal/corpus"
	"legal-rag/internal/rag"
	"legal-rag/internal/storage"
)

const embedBatchSize = 32

// BatchEmbedder embeds chunk texts for one provider slot.
type BatchEmbedder interface {
	Provider() rag.Provider
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline indexes legal markdown files: chunk, embed with every provider, write through a Sink.
type Pipeline struct {
	sink      Sink
	embedders []BatchEmbedder
	chunker   *LegalChunker
}

// NewPipeline creates a new indexing pipeline.
func NewPipeline(sink Sink, embedders []BatchEmbedder, chunker *LegalChunker) *Pipeline {
	if chunker == nil {
		chunker = NewLegalChunker(nil)
	}
	return &Pipeline{
		sink:      sink,
		embedders: embedders,
		chunker:   chunker,
	}
}

// FileResult describes what IndexFile did with one file.
type FileResult struct {
	RelPath         string
	Unchanged       bool
	Chunks          []Chunk
	FailedProviders []string
}

// IndexFile indexes a single file. Unchanged files (same SHA256) are skipped. A provider that fails
// leaves its vector slot empty for this file; the file fails only when every provider fails.
func (p *Pipeline) IndexFile(ctx context.Context, file corpus.File) (FileResult, error) {
	logger := contextutil.LoggerFromContext(ctx)
	result := FileResult{RelPath: file.RelPath}

	content, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return result, fmt.Errorf("failed to read file %s: %w", file.AbsPath, err)
	}

	hashHex := fmt.Sprintf("%x", sha256.Sum256(content))
	existingHash, err := p.sink.DocumentHash(ctx, file.RelPath)
	if err != nil {
		return result, err
	}
	if existingHash == hashHex {
		logger.DebugContext(ctx, "skipping unchanged file", "rel_path", file.RelPath, "hash", hashHex)
		result.Unchanged = true
		return result, nil
	}

	title, chunks, err := p.chunker.ChunkMarkdown(content, filepath.Base(file.RelPath))
	if err != nil {
		return result, fmt.Errorf("failed to chunk markdown: %w", err)
	}
	result.Chunks = chunks

	doc := &storage.DocumentRecord{
		RelPath:    file.RelPath,
		Title:      title,
		Category:   file.Category,
		Language:   string(rag.DetectLanguage(string(content))),
		SourceType: file.SourceType(),
		Hash:       hashHex,
	}

	if len(chunks) == 0 {
		logger.WarnContext(ctx, "no chunks generated", "rel_path", file.RelPath)
		return result, p.sink.ReplaceDocument(ctx, doc, nil)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, failed := p.embedAll(ctx, texts)
	result.FailedProviders = failed
	if len(vectors) == 0 {
		return result, fmt.Errorf("failed to generate embeddings: all %d providers failed", len(p.embedders))
	}

	indexed := make([]storage.IndexedChunk, len(chunks))
	for i, chunk := range chunks {
		perProvider := make(map[rag.Provider][]float32, len(vectors))
		for provider, vecs := range vectors {
			perProvider[provider] = vecs[i]
		}
		indexed[i] = storage.IndexedChunk{
			ChunkRecord: storage.ChunkRecord{
				ID:          uuid.New().String(),
				ChunkIndex:  chunk.Index,
				HeadingPath: chunk.HeadingPath,
				Articles:    chunk.Articles,
				TokenCount:  chunk.TokenCount,
				Text:        chunk.Text,
			},
			Vectors: perProvider,
		}
	}

	if err := p.sink.ReplaceDocument(ctx, doc, indexed); err != nil {
		return result, err
	}

	logger.InfoContext(ctx, "indexed document", "rel_path", file.RelPath, "chunks", len(chunks), "title", title, "failed_providers", failed)
	return result, nil
}

// embedAll embeds texts with every provider concurrently. It returns the successful providers'
// vectors and the names of the ones that failed.
func (p *Pipeline) embedAll(ctx context.Context, texts []string) (map[rag.Provider][][]float32, []string) {
	logger := contextutil.LoggerFromContext(ctx)

	type outcome struct {
		provider rag.Provider
		vectors  [][]float32
		err      error
	}
	outcomes := make([]outcome, len(p.embedders))

	var wg sync.WaitGroup
	for i, e := range p.embedders {
		wg.Add(1)
		go func(i int, e BatchEmbedder) {
			defer wg.Done()
			vecs, err := embedBatched(ctx, e, texts)
			outcomes[i] = outcome{provider: e.Provider(), vectors: vecs, err: err}
		}(i, e)
	}
	wg.Wait()

	vectors := make(map[rag.Provider][][]float32, len(outcomes))
	var failed []string
	for _, o := range outcomes {
		if o.err != nil {
			logger.WarnContext(ctx, "embedding provider failed during indexing", "provider", o.provider.String(), "error", o.err)
			failed = append(failed, o.provider.String())
			continue
		}
		vectors[o.provider] = o.vectors
	}
	return vectors, failed
}

func embedBatched(ctx context.Context, e BatchEmbedder, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		vecs, err := e.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", end-start, len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// IndexCorpus scans root and indexes every markdown file.
// Errors for individual files are logged but don't stop the indexing process.
func (p *Pipeline) IndexCorpus(ctx context.Context, root string, modelNames []string) (*IndexingCoverageStats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	files, err := corpus.Scan(ctx, root)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "starting indexing", "root", root, "total_files", len(files))
	stats := NewCoverageStats(modelNames)

	var errorCount int
	for _, file := range files {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		res, err := p.IndexFile(ctx, file)
		stats.Record(res, err)
		if err != nil {
			errorCount++
			logger.ErrorContext(ctx, "failed to index file", "rel_path", file.RelPath, "error", err)
			continue
		}
	}
	stats.Finalize()

	logger.InfoContext(ctx, "indexing completed", "total_files", len(files), "errors", errorCount, "chunks", stats.ChunksEmbedded)

	if errorCount > 0 {
		return stats, fmt.Errorf("indexing completed with %d errors", errorCount)
	}
	return stats, nil
}
