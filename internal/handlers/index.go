package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"legal-rag/internal/contextutil"
	"legal-rag/internal/indexer"
)

// CorpusIndexer indexes a corpus directory.
type CorpusIndexer interface {
	IndexCorpus(ctx context.Context, root string, modelNames []string) (*indexer.IndexingCoverageStats, error)
}

// IndexHandler handles HTTP requests for triggering re-indexing of the legal corpus.
type IndexHandler struct {
	indexer    CorpusIndexer
	root       string
	modelNames []string

	mu        sync.Mutex
	running   bool
	lastStats *indexer.IndexingCoverageStats
	lastError string
	lastRun   time.Time
}

// NewIndexHandler creates a new IndexHandler for the corpus at root.
func NewIndexHandler(corpusIndexer CorpusIndexer, root string, modelNames []string) *IndexHandler {
	return &IndexHandler{
		indexer:    corpusIndexer,
		root:       root,
		modelNames: modelNames,
	}
}

// IndexResponse represents the response from the index endpoint.
type IndexResponse struct {
	Message   string                         `json:"message"`
	Status    string                         `json:"status"`
	LastRun   string                         `json:"last_run,omitempty"`
	LastError string                         `json:"last_error,omitempty"`
	Stats     *indexer.IndexingCoverageStats `json:"stats,omitempty"`
}

// LastStats returns the coverage stats of the last finished run, or nil.
func (h *IndexHandler) LastStats() *indexer.IndexingCoverageStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastStats
}

// ServeHTTP starts a re-indexing run on POST and reports the last run on GET.
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	switch r.Method {
	case http.MethodGet:
		writeJSON(ctx, w, http.StatusOK, h.status())
		return
	case http.MethodPost:
	default:
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		writeJSON(ctx, w, http.StatusConflict, IndexResponse{Message: "Indexing already in progress", Status: "running"})
		return
	}
	h.running = true
	h.mu.Unlock()

	logger.InfoContext(ctx, "re-indexing triggered via API", "root", h.root)

	// Use a detached context so indexing continues after the HTTP request completes
	indexCtx := contextutil.WithLogger(context.Background(), logger)
	go h.run(indexCtx)

	writeJSON(ctx, w, http.StatusAccepted, IndexResponse{
		Message: "Indexing started. Check server logs for progress.",
		Status:  "accepted",
	})
}

func (h *IndexHandler) run(ctx context.Context) {
	logger := contextutil.LoggerFromContext(ctx)

	stats, err := h.indexer.IndexCorpus(ctx, h.root, h.modelNames)
	if err != nil {
		logger.ErrorContext(ctx, "re-indexing completed with errors", "error", err)
	} else {
		logger.InfoContext(ctx, "re-indexing completed successfully")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = false
	h.lastRun = time.Now().UTC()
	if stats != nil {
		h.lastStats = stats
	}
	h.lastError = ""
	if err != nil {
		h.lastError = err.Error()
	}
}

func (h *IndexHandler) status() IndexResponse {
	h.mu.Lock()
	defer h.mu.Unlock()

	resp := IndexResponse{Status: "idle", Message: "No indexing run yet", Stats: h.lastStats, LastError: h.lastError}
	if !h.lastRun.IsZero() {
		resp.LastRun = h.lastRun.Format(time.RFC3339)
		resp.Message = "Last indexing run finished"
	}
	if h.running {
		resp.Status = "running"
		resp.Message = "Indexing in progress"
	}
	return resp
}
