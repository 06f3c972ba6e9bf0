// Package app wires the configured providers, stores and pipeline into a running application. The
// API server and the operator CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"legal-rag/internal/citation"
	"legal-rag/internal/config"
	"legal-rag/internal/handlers"
	"legal-rag/internal/indexer"
	"legal-rag/internal/llm"
	"legal-rag/internal/rag"
	"legal-rag/internal/service"
	"legal-rag/internal/storage"
	"legal-rag/internal/vectorstore"
)

// App holds the wired components.
type App struct {
	Config  *config.Config
	Params  rag.Params
	Engine  rag.Engine
	Service service.ConsultService
	Indexer *indexer.Pipeline
	// HealthChecks probe the stores; generation providers are not probed.
	HealthChecks map[string]handlers.HealthCheck
	// ModelNames identifies the embedding models for the index version.
	ModelNames []string

	closers []func() error
}

// New builds the application from cfg. Callers must Close it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := slog.Default()

	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:       cfg,
		Params:       params,
		HealthChecks: map[string]handlers.HealthCheck{},
	}

	embedders, batch, names := buildEmbedders(cfg)
	a.ModelNames = names
	logger.Info("embedding providers configured", "providers", cfg.EmbeddingProviders(), "models", names)

	generators, err := buildGenerators(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("generation providers configured", "count", len(generators))

	store, sink, err := a.openStores(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	tokens, err := llm.NewTiktokenCounter()
	if err != nil {
		logger.Warn("tokenizer unavailable, falling back to estimates", "error", err)
	}

	deps := rag.Deps{
		Embedders:  embedders,
		Store:      store,
		Generators: generators,
		Alerter:    rag.LogAlerter{},
		Tokens:     tokens,
		Citations:  citation.NewChecker(citation.DefaultPatterns()),
	}
	if cfg.ReformulateShorts && len(generators) > 0 {
		deps.Reformulator = llm.NewReformulator(generators[0])
	}
	if cfg.RerankURL != "" {
		deps.Pairwise = llm.NewRerankClient(cfg.RerankURL, "", cfg.RerankModel)
	}

	engine, err := rag.NewEngine(params, deps)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	a.Engine = engine
	a.Service = service.NewConsultService(engine, deps.Citations)
	a.Indexer = indexer.NewPipeline(sink, batch, indexer.NewLegalChunker(tokens))

	if cfg.LocalLLMAutoload && cfg.LocalLLMBaseURL != "" {
		go func() {
			loader := llm.NewModelLoader(cfg.LocalLLMBaseURL)
			if err := loader.LoadModel(context.Background(), cfg.LocalLLMModel, nil); err != nil {
				logger.Warn("failed to preload local model", "model", cfg.LocalLLMModel, "error", err)
				return
			}
			logger.Info("local model loaded", "model", cfg.LocalLLMModel)
		}()
	}

	return a, nil
}

// buildEmbedders returns the query embedders (cached and rate limited), the raw batch embedders for
// indexing, and the model names, all in provider order.
func buildEmbedders(cfg *config.Config) ([]rag.Embedder, []indexer.BatchEmbedder, []string) {
	var (
		query []rag.Embedder
		batch []indexer.BatchEmbedder
		names []string
	)
	add := func(e indexer.BatchEmbedder, emb rag.Embedder, model string) {
		var wrapped rag.Embedder = emb
		if cfg.EmbedCacheTTL > 0 {
			wrapped = llm.NewCachedEmbedder(wrapped, cfg.EmbedCacheTTL)
		}
		wrapped = llm.NewRateLimitedEmbedder(wrapped, llm.NewLimiter(cfg.ProviderRPS, int(cfg.ProviderRPS)+1))
		query = append(query, wrapped)
		batch = append(batch, e)
		names = append(names, model)
	}

	if cfg.OpenAIAPIKey != "" {
		e := llm.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIEmbedModel, cfg.OpenAIEmbedSize)
		add(e, e, cfg.OpenAIEmbedModel)
	}
	if cfg.OllamaEmbedURL != "" {
		e := llm.NewEmbeddingsClient(rag.ProviderOllama, cfg.OllamaEmbedURL, "", cfg.OllamaEmbedModel, cfg.OllamaEmbedSize)
		add(e, e, cfg.OllamaEmbedModel)
	}
	if cfg.BGEEmbedURL != "" {
		e := llm.NewCompatEmbedder(rag.ProviderBGE, llm.OpenAIConfig{BaseURL: cfg.BGEEmbedURL, Model: cfg.BGEEmbedModel}, cfg.BGEEmbedSize)
		add(e, e, cfg.BGEEmbedModel)
	}
	return query, batch, names
}

// buildGenerators returns the configured generators in cascade order: openai, gemini, local.
func buildGenerators(ctx context.Context, cfg *config.Config) ([]rag.Generator, error) {
	var out []rag.Generator
	limit := func(g rag.Generator) rag.Generator {
		return llm.NewRateLimitedGenerator(g, llm.NewLimiter(cfg.ProviderRPS, int(cfg.ProviderRPS)+1))
	}

	if cfg.OpenAIAPIKey != "" {
		g, err := llm.NewOpenAIGenerator(llm.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL, Model: cfg.OpenAIModel})
		if err != nil {
			return nil, err
		}
		out = append(out, limit(g))
	}
	if cfg.GeminiAPIKey != "" {
		g, err := llm.NewGeminiGenerator(ctx, llm.GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		if err != nil {
			return nil, err
		}
		out = append(out, limit(g))
	}
	if cfg.LocalLLMBaseURL != "" {
		out = append(out, limit(llm.NewClient(cfg.LocalLLMBaseURL, cfg.LocalLLMAPIKey, cfg.LocalLLMModel)))
	}
	return out, nil
}

// openStores opens the chunk store for the configured backend and returns it with the matching
// indexing sink.
func (a *App) openStores(ctx context.Context, cfg *config.Config) (rag.ChunkStore, indexer.Sink, error) {
	logger := slog.Default()

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pg, err := storage.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
		if err := pg.Migrate(ctx, providerDims(cfg)); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		a.HealthChecks["database"] = pg.Ping
		logger.Info("postgres store ready")
		return pg, pg, nil

	default:
		db, err := storage.New(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := storage.Migrate(db); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("database initialized", "path", cfg.DBPath)

		qdrant, err := vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.QdrantAPIKey)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, qdrant.Close)

		sizes := make(map[string]int)
		for p, dims := range providerDims(cfg) {
			sizes[p.String()] = dims
		}
		if err := qdrant.EnsureCollection(ctx, cfg.QdrantCollection, sizes); err != nil {
			return nil, nil, fmt.Errorf("failed to ensure Qdrant collection: %w", err)
		}
		logger.Info("qdrant collection ready", "collection", cfg.QdrantCollection, "vectors", sizes)

		a.HealthChecks["database"] = handlers.PingCheck(db)
		a.HealthChecks["vector_store"] = handlers.VectorStoreCheck(qdrant, cfg.QdrantCollection)

		chunks := storage.NewChunkRepo(db)
		store := vectorstore.NewHybridStore(qdrant, chunks, cfg.QdrantCollection)
		sink := indexer.NewSQLiteQdrantSink(storage.NewDocumentRepo(db), chunks, qdrant, cfg.QdrantCollection)
		return store, sink, nil
	}
}

// providerDims returns the configured vector size of every enabled provider.
func providerDims(cfg *config.Config) map[rag.Provider]int {
	dims := make(map[rag.Provider]int)
	if cfg.OpenAIAPIKey != "" {
		dims[rag.ProviderOpenAI] = cfg.OpenAIEmbedSize
	}
	if cfg.OllamaEmbedURL != "" {
		dims[rag.ProviderOllama] = cfg.OllamaEmbedSize
	}
	if cfg.BGEEmbedURL != "" {
		dims[rag.ProviderBGE] = cfg.BGEEmbedSize
	}
	return dims
}

// Close releases the stores in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
