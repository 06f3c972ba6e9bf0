package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"legal-rag/internal/app"
	"legal-rag/internal/config"
	"legal-rag/internal/handlers"
	"legal-rag/internal/http"
	"legal-rag/internal/llm"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API answers questions about Tunisian law from an indexed corpus of legal texts. Every answer
// opens with a citation of the source it relies on.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Legal RAG API
//   description: |
//     Retrieval-Augmented Generation over Tunisian legal texts (Arabic and French).
//     Answers cite their sources first and flag repealed provisions.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			slog.Error("Failed to close stores", "error", err)
		}
	}()

	deps := &http.Deps{
		ConsultService: application.Service,
		HealthChecks:   application.HealthChecks,
		IndexHandler:   handlers.NewIndexHandler(application.Indexer, cfg.CorpusPath, application.ModelNames),
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        llm.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}

	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           http.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		// Leaves room for the request timeout plus response encoding.
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", server.Addr, "backend", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("API server failed", "error", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down API server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
