package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"legal-rag/internal/handlers"
	"legal-rag/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	ConsultService service.ConsultService
	HealthChecks   map[string]handlers.HealthCheck
	// IndexHandler is optional; the index routes are not mounted without it.
	IndexHandler *handlers.IndexHandler
	// RequestTimeout bounds a consultation end to end (the generation plans stay below it).
	RequestTimeout time.Duration
	// Limiter is the API-wide token bucket; nil disables rate limiting.
	Limiter *rate.Limiter
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	var coverage handlers.CoverageSource
	if deps.IndexHandler != nil {
		coverage = deps.IndexHandler
	}

	consultHandler := handlers.NewConsultHandler(deps.ConsultService, deps.RequestTimeout, coverage)
	retrieveHandler := handlers.NewRetrieveHandler(deps.ConsultService, coverage)
	citationsHandler := handlers.NewCitationsHandler(deps.ConsultService)
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)

		r.Route("/v1", func(r chi.Router) {
			r.Use(RateLimit(deps.Limiter))

			r.Method(http.MethodPost, "/consult", consultHandler)

			r.Group(func(r chi.Router) {
				if deps.RequestTimeout > 0 {
					r.Use(middleware.Timeout(deps.RequestTimeout))
				}
				r.Method(http.MethodPost, "/retrieve", retrieveHandler)
				r.Method(http.MethodPost, "/citations/validate", citationsHandler)
			})

			if deps.IndexHandler != nil {
				r.Method(http.MethodPost, "/index", deps.IndexHandler)
				r.Method(http.MethodGet, "/index", deps.IndexHandler)
			}
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"legal-rag","status":"ok"}` + "\n"))
	})

	return r
}
