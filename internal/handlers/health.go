package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"legal-rag/internal/contextutil"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// CollectionChecker is the part of the vector store the health check needs.
type CollectionChecker interface {
	CollectionExists(ctx context.Context, collection string) (bool, error)
}

// Pinger is implemented by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// VectorStoreCheck fails when the store is unreachable or the collection is missing.
func VectorStoreCheck(store CollectionChecker, collection string) HealthCheck {
	return func(ctx context.Context) error {
		exists, err := store.CollectionExists(ctx, collection)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("collection %s does not exist", collection)
		}
		return nil
	}
}

// PingCheck wraps a Pinger.
func PingCheck(p Pinger) HealthCheck {
	return p.PingContext
}

// HealthHandler reports whether the stores behind retrieval are reachable.
type HealthHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler running checks by name.
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 5 * time.Second}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy" or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// Check durations in milliseconds
	LatencyMS map[string]int64 `json:"latency_ms"`

	// Failed checks, sorted by name
	Issues []string `json:"issues,omitempty"`
}

type checkResult struct {
	name    string
	err     error
	latency time.Duration
}

// runChecks probes every dependency concurrently under one deadline.
func (h *HealthHandler) runChecks(ctx context.Context) []checkResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make([]checkResult, 0, len(h.checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, check := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := check(ctx)
			mu.Lock()
			results = append(results, checkResult{name: name, err: err, latency: time.Since(start)})
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].name < results[j].name })
	return results
}

// ServeHTTP handles HTTP requests for health checks.
//
// Check the health status of the system and its dependencies.
// Returns 200 OK if healthy, 503 Service Unavailable when any store check fails.
//
// swagger:route GET /api/health healthCheck
//
// # Health check endpoint
//
// Returns the health status of the system including the vector store and the chunk database.
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: System is healthy
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
//	'503':
//	  description: A store is unreachable
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]string, len(h.checks)),
		LatencyMS: make(map[string]int64, len(h.checks)),
	}
	// Generation providers are not probed here.
	for _, res := range h.runChecks(ctx) {
		resp.LatencyMS[res.name] = res.latency.Milliseconds()
		if res.err != nil {
			logger.WarnContext(ctx, "health check failed", "check", res.name, "error", res.err)
			resp.Checks[res.name] = "error"
			resp.Issues = append(resp.Issues, res.name+"_unavailable")
			continue
		}
		resp.Checks[res.name] = "ok"
	}

	code := http.StatusOK
	if len(resp.Issues) > 0 {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	writeJSON(ctx, w, code, resp)
}
