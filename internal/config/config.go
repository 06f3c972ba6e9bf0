package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendQdrant   = "qdrant"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort   string
	LogFormat string
	LogLevel  slog.Level

	DBPath     string
	CorpusPath string

	StoreBackend     string
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	PostgresDSN      string

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	OpenAIEmbedModel  string
	OpenAIEmbedSize   int
	GeminiAPIKey      string
	GeminiModel       string
	LocalLLMBaseURL   string
	LocalLLMModel     string
	LocalLLMAPIKey    string
	LocalLLMAutoload  bool
	OllamaEmbedURL    string
	OllamaEmbedModel  string
	OllamaEmbedSize   int
	BGEEmbedURL       string
	BGEEmbedModel     string
	BGEEmbedSize      int
	RerankURL         string
	RerankModel       string
	ReformulateShorts bool

	RequestTimeout  time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	ProviderRPS     float64
	EmbedCacheTTL   time.Duration
	FallbackEnabled bool
	AllowRelaxed    bool
	RulesPath       string
	// PriorityCategories are searched with the forced filter on every query.
	PriorityCategories []string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the combination of providers and backends.
// If a .env file exists in the current directory or a parent, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		APIPort:   getEnv("API_PORT", "9000"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DBPath:     getEnv("DB_PATH", "./data/legal-rag.db"),
		CorpusPath: getEnv("CORPUS_PATH", "./corpus"),

		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", BackendQdrant)),
		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "tunisian_law"),
		PostgresDSN:      getEnv("POSTGRES_DSN", ""),

		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIEmbedModel: getEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		LocalLLMBaseURL:  getEnv("LOCAL_LLM_BASE_URL", ""),
		LocalLLMModel:    getEnv("LOCAL_LLM_MODEL", "Llama-3.1-8B-Instruct"),
		LocalLLMAPIKey:   getEnv("LOCAL_LLM_API_KEY", "dummy-key"),
		OllamaEmbedURL:   getEnv("OLLAMA_EMBED_URL", ""),
		OllamaEmbedModel: getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		BGEEmbedURL:      getEnv("BGE_EMBED_URL", ""),
		BGEEmbedModel:    getEnv("BGE_EMBED_MODEL", "bge-m3"),
		RerankURL:        getEnv("RERANK_URL", ""),
		RerankModel:      getEnv("RERANK_MODEL", "bge-reranker-v2-m3"),
		RulesPath:        getEnv("RULES_PATH", ""),

		PriorityCategories: getEnvList("PRIORITY_CATEGORIES", []string{"codes"}),
	}

	var errs []string
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	cfg.OpenAIEmbedSize, err = getEnvInt("OPENAI_EMBED_SIZE", 1536)
	collect(err)
	cfg.OllamaEmbedSize, err = getEnvInt("OLLAMA_EMBED_SIZE", 768)
	collect(err)
	cfg.BGEEmbedSize, err = getEnvInt("BGE_EMBED_SIZE", 1024)
	collect(err)
	cfg.LocalLLMAutoload, err = getEnvBool("LOCAL_LLM_AUTOLOAD", false)
	collect(err)
	cfg.ReformulateShorts, err = getEnvBool("REFORMULATE_SHORT_QUERIES", true)
	collect(err)
	cfg.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", 50*time.Second)
	collect(err)
	cfg.RateLimitRPS, err = getEnvFloat("RATE_LIMIT_RPS", 5)
	collect(err)
	cfg.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", 10)
	collect(err)
	cfg.ProviderRPS, err = getEnvFloat("PROVIDER_RPS", 10)
	collect(err)
	cfg.EmbedCacheTTL, err = getEnvDuration("EMBED_CACHE_TTL", 30*time.Minute)
	collect(err)
	cfg.FallbackEnabled, err = getEnvBool("FALLBACK_ENABLED", true)
	collect(err)
	cfg.AllowRelaxed, err = getEnvBool("ALLOW_RELAXED", false)
	collect(err)

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		collect(fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Create ./data directory if it doesn't exist
	if cfg.StoreBackend == BackendQdrant {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks that the configured providers and backend can serve a request.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendQdrant:
		if c.QdrantURL == "" {
			return fmt.Errorf("QDRANT_URL is required for the qdrant backend")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendQdrant, BackendPostgres, c.StoreBackend)
	}

	if len(c.EmbeddingProviders()) == 0 {
		return fmt.Errorf("at least one embedding provider is required (OPENAI_API_KEY, OLLAMA_EMBED_URL or BGE_EMBED_URL)")
	}
	if c.OpenAIAPIKey == "" && c.GeminiAPIKey == "" && c.LocalLLMBaseURL == "" {
		return fmt.Errorf("at least one generation provider is required (OPENAI_API_KEY, GEMINI_API_KEY or LOCAL_LLM_BASE_URL)")
	}

	for name, size := range map[string]int{
		"OPENAI_EMBED_SIZE": c.OpenAIEmbedSize,
		"OLLAMA_EMBED_SIZE": c.OllamaEmbedSize,
		"BGE_EMBED_SIZE":    c.BGEEmbedSize,
	} {
		if size <= 0 {
			return fmt.Errorf("%s must be greater than 0", name)
		}
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.RateLimitRPS < 0 || c.ProviderRPS < 0 {
		return fmt.Errorf("rate limits cannot be negative")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// EmbeddingProviders returns the names of the embedding providers with enough configuration to run,
// in the fixed openai, ollama, bge order.
func (c *Config) EmbeddingProviders() []string {
	var out []string
	if c.OpenAIAPIKey != "" {
		out = append(out, "openai")
	}
	if c.OllamaEmbedURL != "" {
		out = append(out, "ollama")
	}
	if c.BGEEmbedURL != "" {
		out = append(out, "bge")
	}
	return out
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

// getEnvDuration accepts Go durations ("45s") and bare seconds ("45").
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
