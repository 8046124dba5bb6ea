// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the service reads from its environment.
type Config struct {
	// Port is the HTTP listen port.
	Port int

	// DatabaseURL selects the store: a PostgreSQL DSN when set, the
	// in-memory store otherwise.
	DatabaseURL string

	// Provider API keys. Each is optional; missing keys degrade that
	// provider family to simulation.
	AnthropicAPIKey string
	OpenAIAPIKey    string
	XAIAPIKey       string

	// ModelCatalogPath optionally overrides the embedded model catalog.
	ModelCatalogPath string

	MaxPromptLen   int
	StuckAge       time.Duration
	SweepInterval  time.Duration
	ChunkRetention time.Duration
	HistoryLimit   int
}

// Load reads configuration from the environment. A .env file is loaded
// first when present; real environment variables win over it.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:             envInt("PORT", 8080),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		XAIAPIKey:        os.Getenv("XAI_API_KEY"),
		ModelCatalogPath: os.Getenv("MODEL_CATALOG_PATH"),
		MaxPromptLen:     envInt("MAX_PROMPT_LENGTH", 50000),
		StuckAge:         envDuration("STUCK_GENERATION_AGE", 30*time.Minute),
		SweepInterval:    envDuration("SWEEP_INTERVAL", 5*time.Minute),
		ChunkRetention:   envDuration("CHUNK_RETENTION", 24*time.Hour),
		HistoryLimit:     envInt("HISTORY_LIMIT", 50),
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}
