// Package config loads runtime configuration from the environment and an
// optional TOML file of scoring overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/justestif/go-mood-playlist-builder/internal/logger"
)

// Storage drivers.
const (
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// ErrMissingCredentials is returned when SPOTIFY_ID or SPOTIFY_SECRET is not set.
var ErrMissingCredentials = errors.New("missing SPOTIFY_ID or SPOTIFY_SECRET environment variable")

// Config holds process configuration. Zero values mean "feature disabled"
// for optional integrations (Redis, Last.fm, Ollama, PostgreSQL).
type Config struct {
	SpotifyID     string
	SpotifySecret string
	Market        string
	RedirectURI   string
	Addr          string

	StorageDriver string
	DataDir       string
	SQLitePath    string
	DatabaseURL   string

	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	CandidateCacheTTL time.Duration

	CatalogTimeout time.Duration
	LastFMAPIKey   string

	OllamaHost  string
	OllamaModel string

	LogLevel string
	LogFile  string

	// ScoringFile points at a TOML file of profile and weight overrides.
	ScoringFile string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first but never overrides variables that are already set.
func Load() (*Config, error) {
	// Missing .env is the common case.
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", ".appdata")
	cfg := &Config{
		SpotifyID:     os.Getenv("SPOTIFY_ID"),
		SpotifySecret: os.Getenv("SPOTIFY_SECRET"),
		Market:        getEnv("SPOTIFY_MARKET", "US"),
		RedirectURI:   getEnv("REDIRECT_URI", "http://127.0.0.1:8080/callback"),
		Addr:          getEnv("ADDR", "127.0.0.1:8080"),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageFile)),
		DataDir:       dataDir,
		SQLitePath:    getEnv("SQLITE_PATH", filepath.Join(dataDir, "playlists.db")),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		CandidateCacheTTL: getEnvDuration("CANDIDATE_CACHE_TTL", 15*time.Minute),

		CatalogTimeout: getEnvDuration("CATALOG_TIMEOUT", 15*time.Second),
		LastFMAPIKey:   os.Getenv("LASTFM_API_KEY"),

		OllamaHost:  os.Getenv("OLLAMA_HOST"),
		OllamaModel: getEnv("OLLAMA_MODEL", "llama3.2"),

		LogLevel: getEnv("LOG_LEVEL", logger.InfoLevel),
		LogFile:  os.Getenv("LOG_FILE"),

		ScoringFile: os.Getenv("SCORING_CONFIG"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that can be verified without network access.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageFile, StorageSQLite:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("STORAGE_DRIVER=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q (must be file, sqlite, or postgres)", c.StorageDriver)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.CatalogTimeout <= 0 {
		return fmt.Errorf("CATALOG_TIMEOUT must be positive")
	}
	return nil
}

// RequireSpotify returns ErrMissingCredentials unless both Spotify app
// credentials are present.
func (c *Config) RequireSpotify() error {
	if c.SpotifyID == "" || c.SpotifySecret == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Logger returns the logger configuration derived from c.
func (c *Config) Logger() logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = c.LogLevel
	lc.File = c.LogFile
	return lc
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("30s") or plain seconds ("30").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
