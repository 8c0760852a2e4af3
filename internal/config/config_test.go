package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env here
	for _, key := range []string{"SPOTIFY_ID", "SPOTIFY_SECRET", "STORAGE_DRIVER", "DATA_DIR", "SQLITE_PATH", "CATALOG_TIMEOUT", "LOG_LEVEL", "CANDIDATE_CACHE_TTL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageFile, cfg.StorageDriver)
	assert.Equal(t, ".appdata", cfg.DataDir)
	assert.Equal(t, filepath.Join(".appdata", "playlists.db"), cfg.SQLitePath)
	assert.Equal(t, 15*time.Second, cfg.CatalogTimeout)
	assert.Equal(t, 15*time.Minute, cfg.CandidateCacheTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.ErrorIs(t, cfg.RequireSpotify(), ErrMissingCredentials)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SPOTIFY_ID", "id")
	t.Setenv("SPOTIFY_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "SQLite")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CATALOG_TIMEOUT", "5")
	t.Setenv("CANDIDATE_CACHE_TTL", "1h")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.NoError(t, cfg.RequireSpotify())
	assert.Equal(t, StorageSQLite, cfg.StorageDriver)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 5*time.Second, cfg.CatalogTimeout)
	assert.Equal(t, time.Hour, cfg.CandidateCacheTTL)
	assert.Equal(t, "debug", cfg.Logger().Level)
}

func TestDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SPOTIFY_MARKET=GB\nOLLAMA_MODEL=from-dotenv\n"), 0o600))
	t.Setenv("SPOTIFY_MARKET", "DE")
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "DE", cfg.Market)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok", func(*Config) {}, false},
		{"bad driver", func(c *Config) { c.StorageDriver = "mongo" }, true},
		{"postgres without url", func(c *Config) { c.StorageDriver = StoragePostgres }, true},
		{"postgres with url", func(c *Config) { c.StorageDriver = StoragePostgres; c.DatabaseURL = "postgres://x" }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"zero timeout", func(c *Config) { c.CatalogTimeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{StorageDriver: StorageFile, LogLevel: "info", CatalogTimeout: time.Second}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadScoringMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadScoring(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, scoring.DefaultConfig(), cfg)

	cfg, err = LoadScoring("")
	require.NoError(t, err)
	assert.Equal(t, scoring.DefaultConfig(), cfg)
}

func TestLoadScoringOverridesWeightsField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
tempo_tolerance = 30

[weights]
genre = 0.4
`), 0o600))

	cfg, err := LoadScoring(path)
	require.NoError(t, err)

	def := scoring.DefaultConfig()
	assert.InDelta(t, 30.0, cfg.TempoTolerance, 1e-9)
	assert.InDelta(t, 0.4, cfg.Weights.Genre, 1e-9)
	assert.InDelta(t, def.Weights.Mood, cfg.Weights.Mood, 1e-9)
	assert.Equal(t, def.Moods, cfg.Moods)
	assert.Equal(t, def.Contexts, cfg.Contexts)
}

func TestLoadScoringReplacesMoodTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[moods]]
name = "dreamy"
valence = { min = 0.4, max = 0.8 }
energy = { min = 0.1, max = 0.4 }
tempo = { min = 60, max = 95 }
`), 0o600))

	cfg, err := LoadScoring(path)
	require.NoError(t, err)
	require.Len(t, cfg.Moods, 1)
	assert.Equal(t, "dreamy", cfg.Moods[0].Name)
	assert.Equal(t, scoring.DefaultContexts(), cfg.Contexts)

	s, err := scoring.NewScorer(cfg)
	require.NoError(t, err)
	_, _, err = s.Resolve("happy", "")
	assert.True(t, errors.Is(err, scoring.ErrUnknownProfile))
}

func TestLoadScoringRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax", "weights = ["},
		{"unknown key", "tempo_tolerence = 10"},
		{"invalid values", "[weights]\nmood = -1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scoring.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))
			_, err := LoadScoring(path)
			assert.Error(t, err)
		})
	}
}
