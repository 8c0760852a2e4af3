// Package lastfm provides Last.fm API integration for fetching genre tags.
package lastfm

import (
	"errors"
	"os"
	"strconv"
)

// ErrMissingAPIKey is returned when LASTFM_API_KEY is not set.
var ErrMissingAPIKey = errors.New("missing LASTFM_API_KEY environment variable")

// DefaultMinTagCount drops tags that only a handful of listeners applied.
const DefaultMinTagCount = 10

// Config holds Last.fm API configuration.
type Config struct {
	APIKey string

	// MinTagCount is the lowest tag weight (0-100) kept as a genre.
	MinTagCount int
}

// LoadConfig reads Last.fm configuration from environment variables.
// Returns ErrMissingAPIKey if LASTFM_API_KEY is not set.
func LoadConfig() (*Config, error) {
	apiKey := os.Getenv("LASTFM_API_KEY")
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	minCount := DefaultMinTagCount
	if v, err := strconv.Atoi(os.Getenv("LASTFM_MIN_TAG_COUNT")); err == nil && v >= 0 {
		minCount = v
	}
	return &Config{APIKey: apiKey, MinTagCount: minCount}, nil
}
