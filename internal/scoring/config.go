package scoring

import (
	"fmt"
	"math"
)

// Weights is the weight vector applied to the normalized score terms.
type Weights struct {
	Mood    float64 `toml:"mood" json:"mood"`
	Tempo   float64 `toml:"tempo" json:"tempo"`
	Genre   float64 `toml:"genre" json:"genre"`
	History float64 `toml:"history" json:"history"`
}

// Sum returns the maximum attainable score.
func (w Weights) Sum() float64 {
	return w.Mood + w.Tempo + w.Genre + w.History
}

// Config holds everything a Scorer needs. It is copied on construction.
type Config struct {
	Moods    []MoodProfile    `toml:"moods"`
	Contexts []ContextProfile `toml:"contexts"`
	Weights  Weights          `toml:"weights"`

	// TempoTolerance is the BPM distance beyond a band edge at which tempo fit reaches 0.
	TempoTolerance float64 `toml:"tempo_tolerance"`

	// UnknownGenreCredit is the genre term for tracks with no genre metadata.
	UnknownGenreCredit float64 `toml:"unknown_genre_credit"`

	// FamiliarityMinCount is how often an artist or genre must appear in
	// history before it earns a familiarity bonus.
	FamiliarityMinCount int `toml:"familiarity_min_count"`

	// RecentPenalty is subtracted from the history term for recently played tracks.
	RecentPenalty float64 `toml:"recent_penalty"`

	// StrongMoodFit and PartialMoodFit pick the wording of the mood reason.
	StrongMoodFit  float64 `toml:"strong_mood_fit"`
	PartialMoodFit float64 `toml:"partial_mood_fit"`
}

// DefaultConfig returns the recommended default configuration.
func DefaultConfig() Config {
	return Config{
		Moods:    DefaultMoods(),
		Contexts: DefaultContexts(),
		Weights: Weights{
			Mood:    0.5,
			Tempo:   0.2,
			Genre:   0.2,
			History: 0.1,
		},
		TempoTolerance:      20,
		UnknownGenreCredit:  0.5,
		FamiliarityMinCount: 2,
		RecentPenalty:       1.0,
		StrongMoodFit:       0.8,
		PartialMoodFit:      0.5,
	}
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if len(c.Moods) == 0 {
		return fmt.Errorf("%w: no moods configured", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(c.Moods))
	for _, m := range c.Moods {
		if err := m.validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		name := normalizeName(m.Name)
		if seen[name] {
			return fmt.Errorf("%w: duplicate mood %q", ErrInvalidConfig, m.Name)
		}
		seen[name] = true
	}

	seen = make(map[string]bool, len(c.Contexts))
	for _, ctx := range c.Contexts {
		if err := ctx.validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		name := normalizeName(ctx.Name)
		if seen[name] {
			return fmt.Errorf("%w: duplicate context %q", ErrInvalidConfig, ctx.Name)
		}
		seen[name] = true
	}

	w := c.Weights
	for _, v := range []float64{w.Mood, w.Tempo, w.Genre, w.History} {
		if !isFinite(v) || v < 0 {
			return fmt.Errorf("%w: weights must be finite and non-negative", ErrInvalidConfig)
		}
	}
	if w.Sum() <= 0 {
		return fmt.Errorf("%w: at least one weight must be positive", ErrInvalidConfig)
	}

	if !isFinite(c.TempoTolerance) || c.TempoTolerance <= 0 {
		return fmt.Errorf("%w: tempo tolerance must be positive", ErrInvalidConfig)
	}
	if !inUnit(c.UnknownGenreCredit) {
		return fmt.Errorf("%w: unknown genre credit must be within [0,1]", ErrInvalidConfig)
	}
	if !inUnit(c.RecentPenalty) {
		return fmt.Errorf("%w: recent penalty must be within [0,1]", ErrInvalidConfig)
	}
	if c.FamiliarityMinCount < 1 {
		return fmt.Errorf("%w: familiarity min count must be at least 1", ErrInvalidConfig)
	}
	if !inUnit(c.StrongMoodFit) || !inUnit(c.PartialMoodFit) || c.PartialMoodFit > c.StrongMoodFit {
		return fmt.Errorf("%w: mood fit thresholds must satisfy 0 <= partial <= strong <= 1", ErrInvalidConfig)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func inUnit(v float64) bool {
	return isFinite(v) && v >= 0 && v <= 1
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
