package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultConfig())
	require.NoError(t, err)
	return s
}

func TestResolveAllConfiguredPairs(t *testing.T) {
	s := newDefaultScorer(t)

	for _, mood := range s.MoodNames() {
		for _, ctx := range append(s.ContextNames(), "") {
			m, c, err := s.Resolve(mood, ctx)
			require.NoError(t, err, "mood=%s context=%s", mood, ctx)

			assert.LessOrEqual(t, m.Valence.Min, m.Valence.Max)
			assert.LessOrEqual(t, m.Energy.Min, m.Energy.Max)
			assert.LessOrEqual(t, m.Tempo.Min, m.Tempo.Max)
			if c.Tempo != nil {
				assert.LessOrEqual(t, c.Tempo.Min, c.Tempo.Max)
			}
			if c.Energy != nil {
				assert.LessOrEqual(t, c.Energy.Min, c.Energy.Max)
			}
		}
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	s := newDefaultScorer(t)

	m, c, err := s.Resolve("  ChILL ", "STUDY")
	require.NoError(t, err)
	assert.Equal(t, "chill", m.Name)
	assert.Equal(t, "study", c.Name)
}

func TestResolveEmptyContextIsNeutral(t *testing.T) {
	s := newDefaultScorer(t)

	_, c, err := s.Resolve("happy", "")
	require.NoError(t, err)
	assert.Equal(t, NeutralContext.Name, c.Name)
	assert.Nil(t, c.Tempo)
	assert.Nil(t, c.Energy)
}

func TestResolveUnknown(t *testing.T) {
	s := newDefaultScorer(t)

	tests := []struct {
		name     string
		mood     string
		context  string
		wantKind string
		wantName string
	}{
		{"unknown mood", "unknown_mood", "study", KindMood, "unknown_mood"},
		{"unknown context", "chill", "spelunking", KindContext, "spelunking"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.Resolve(tt.mood, tt.context)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnknownProfile))

			var upe *UnknownProfileError
			require.True(t, errors.As(err, &upe))
			assert.Equal(t, tt.wantKind, upe.Kind)
			assert.Equal(t, tt.wantName, upe.Name)
			assert.NotEmpty(t, upe.Valid)
			assert.Contains(t, err.Error(), tt.wantName)
		})
	}
}

func TestRangeHelpers(t *testing.T) {
	r := Range{Min: 60, Max: 110}

	assert.InDelta(t, 85.0, r.Mid(), 1e-9)
	assert.True(t, r.Contains(60))
	assert.True(t, r.Contains(110))
	assert.False(t, r.Contains(111))
	assert.InDelta(t, 0.0, r.Distance(90), 1e-9)
	assert.InDelta(t, 10.0, r.Distance(50), 1e-9)
	assert.InDelta(t, 30.0, r.Distance(140), 1e-9)

	overlap, ok := Range{0.1, 0.55}.Intersect(Range{0, 0.5})
	require.True(t, ok)
	assert.Equal(t, Range{0.1, 0.5}, overlap)

	_, ok = Range{0.6, 1}.Intersect(Range{0, 0.35})
	assert.False(t, ok)
}

func TestTargetPointUsesContextEnergyOverlap(t *testing.T) {
	s := newDefaultScorer(t)

	m, c, err := s.Resolve("chill", "study")
	require.NoError(t, err)
	v, e := targetPoint(m, c)
	assert.InDelta(t, 0.6, v, 1e-9)
	assert.InDelta(t, 0.325, e, 1e-9)

	// happy and sleep do not overlap on energy, so the mood range wins.
	m, c, err = s.Resolve("happy", "sleep")
	require.NoError(t, err)
	_, e = targetPoint(m, c)
	assert.InDelta(t, 0.8, e, 1e-9)
}

func TestNewScorerRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no moods", func(c *Config) { c.Moods = nil }},
		{"inverted valence", func(c *Config) { c.Moods[0].Valence = Range{0.9, 0.1} }},
		{"energy above one", func(c *Config) { c.Moods[0].Energy = Range{0.5, 1.5} }},
		{"duplicate mood", func(c *Config) { c.Moods = append(c.Moods, MoodProfile{Name: "HAPPY", Tempo: Range{1, 2}}) }},
		{"inverted context tempo", func(c *Config) { c.Contexts[0].Tempo = &Range{180, 120} }},
		{"negative weight", func(c *Config) { c.Weights.Genre = -0.1 }},
		{"zero weights", func(c *Config) { c.Weights = Weights{} }},
		{"zero tolerance", func(c *Config) { c.TempoTolerance = 0 }},
		{"credit above one", func(c *Config) { c.UnknownGenreCredit = 2 }},
		{"min count zero", func(c *Config) { c.FamiliarityMinCount = 0 }},
		{"thresholds inverted", func(c *Config) { c.PartialMoodFit = 0.9; c.StrongMoodFit = 0.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewScorer(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestScorerIsolatedFromConfigMutation(t *testing.T) {
	cfg := DefaultConfig()
	s, err := NewScorer(cfg)
	require.NoError(t, err)

	cfg.Contexts[1].Tempo.Max = 999
	cfg.Moods[0].Name = "mutated"

	_, c, err := s.Resolve("chill", "study")
	require.NoError(t, err)
	assert.InDelta(t, 110.0, c.Tempo.Max, 1e-9)

	_, _, err = s.Resolve("happy", "")
	assert.NoError(t, err)
}
