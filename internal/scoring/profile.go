package scoring

import (
	"fmt"
	"slices"
	"strings"
)

// Range is a closed numeric interval.
type Range struct {
	Min float64 `toml:"min" json:"min"`
	Max float64 `toml:"max" json:"max"`
}

// Mid returns the midpoint of the range.
func (r Range) Mid() float64 {
	return (r.Min + r.Max) / 2
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Distance returns how far v lies outside the range (0 when inside).
func (r Range) Distance(v float64) float64 {
	switch {
	case v < r.Min:
		return r.Min - v
	case v > r.Max:
		return v - r.Max
	default:
		return 0
	}
}

// Intersect returns the overlap of two ranges and whether they overlap at all.
func (r Range) Intersect(o Range) (Range, bool) {
	out := Range{Min: max(r.Min, o.Min), Max: min(r.Max, o.Max)}
	if out.Min > out.Max {
		return Range{}, false
	}
	return out, true
}

func (r Range) valid() bool {
	return isFinite(r.Min) && isFinite(r.Max) && r.Min <= r.Max
}

// MoodProfile maps a named mood to target audio-feature ranges.
type MoodProfile struct {
	Name        string `toml:"name" json:"name"`
	Description string `toml:"description" json:"description,omitempty"`
	Valence     Range  `toml:"valence" json:"valence"`
	Energy      Range  `toml:"energy" json:"energy"`
	Tempo       Range  `toml:"tempo" json:"tempo"`
}

// ContextProfile maps a listening situation to secondary adjustments.
// A nil Tempo defers to the mood's tempo band; a nil Energy leaves the mood
// target untouched.
type ContextProfile struct {
	Name        string `toml:"name" json:"name"`
	Description string `toml:"description" json:"description,omitempty"`
	Tempo       *Range `toml:"tempo" json:"tempo,omitempty"`
	Energy      *Range `toml:"energy" json:"energy,omitempty"`
}

// NeutralContext is used when no context is requested.
var NeutralContext = ContextProfile{Name: "any", Description: "No listening context"}

// tempoBand returns the band a track's tempo is judged against and the name
// of the profile that declared it.
func tempoBand(mood MoodProfile, ctx ContextProfile) (Range, string) {
	if ctx.Tempo != nil {
		return *ctx.Tempo, ctx.Name
	}
	return mood.Tempo, mood.Name
}

// targetPoint returns the (valence, energy) point tracks are measured against.
func targetPoint(mood MoodProfile, ctx ContextProfile) (float64, float64) {
	energy := mood.Energy
	if ctx.Energy != nil {
		if overlap, ok := mood.Energy.Intersect(*ctx.Energy); ok {
			energy = overlap
		}
	}
	return mood.Valence.Mid(), energy.Mid()
}

// DefaultMoods returns the built-in mood table.
func DefaultMoods() []MoodProfile {
	return []MoodProfile{
		{
			Name:        "happy",
			Description: "Bright, positive and upbeat",
			Valence:     Range{0.7, 1.0},
			Energy:      Range{0.6, 1.0},
			Tempo:       Range{100, 140},
		},
		{
			Name:        "sad",
			Description: "Low, melancholic and slow",
			Valence:     Range{0.0, 0.35},
			Energy:      Range{0.0, 0.5},
			Tempo:       Range{60, 100},
		},
		{
			Name:        "energetic",
			Description: "High intensity, driving",
			Valence:     Range{0.5, 0.9},
			Energy:      Range{0.8, 1.0},
			Tempo:       Range{120, 170},
		},
		{
			Name:        "chill",
			Description: "Relaxed and mellow",
			Valence:     Range{0.4, 0.8},
			Energy:      Range{0.1, 0.55},
			Tempo:       Range{60, 110},
		},
		{
			Name:        "focus",
			Description: "Steady and unobtrusive",
			Valence:     Range{0.3, 0.7},
			Energy:      Range{0.2, 0.55},
			Tempo:       Range{70, 120},
		},
		{
			Name:        "romantic",
			Description: "Warm and tender",
			Valence:     Range{0.5, 0.9},
			Energy:      Range{0.2, 0.7},
			Tempo:       Range{60, 110},
		},
		{
			Name:        "angry",
			Description: "Aggressive and loud",
			Valence:     Range{0.0, 0.4},
			Energy:      Range{0.85, 1.0},
			Tempo:       Range{110, 180},
		},
		{
			Name:        "calm",
			Description: "Quiet and soothing",
			Valence:     Range{0.3, 0.7},
			Energy:      Range{0.0, 0.45},
			Tempo:       Range{50, 100},
		},
	}
}

// DefaultContexts returns the built-in context table.
func DefaultContexts() []ContextProfile {
	return []ContextProfile{
		{
			Name:        "workout",
			Description: "Exercise, running, lifting",
			Tempo:       &Range{120, 180},
			Energy:      &Range{0.8, 1.0},
		},
		{
			Name:        "study",
			Description: "Reading, coding, concentrating",
			Tempo:       &Range{50, 110},
			Energy:      &Range{0.0, 0.55},
		},
		{
			Name:        "party",
			Description: "Dancing with friends",
			Tempo:       &Range{110, 140},
			Energy:      &Range{0.75, 1.0},
		},
		{
			Name:        "relax",
			Description: "Unwinding at home",
			Tempo:       &Range{50, 100},
			Energy:      &Range{0.0, 0.5},
		},
		{
			Name:        "commute",
			Description: "On the move",
			Tempo:       &Range{80, 130},
		},
		{
			Name:        "sleep",
			Description: "Falling asleep",
			Tempo:       &Range{40, 90},
			Energy:      &Range{0.0, 0.35},
		},
	}
}

// normalizeName lower-cases and trims a profile name.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Resolve looks up the mood and context profiles for the given names.
// Names are case-insensitive. An empty context resolves to NeutralContext.
// Unknown names return an *UnknownProfileError.
func (s *Scorer) Resolve(mood, context string) (MoodProfile, ContextProfile, error) {
	m, ok := s.moods[normalizeName(mood)]
	if !ok {
		return MoodProfile{}, ContextProfile{}, &UnknownProfileError{
			Kind:  KindMood,
			Name:  mood,
			Valid: s.MoodNames(),
		}
	}

	name := normalizeName(context)
	if name == "" {
		return m, NeutralContext, nil
	}
	c, ok := s.contexts[name]
	if !ok {
		return MoodProfile{}, ContextProfile{}, &UnknownProfileError{
			Kind:  KindContext,
			Name:  context,
			Valid: s.ContextNames(),
		}
	}
	return m, c, nil
}

// MoodNames returns the configured mood names in sorted order.
func (s *Scorer) MoodNames() []string {
	names := make([]string, 0, len(s.moods))
	for name := range s.moods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ContextNames returns the configured context names in sorted order.
func (s *Scorer) ContextNames() []string {
	names := make([]string, 0, len(s.contexts))
	for name := range s.contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Moods returns copies of the configured mood profiles sorted by name.
func (s *Scorer) Moods() []MoodProfile {
	out := make([]MoodProfile, 0, len(s.moods))
	for _, name := range s.MoodNames() {
		out = append(out, s.moods[name])
	}
	return out
}

// Contexts returns copies of the configured context profiles sorted by name.
func (s *Scorer) Contexts() []ContextProfile {
	out := make([]ContextProfile, 0, len(s.contexts))
	for _, name := range s.ContextNames() {
		out = append(out, copyContext(s.contexts[name]))
	}
	return out
}

func copyContext(c ContextProfile) ContextProfile {
	if c.Tempo != nil {
		t := *c.Tempo
		c.Tempo = &t
	}
	if c.Energy != nil {
		e := *c.Energy
		c.Energy = &e
	}
	return c
}

func (m MoodProfile) validate() error {
	if normalizeName(m.Name) == "" {
		return fmt.Errorf("mood profile has empty name")
	}
	if !m.Valence.valid() || m.Valence.Min < 0 || m.Valence.Max > 1 {
		return fmt.Errorf("mood %q: valence range must be ordered within [0,1]", m.Name)
	}
	if !m.Energy.valid() || m.Energy.Min < 0 || m.Energy.Max > 1 {
		return fmt.Errorf("mood %q: energy range must be ordered within [0,1]", m.Name)
	}
	if !m.Tempo.valid() || m.Tempo.Min < 0 {
		return fmt.Errorf("mood %q: tempo range must be ordered and non-negative", m.Name)
	}
	return nil
}

func (c ContextProfile) validate() error {
	if normalizeName(c.Name) == "" {
		return fmt.Errorf("context profile has empty name")
	}
	if c.Tempo != nil && (!c.Tempo.valid() || c.Tempo.Min < 0) {
		return fmt.Errorf("context %q: tempo range must be ordered and non-negative", c.Name)
	}
	if c.Energy != nil && (!c.Energy.valid() || c.Energy.Min < 0 || c.Energy.Max > 1) {
		return fmt.Errorf("context %q: energy range must be ordered within [0,1]", c.Name)
	}
	return nil
}
