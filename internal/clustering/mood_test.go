package clustering

import (
	"math"
	"testing"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
)

// around returns n tracks jittered within ±0.02 of (valence, energy).
func around(valence, energy float64, n int) []scoring.Track {
	tracks := make([]scoring.Track, n)
	for i := range tracks {
		d := float64(i%5-2) * 0.01
		tracks[i] = scoring.Track{
			ID:      string(rune('a' + i)),
			Valence: scoring.Float(valence + d),
			Energy:  scoring.Float(energy - d),
		}
	}
	return tracks
}

func TestQuadrantName(t *testing.T) {
	tests := []struct {
		name    string
		valence float64
		energy  float64
		want    string
	}{
		{"high energy high valence", 0.7, 0.8, "Upbeat Party"},
		{"high energy low valence", 0.3, 0.8, "Intense & Dark"},
		{"low energy high valence", 0.7, 0.4, "Chill & Happy"},
		{"low energy low valence", 0.3, 0.3, "Reflective & Melancholy"},
		{"boundary energy exactly 0.6 is low", 0.7, 0.6, "Chill & Happy"},
		{"boundary valence exactly 0.5 is low", 0.5, 0.8, "Intense & Dark"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quadrantName(tt.valence, tt.energy); got != tt.want {
				t.Errorf("quadrantName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNearestMood(t *testing.T) {
	moods := scoring.DefaultMoods()

	tests := []struct {
		valence, energy float64
		want            string
	}{
		{0.85, 0.8, "happy"},
		{0.175, 0.25, "sad"},
		{0.2, 0.95, "angry"},
		{0.6, 0.32, "chill"},
	}
	for _, tt := range tests {
		if got := nearestMood(tt.valence, tt.energy, moods); got != tt.want {
			t.Errorf("nearestMood(%v, %v) = %q, want %q", tt.valence, tt.energy, got, tt.want)
		}
	}

	if got := nearestMood(0.5, 0.5, nil); got != "" {
		t.Errorf("nearestMood with no moods = %q, want empty", got)
	}
}

func TestSuggestMood(t *testing.T) {
	moods := scoring.DefaultMoods()

	tests := []struct {
		name         string
		tracks       []scoring.Track
		cfg          Config
		want         string
		wantFallback bool
	}{
		{
			name:         "no tracks",
			tracks:       nil,
			cfg:          DefaultConfig(),
			want:         DefaultMood,
			wantFallback: true,
		},
		{
			name:         "too few tracks",
			tracks:       around(0.85, 0.8, 4),
			cfg:          DefaultConfig(),
			want:         DefaultMood,
			wantFallback: true,
		},
		{
			name: "tracks without features are ignored",
			tracks: append(around(0.85, 0.8, 2),
				scoring.Track{ID: "x"}, scoring.Track{ID: "y"}, scoring.Track{ID: "z"}, scoring.Track{ID: "w"}),
			cfg:          DefaultConfig(),
			want:         DefaultMood,
			wantFallback: true,
		},
		{
			name:   "happy listener",
			tracks: around(0.85, 0.8, 10),
			cfg:    DefaultConfig(),
			want:   "happy",
		},
		{
			name:   "sad listener",
			tracks: around(0.175, 0.25, 10),
			cfg:    DefaultConfig(),
			want:   "sad",
		},
		{
			name:   "single cluster takes the mean",
			tracks: append(around(0.85, 0.8, 8), around(0.7, 0.9, 2)...),
			cfg:    Config{NumClusters: 1, MinTracks: 1},
			want:   "happy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestMood(tt.tracks, moods, tt.cfg)
			if got.Mood != tt.want {
				t.Errorf("SuggestMood().Mood = %q, want %q", got.Mood, tt.want)
			}
			if got.Fallback != tt.wantFallback {
				t.Errorf("SuggestMood().Fallback = %v, want %v", got.Fallback, tt.wantFallback)
			}
		})
	}
}

func TestSuggestMoodReportsCluster(t *testing.T) {
	got := SuggestMood(around(0.85, 0.8, 10), scoring.DefaultMoods(), Config{NumClusters: 1})

	if got.ClusterSize != 10 || got.Tracks != 10 {
		t.Errorf("ClusterSize = %d, Tracks = %d, want 10 and 10", got.ClusterSize, got.Tracks)
	}
	if got.Vibe != "Upbeat Party" {
		t.Errorf("Vibe = %q, want %q", got.Vibe, "Upbeat Party")
	}
	if got.Describe() == "" {
		t.Error("Describe() is empty")
	}
}

func TestSuggestionDescribe(t *testing.T) {
	tests := []struct {
		s    Suggestion
		want string
	}{
		{Suggestion{Fallback: true}, "Not enough listening history yet"},
		{Suggestion{Valence: 0.8, Energy: 0.8}, "High-energy, positive vibes - perfect for dancing and celebrations"},
		{Suggestion{Valence: 0.2, Energy: 0.3}, "Contemplative and introspective - ideal for quiet moments"},
	}
	for _, tt := range tests {
		if got := tt.s.Describe(); got != tt.want {
			t.Errorf("Describe() = %q, want %q", got, tt.want)
		}
	}
}

func TestSuggestMoodUsesMemberMean(t *testing.T) {
	// One distinct point leaves k-means with a single cluster that never
	// moves, so its seed center must not leak into the suggestion.
	tracks := make([]scoring.Track, 10)
	for i := range tracks {
		tracks[i] = scoring.Track{
			ID:      string(rune('a' + i)),
			Valence: scoring.Float(0.85),
			Energy:  scoring.Float(0.8),
		}
	}

	for i := 0; i < 50; i++ {
		got := SuggestMood(tracks, scoring.DefaultMoods(), DefaultConfig())
		if got.Mood != "happy" {
			t.Fatalf("run %d: Mood = %q, want %q (%+v)", i, got.Mood, "happy", got)
		}
		if math.Abs(got.Valence-0.85) > 1e-9 || math.Abs(got.Energy-0.8) > 1e-9 {
			t.Fatalf("run %d: centroid = (%v, %v), want (0.85, 0.8)", i, got.Valence, got.Energy)
		}
		if got.ClusterSize != 10 {
			t.Fatalf("run %d: ClusterSize = %d, want 10", i, got.ClusterSize)
		}
	}
}
