package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
)

func TestApplyAudioFeatures(t *testing.T) {
	track := scoring.Track{ID: "test123", Title: "Test Song"}
	features := &spotify.AudioFeatures{
		Energy:  0.8,
		Tempo:   120.0,
		Valence: 0.5,
	}

	applyAudioFeatures(&track, features)

	tests := []struct {
		name     string
		got      *float64
		expected float64
	}{
		{"Energy", track.Energy, 0.8},
		{"Tempo", track.Tempo, 120.0},
		{"Valence", track.Valence, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got == nil {
				t.Fatalf("%s is nil, want %v", tt.name, tt.expected)
			}
			// float32 -> float64 widening is not exact for 0.8.
			if diff := *tt.got - tt.expected; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("%s = %v, want %v", tt.name, *tt.got, tt.expected)
			}
		})
	}
}

func TestApplyAudioFeaturesZeroValues(t *testing.T) {
	track := scoring.Track{ID: "test456", Title: "Silent Track"}

	applyAudioFeatures(&track, &spotify.AudioFeatures{})

	// Zero is a valid reading and must not be confused with "missing".
	if track.Energy == nil || *track.Energy != 0 {
		t.Errorf("Energy = %v, want pointer to 0", track.Energy)
	}
	if track.Valence == nil || *track.Valence != 0 {
		t.Errorf("Valence = %v, want pointer to 0", track.Valence)
	}
	if track.Tempo == nil || *track.Tempo != 0 {
		t.Errorf("Tempo = %v, want pointer to 0", track.Tempo)
	}
}

// newTestClient points a Client at an httptest server.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(spotify.New(srv.Client(), spotify.WithBaseURL(srv.URL+"/")))
}

func TestFetchAudioFeatures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio-features") {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)

		var out struct {
			AudioFeatures []*spotify.AudioFeatures `json:"audio_features"`
		}
		for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
			if id == "missing" {
				out.AudioFeatures = append(out.AudioFeatures, nil)
				continue
			}
			out.AudioFeatures = append(out.AudioFeatures, &spotify.AudioFeatures{
				ID: spotify.ID(id), Tempo: 90, Energy: 0.25, Valence: 0.5,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})

	tracks := []scoring.Track{{ID: "a"}, {ID: "missing"}, {ID: "a"}}
	if err := c.FetchAudioFeatures(context.Background(), tracks); err != nil {
		t.Fatalf("FetchAudioFeatures() error = %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	for _, i := range []int{0, 2} {
		if tracks[i].Tempo == nil || *tracks[i].Tempo != 90 {
			t.Errorf("tracks[%d].Tempo = %v, want 90", i, tracks[i].Tempo)
		}
	}
	if tracks[1].Tempo != nil || tracks[1].Energy != nil {
		t.Error("track without features should stay nil")
	}
}

func TestFetchAudioFeaturesEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})
	if err := c.FetchAudioFeatures(context.Background(), nil); err != nil {
		t.Fatalf("FetchAudioFeatures(nil) error = %v", err)
	}
}

func TestFetchArtistGenresBatches(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/artists") {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)

		var out struct {
			Artists []map[string]any `json:"artists"`
		}
		for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
			out.Artists = append(out.Artists, map[string]any{
				"id":     id,
				"name":   "Artist " + id,
				"genres": []string{"genre-" + id},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})

	var ids []string
	for i := range 60 {
		ids = append(ids, fmt.Sprintf("artist%02d", i))
	}
	ids = append(ids, "", ids[0]) // blanks and duplicates are skipped

	got, err := c.FetchArtistGenres(context.Background(), ids)
	if err != nil {
		t.Fatalf("FetchArtistGenres() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if len(got) != 60 {
		t.Errorf("got %d artists, want 60", len(got))
	}
	if g := got[ids[0]]; len(g) != 1 || g[0] != "genre-"+ids[0] {
		t.Errorf("genres for %s = %v", ids[0], g)
	}
}
