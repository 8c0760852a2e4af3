package display

import (
	"strings"
	"testing"
	"time"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
	"github.com/justestif/go-mood-playlist-builder/internal/store"
)

func TestFormatPlaylist(t *testing.T) {
	makeTrack := func(title string, score float64, reasons ...string) scoring.ScoredTrack {
		return scoring.ScoredTrack{
			Track:   scoring.Track{ID: title, Title: title, Artists: []string{"Artist " + title, "Guest"}},
			Score:   score,
			Reasons: reasons,
		}
	}

	tests := []struct {
		name           string
		playlist       *store.Playlist
		wantContains   []string
		wantNotContain []string
	}{
		{
			name: "empty playlist",
			playlist: &store.Playlist{
				Title:  "Nothing",
				Params: store.Params{Mood: "sad"},
			},
			wantContains: []string{
				"Nothing (0 tracks)",
				"Mood: sad",
				"No tracks matched",
			},
			wantNotContain: []string{
				"Context:",
				"Genres:",
				"ID:",
			},
		},
		{
			name: "full playlist",
			playlist: &store.Playlist{
				ID:          "20250101-120000-abcdef",
				Title:       "Study session",
				Description: "A chill playlist tailored for study.",
				Params:      store.Params{Mood: "chill", Context: "study", Genres: []string{"lofi", "jazz"}},
				Tracks: []scoring.ScoredTrack{
					makeTrack("One", 0.876, "mood fit 0.92", "tempo 90 BPM in study band"),
					makeTrack("Two", 0.5),
				},
				SpotifyPlaylistID: "sp123",
			},
			wantContains: []string{
				"Study session (2 tracks)",
				"Mood: chill  Context: study  Genres: lofi, jazz",
				"A chill playlist tailored for study.",
				"ID: 20250101-120000-abcdef",
				"Spotify: sp123",
				` 1. "One" - Artist One, Guest  (0.88)`,
				"    mood fit 0.92; tempo 90 BPM in study band",
				` 2. "Two" - Artist Two, Guest  (0.50)`,
			},
			wantNotContain: []string{
				"No tracks matched",
			},
		},
		{
			name: "single track uses singular",
			playlist: &store.Playlist{
				Title:  "Solo",
				Params: store.Params{Mood: "happy"},
				Tracks: []scoring.ScoredTrack{makeTrack("Only", 1)},
			},
			wantContains: []string{
				"Solo (1 track)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatPlaylist(tt.playlist)

			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("FormatPlaylist() missing expected content %q\nGot:\n%s", want, got)
				}
			}

			for _, notWant := range tt.wantNotContain {
				if strings.Contains(got, notWant) {
					t.Errorf("FormatPlaylist() contains unexpected content %q\nGot:\n%s", notWant, got)
				}
			}
		})
	}
}

func TestFormatSummaries(t *testing.T) {
	created := time.Date(2025, 2, 3, 14, 5, 0, 0, time.UTC)

	if got := FormatSummaries(nil); got != "No saved playlists\n" {
		t.Errorf("FormatSummaries(nil) = %q", got)
	}

	got := FormatSummaries([]store.Summary{
		{ID: "a", Title: "First", CreatedAt: created, Mood: "chill", Context: "study", TrackCount: 20, SpotifyPlaylistID: "sp"},
		{ID: "b", Title: "Second", CreatedAt: created, Mood: "happy", TrackCount: 1},
	})

	for _, want := range []string{
		"Found 2 saved playlists",
		"a  2025-02-03 14:05  chill/study",
		"20 tracks  First  [published]",
		"1 track  Second",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatSummaries() missing %q\nGot:\n%s", want, got)
		}
	}
	if strings.Count(got, "[published]") != 1 {
		t.Errorf("only published playlists are marked\nGot:\n%s", got)
	}
}

func TestFormatProfiles(t *testing.T) {
	got := FormatProfiles(scoring.DefaultMoods(), scoring.DefaultContexts())

	for _, want := range []string{
		"Moods:",
		"happy      valence 0.70-1.00  energy 0.60-1.00  tempo 100-140",
		"Contexts:",
		"commute    tempo 80-130  On the move",
		"sleep      tempo 40-90 energy 0.00-0.35",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatProfiles() missing %q\nGot:\n%s", want, got)
		}
	}
}
