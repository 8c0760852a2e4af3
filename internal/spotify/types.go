package spotify

import (
	"time"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
)

// FullTrack contains catalog metadata for a search hit.
// ArtistIDs are kept so that genres can be looked up per artist.
type FullTrack struct {
	ID         string
	Name       string
	Artists    []string
	ArtistIDs  []string
	Album      string
	DurationMs int
	URL        string
	AddedAt    time.Time // set for library tracks only
}

// ScoringTrack converts the hit into a scoring.Track without audio features.
func (t FullTrack) ScoringTrack() scoring.Track {
	return scoring.Track{
		ID:       t.ID,
		Title:    t.Name,
		Artists:  t.Artists,
		Duration: time.Duration(t.DurationMs) * time.Millisecond,
		URL:      t.URL,
	}
}

// PlayedTrack is one entry of the user's recently played history.
type PlayedTrack struct {
	ID       string
	Name     string
	Artists  []string
	PlayedAt time.Time
}
