// Package scoring ranks candidate tracks against a mood, a listening context,
// requested genres and optional listening history.
//
// The package is pure: it performs no I/O, keeps no state between calls and
// never logs. A Scorer is immutable after construction and safe for
// concurrent use.
package scoring

import (
	"time"
)

// Track represents a catalog track with the audio features needed for scoring.
// Features are nil when the catalog could not provide them.
type Track struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Artists  []string      `json:"artists"`
	Genres   []string      `json:"genres,omitempty"`
	Tempo    *float64      `json:"tempo,omitempty"`   // beats per minute
	Energy   *float64      `json:"energy,omitempty"`  // 0.0 - 1.0
	Valence  *float64      `json:"valence,omitempty"` // 0.0 - 1.0
	Duration time.Duration `json:"duration"`
	URL      string        `json:"url,omitempty"` // external link, informational only
}

// UserHistory summarizes what a user has listened to before.
// Artist and genre keys are matched case-insensitively.
type UserHistory struct {
	RecentTrackIDs map[string]struct{} `json:"recent_track_ids,omitempty"`
	ArtistCounts   map[string]int      `json:"artist_counts,omitempty"`
	GenreCounts    map[string]int      `json:"genre_counts,omitempty"`
}

// IsEmpty reports whether the history carries no signal.
func (h *UserHistory) IsEmpty() bool {
	return h == nil || (len(h.RecentTrackIDs) == 0 && len(h.ArtistCounts) == 0 && len(h.GenreCounts) == 0)
}

// Terms holds the normalized sub-scores of a track before weighting.
type Terms struct {
	Mood    float64 `json:"mood"`    // 0..1
	Tempo   float64 `json:"tempo"`   // 0..1
	Genre   float64 `json:"genre"`   // 0..1
	History float64 `json:"history"` // -1..1
}

// ScoredTrack is a track with its relevance score and the reasons behind it.
// Reasons are ordered mood, tempo, genre, history.
type ScoredTrack struct {
	Track   Track    `json:"track"`
	Score   float64  `json:"score"`
	Terms   Terms    `json:"terms"`
	Reasons []string `json:"reasons"`
}

// Float returns a pointer to v. Convenient for building tracks by hand.
func Float(v float64) *float64 {
	return &v
}
