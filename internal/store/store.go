// Package store defines how built playlists are persisted.
//
// Implementations live in subpackages (filestore, sqlite) and in the db
// package for PostgreSQL. All of them satisfy Store.
package store

import (
	"cmp"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
)

// ErrNotFound is returned when a playlist ID is unknown.
var ErrNotFound = errors.New("playlist not found")

// Store persists playlists.
type Store interface {
	// Save inserts p, or replaces the playlist with the same ID.
	// A missing ID or creation time is filled in.
	Save(ctx context.Context, p *Playlist) error
	Get(ctx context.Context, id string) (*Playlist, error)
	// List returns summaries newest first. An empty userID lists everything.
	List(ctx context.Context, userID string) ([]Summary, error)
	Delete(ctx context.Context, id string) error
}

// Params are the inputs a playlist was built from.
type Params struct {
	Mood    string   `json:"mood"`
	Context string   `json:"context,omitempty"`
	Genres  []string `json:"genres,omitempty"`
	Limit   int      `json:"limit"`
}

// Playlist is a persisted build result.
type Playlist struct {
	ID          string                `json:"id"`
	UserID      string                `json:"user_id,omitempty"`
	Title       string                `json:"title"`
	Description string                `json:"description,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	Params      Params                `json:"params"`
	Tracks      []scoring.ScoredTrack `json:"tracks"`

	// SpotifyPlaylistID is set once the playlist is published.
	SpotifyPlaylistID string `json:"spotify_playlist_id,omitempty"`
}

// Summary is the list view of a playlist.
type Summary struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id,omitempty"`
	Title             string    `json:"title"`
	CreatedAt         time.Time `json:"created_at"`
	Mood              string    `json:"mood"`
	Context           string    `json:"context,omitempty"`
	Genres            []string  `json:"genres,omitempty"`
	TrackCount        int       `json:"track_count"`
	SpotifyPlaylistID string    `json:"spotify_playlist_id,omitempty"`
}

// Summarize returns the list view of p.
func (p *Playlist) Summarize() Summary {
	return Summary{
		ID:                p.ID,
		UserID:            p.UserID,
		Title:             p.Title,
		CreatedAt:         p.CreatedAt,
		Mood:              p.Params.Mood,
		Context:           p.Params.Context,
		Genres:            p.Params.Genres,
		TrackCount:        len(p.Tracks),
		SpotifyPlaylistID: p.SpotifyPlaylistID,
	}
}

// NewID returns an ID of the form YYYYMMDD-HHMMSS-xxxxxx.
func NewID(now time.Time) string {
	u := uuid.New()
	return fmt.Sprintf("%s-%s", now.Format("20060102-150405"), hex.EncodeToString(u[:3]))
}

// Prepare fills in the ID, creation time and title of a playlist about to be
// saved for the first time.
func Prepare(p *Playlist, now time.Time) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now.UTC().Truncate(time.Second)
	}
	if p.ID == "" {
		p.ID = NewID(p.CreatedAt)
	}
	if strings.TrimSpace(p.Title) == "" {
		p.Title = "Playlist " + p.ID
	}
}

// SortNewestFirst orders summaries by creation time descending, then ID
// descending so playlists created within the same second stay stable.
func SortNewestFirst(s []Summary) {
	slices.SortStableFunc(s, func(a, b Summary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
