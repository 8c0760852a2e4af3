package db

import (
	"time"
)

// User represents a Spotify user profile.
type User struct {
	ID          string
	DisplayName string
	Email       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time // nullable
}

// Session represents an authenticated web session.
type Session struct {
	ID           string
	UserID       string
	UserName     string // joined from users, not stored
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Track is a catalog track with cached audio features.
// Feature columns are nullable; Spotify has no analysis for some tracks.
type Track struct {
	ID         string
	Name       string
	Artists    []string
	Tempo      *float64
	Energy     *float64
	Valence    *float64
	DurationMs *int
	FetchedAt  time.Time
}

// TrackTag represents a Last.fm tag for a track.
type TrackTag struct {
	TrackID   string
	TagName   string
	TagCount  int
	Source    string // "track" or "artist"
	FetchedAt time.Time
}
