package spotify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
)

const (
	maxSearchLimit = 50
	maxPageLimit   = 50
	maxRecentLimit = 50
)

// SearchTracks runs a track search and returns up to limit hits.
// An empty market lets Spotify pick the market from the token.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int, market string) ([]FullTrack, error) {
	limit = min(max(limit, 1), maxSearchLimit)

	opts := []spotify.RequestOption{spotify.Limit(limit)}
	if market != "" {
		opts = append(opts, spotify.Market(market))
	}

	result, err := c.api.Search(ctx, query, spotify.SearchTypeTrack, opts...)
	if err != nil {
		return nil, fmt.Errorf("searching tracks %q: %w", query, err)
	}
	if result.Tracks == nil {
		return nil, nil
	}

	tracks := make([]FullTrack, 0, len(result.Tracks.Tracks))
	for _, ft := range result.Tracks.Tracks {
		tracks = append(tracks, convertFullTrack(ft))
	}
	c.log.Debug("spotify search", zap.String("query", query), zap.Int("hits", len(tracks)))
	return tracks, nil
}

// LikedTracks retrieves up to maxTracks of the user's most recently liked
// songs. A non-positive maxTracks fetches the whole library.
func (c *Client) LikedTracks(ctx context.Context, maxTracks int) ([]FullTrack, error) {
	var tracks []FullTrack

	page, err := c.api.CurrentUsersTracks(ctx, spotify.Limit(maxPageLimit))
	if err != nil {
		return nil, fmt.Errorf("fetching liked songs: %w", err)
	}

	for {
		for _, saved := range page.Tracks {
			tracks = append(tracks, convertSavedTrack(saved))
			if maxTracks > 0 && len(tracks) >= maxTracks {
				return tracks, nil
			}
		}

		c.log.Debug("fetched liked songs", zap.Int("count", len(tracks)))

		err = c.api.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("fetching next page: %w", err)
		}
	}

	return tracks, nil
}

// RecentlyPlayed returns the user's most recent plays, newest first.
// Spotify caps the history at 50 entries.
func (c *Client) RecentlyPlayed(ctx context.Context, limit int) ([]PlayedTrack, error) {
	limit = min(max(limit, 1), maxRecentLimit)

	items, err := c.api.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{Limit: spotify.Numeric(limit)})
	if err != nil {
		return nil, fmt.Errorf("fetching recently played: %w", err)
	}

	played := make([]PlayedTrack, 0, len(items))
	for _, item := range items {
		played = append(played, PlayedTrack{
			ID:       item.Track.ID.String(),
			Name:     item.Track.Name,
			Artists:  artistNames(item.Track.Artists),
			PlayedAt: item.PlayedAt,
		})
	}
	return played, nil
}

// convertFullTrack converts a Spotify FullTrack to a FullTrack.
func convertFullTrack(ft spotify.FullTrack) FullTrack {
	ids := make([]string, 0, len(ft.Artists))
	for _, a := range ft.Artists {
		if a.ID != "" {
			ids = append(ids, a.ID.String())
		}
	}

	return FullTrack{
		ID:         ft.ID.String(),
		Name:       ft.Name,
		Artists:    artistNames(ft.Artists),
		ArtistIDs:  ids,
		Album:      ft.Album.Name,
		DurationMs: int(ft.Duration),
		URL:        ft.ExternalURLs["spotify"],
	}
}

// convertSavedTrack converts a library entry, keeping when it was liked.
func convertSavedTrack(saved spotify.SavedTrack) FullTrack {
	t := convertFullTrack(saved.FullTrack)

	// Parse AddedAt timestamp, use zero value on failure
	t.AddedAt, _ = time.Parse(time.RFC3339, saved.AddedAt)
	return t
}

func artistNames(artists []spotify.SimpleArtist) []string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return names
}
