package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
)

const maxArtistsPerRequest = 50

// FetchArtistGenres returns the genres Spotify assigns to each artist ID.
// Artists Spotify does not know are absent from the result.
func (c *Client) FetchArtistGenres(ctx context.Context, artistIDs []string) (map[string][]string, error) {
	genres := make(map[string][]string, len(artistIDs))

	var ids []spotify.ID
	seen := make(map[string]bool, len(artistIDs))
	for _, id := range artistIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, spotify.ID(id))
	}

	for i := 0; i < len(ids); i += maxArtistsPerRequest {
		end := min(i+maxArtistsPerRequest, len(ids))

		artists, err := c.api.GetArtists(ctx, ids[i:end]...)
		if err != nil {
			return nil, fmt.Errorf("fetching artists (batch %d-%d): %w", i+1, end, err)
		}
		for _, a := range artists {
			if a == nil {
				continue
			}
			genres[a.ID.String()] = a.Genres
		}
	}

	return genres, nil
}

// ApplyArtistGenres sets each track's genres to the union of its artists'
// genres, in artist order without duplicates.
func ApplyArtistGenres(tracks []FullTrack, byArtist map[string][]string) map[string][]string {
	out := make(map[string][]string, len(tracks))
	for _, t := range tracks {
		var genres []string
		seen := make(map[string]bool)
		for _, id := range t.ArtistIDs {
			for _, g := range byArtist[id] {
				if !seen[g] {
					seen[g] = true
					genres = append(genres, g)
				}
			}
		}
		if len(genres) > 0 {
			out[t.ID] = genres
		}
	}
	return out
}
