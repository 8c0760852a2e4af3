package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
)

// FetchAudioFeatures retrieves tempo, energy and valence for the given tracks.
// Updates tracks in-place with their audio features.
// Batches requests to max 100 tracks per request per Spotify API limits.
// Tracks without available audio features keep nil feature fields.
func (c *Client) FetchAudioFeatures(ctx context.Context, tracks []scoring.Track) error {
	if len(tracks) == 0 {
		return nil
	}

	// Duplicate IDs share one lookup and are all updated.
	ids := make([]spotify.ID, 0, len(tracks))
	indexByID := make(map[string][]int, len(tracks))
	for i, t := range tracks {
		if _, seen := indexByID[t.ID]; !seen {
			ids = append(ids, spotify.ID(t.ID))
		}
		indexByID[t.ID] = append(indexByID[t.ID], i)
	}

	total := len(ids)
	applied := 0

	for i := 0; i < total; i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, total)
		batch := ids[i:end]

		features, err := c.api.GetAudioFeatures(ctx, batch...)
		if err != nil {
			return fmt.Errorf("fetching audio features (batch %d-%d): %w", i+1, end, err)
		}

		for _, f := range features {
			if f == nil {
				continue // Track has no audio features
			}
			for _, idx := range indexByID[f.ID.String()] {
				applyAudioFeatures(&tracks[idx], f)
				applied++
			}
		}
	}

	c.log.Debug("fetched audio features", zap.Int("requested", total), zap.Int("applied", applied))
	return nil
}

// applyAudioFeatures copies the features used for scoring onto a track.
func applyAudioFeatures(t *scoring.Track, f *spotify.AudioFeatures) {
	t.Tempo = scoring.Float(float64(f.Tempo))
	t.Energy = scoring.Float(float64(f.Energy))
	t.Valence = scoring.Float(float64(f.Valence))
}
