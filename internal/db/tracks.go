package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TrackRepository caches catalog tracks and their audio features.
type TrackRepository struct {
	pool *pgxpool.Pool
}

// UpsertBatch inserts or updates multiple tracks efficiently.
func (r *TrackRepository) UpsertBatch(ctx context.Context, tracks []Track) error {
	if len(tracks) == 0 {
		return nil
	}

	query := `
		INSERT INTO tracks (id, name, artists, tempo, energy, valence, duration_ms, fetched_at)
		SELECT u.id, u.name, ARRAY(SELECT jsonb_array_elements_text(u.artists::jsonb)), u.tempo, u.energy, u.valence, u.duration_ms, u.fetched_at
		FROM unnest($1::text[], $2::text[], $3::text[], $4::float8[], $5::float8[], $6::float8[], $7::int[], $8::timestamptz[])
			AS u(id, name, artists, tempo, energy, valence, duration_ms, fetched_at)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			artists = EXCLUDED.artists,
			tempo = EXCLUDED.tempo,
			energy = EXCLUDED.energy,
			valence = EXCLUDED.valence,
			duration_ms = EXCLUDED.duration_ms,
			fetched_at = EXCLUDED.fetched_at
	`

	ids := make([]string, len(tracks))
	names := make([]string, len(tracks))
	// Artist lists are ragged, so they travel as JSON text.
	artists := make([]string, len(tracks))
	tempos := make([]*float64, len(tracks))
	energies := make([]*float64, len(tracks))
	valences := make([]*float64, len(tracks))
	durations := make([]*int, len(tracks))
	fetchedAts := make([]time.Time, len(tracks))

	now := time.Now()
	for i, t := range tracks {
		ids[i] = t.ID
		names[i] = t.Name
		encoded, err := json.Marshal(nonNilStrings(t.Artists))
		if err != nil {
			return fmt.Errorf("encoding artists for %s: %w", t.ID, err)
		}
		artists[i] = string(encoded)
		tempos[i] = t.Tempo
		energies[i] = t.Energy
		valences[i] = t.Valence
		durations[i] = t.DurationMs
		fetchedAts[i] = now
	}

	_, err := r.pool.Exec(ctx, query, ids, names, artists, tempos, energies, valences, durations, fetchedAts)
	if err != nil {
		return fmt.Errorf("batch upserting tracks: %w", err)
	}
	return nil
}

// GetMany returns the cached tracks among ids fetched after since, keyed by ID.
func (r *TrackRepository) GetMany(ctx context.Context, ids []string, since time.Time) (map[string]Track, error) {
	if len(ids) == 0 {
		return map[string]Track{}, nil
	}

	query := `
		SELECT id, name, artists, tempo, energy, valence, duration_ms, fetched_at
		FROM tracks
		WHERE id = ANY($1) AND fetched_at >= $2
	`
	rows, err := r.pool.Query(ctx, query, ids, since)
	if err != nil {
		return nil, fmt.Errorf("querying tracks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Track, len(ids))
	for rows.Next() {
		var track Track
		if err := rows.Scan(
			&track.ID,
			&track.Name,
			&track.Artists,
			&track.Tempo,
			&track.Energy,
			&track.Valence,
			&track.DurationMs,
			&track.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning track: %w", err)
		}
		out[track.ID] = track
	}
	return out, rows.Err()
}

// DeleteOlderThan evicts cached tracks fetched before t.
func (r *TrackRepository) DeleteOlderThan(ctx context.Context, t time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM tracks WHERE fetched_at < $1`, t)
	if err != nil {
		return 0, fmt.Errorf("deleting stale tracks: %w", err)
	}
	return result.RowsAffected(), nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
