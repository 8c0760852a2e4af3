package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
	"github.com/justestif/go-mood-playlist-builder/internal/store"
)

// PlaylistRepository handles saved playlist operations.
type PlaylistRepository struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*PlaylistRepository)(nil)

// Save inserts or replaces a playlist together with its tracks.
func (r *PlaylistRepository) Save(ctx context.Context, p *store.Playlist) error {
	store.Prepare(p, time.Now())

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	playlistQuery := `
		INSERT INTO playlists (id, user_id, title, description, mood, context, genres, track_limit, spotify_playlist_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			mood = EXCLUDED.mood,
			context = EXCLUDED.context,
			genres = EXCLUDED.genres,
			track_limit = EXCLUDED.track_limit,
			spotify_playlist_id = EXCLUDED.spotify_playlist_id
	`
	genres := p.Params.Genres
	if genres == nil {
		genres = []string{}
	}
	_, err = tx.Exec(ctx, playlistQuery,
		p.ID,
		p.UserID,
		p.Title,
		p.Description,
		p.Params.Mood,
		p.Params.Context,
		genres,
		p.Params.Limit,
		p.SpotifyPlaylistID,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting playlist: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM playlist_tracks WHERE playlist_id = $1`, p.ID); err != nil {
		return fmt.Errorf("clearing playlist tracks: %w", err)
	}

	if len(p.Tracks) > 0 {
		positions := make([]int, len(p.Tracks))
		trackIDs := make([]string, len(p.Tracks))
		data := make([]string, len(p.Tracks))
		for i, st := range p.Tracks {
			encoded, err := json.Marshal(st)
			if err != nil {
				return fmt.Errorf("encoding track %s: %w", st.Track.ID, err)
			}
			positions[i] = i
			trackIDs[i] = st.Track.ID
			data[i] = string(encoded)
		}

		tracksQuery := `
			INSERT INTO playlist_tracks (playlist_id, position, track_id, data)
			SELECT $1, u.position, u.track_id, u.data::jsonb
			FROM unnest($2::int[], $3::text[], $4::text[]) AS u(position, track_id, data)
		`
		if _, err := tx.Exec(ctx, tracksQuery, p.ID, positions, trackIDs, data); err != nil {
			return fmt.Errorf("inserting playlist tracks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get retrieves a playlist and its tracks in order.
func (r *PlaylistRepository) Get(ctx context.Context, id string) (*store.Playlist, error) {
	query := `
		SELECT id, user_id, title, description, mood, context, genres, track_limit, spotify_playlist_id, created_at
		FROM playlists
		WHERE id = $1
	`
	var p store.Playlist
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.UserID,
		&p.Title,
		&p.Description,
		&p.Params.Mood,
		&p.Params.Context,
		&p.Params.Genres,
		&p.Params.Limit,
		&p.SpotifyPlaylistID,
		&p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying playlist: %w", err)
	}
	if len(p.Params.Genres) == 0 {
		p.Params.Genres = nil
	}

	rows, err := r.pool.Query(ctx, `SELECT data FROM playlist_tracks WHERE playlist_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("querying playlist tracks: %w", err)
	}
	defer rows.Close()

	p.Tracks = []scoring.ScoredTrack{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning playlist track: %w", err)
		}
		var st scoring.ScoredTrack
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("decoding playlist track: %w", err)
		}
		p.Tracks = append(p.Tracks, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns playlist summaries newest first. An empty userID lists all.
func (r *PlaylistRepository) List(ctx context.Context, userID string) ([]store.Summary, error) {
	query := `
		SELECT p.id, p.user_id, p.title, p.mood, p.context, p.genres, p.spotify_playlist_id, p.created_at,
			(SELECT COUNT(*) FROM playlist_tracks pt WHERE pt.playlist_id = p.id)
		FROM playlists p
		WHERE $1 = '' OR p.user_id = $1
		ORDER BY p.created_at DESC, p.id DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying playlists: %w", err)
	}
	defer rows.Close()

	out := []store.Summary{}
	for rows.Next() {
		var s store.Summary
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.Title,
			&s.Mood,
			&s.Context,
			&s.Genres,
			&s.SpotifyPlaylistID,
			&s.CreatedAt,
			&s.TrackCount,
		); err != nil {
			return nil, fmt.Errorf("scanning playlist: %w", err)
		}
		if len(s.Genres) == 0 {
			s.Genres = nil
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes a playlist by ID. Tracks cascade.
func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting playlist: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
