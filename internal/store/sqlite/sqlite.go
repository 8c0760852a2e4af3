// Package sqlite provides a SQLite-backed playlist store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // driver

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
	"github.com/justestif/go-mood-playlist-builder/internal/store"
)

// Store implements store.Store on SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to the database at path and migrates the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite db: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		mood TEXT NOT NULL,
		context TEXT NOT NULL DEFAULT '',
		genres TEXT NOT NULL DEFAULT '[]',
		track_limit INTEGER NOT NULL,
		spotify_playlist_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_playlists_user ON playlists (user_id, created_at);

	CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		track_id TEXT NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (playlist_id, position),
		FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// Save inserts or replaces p and its tracks.
func (s *Store) Save(ctx context.Context, p *store.Playlist) error {
	store.Prepare(p, s.now())

	genres, err := json.Marshal(nonNil(p.Params.Genres))
	if err != nil {
		return fmt.Errorf("encoding genres: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO playlists (id, user_id, title, description, mood, context, genres, track_limit, spotify_playlist_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			title = excluded.title,
			description = excluded.description,
			mood = excluded.mood,
			context = excluded.context,
			genres = excluded.genres,
			track_limit = excluded.track_limit,
			spotify_playlist_id = excluded.spotify_playlist_id
	`,
		p.ID, p.UserID, p.Title, p.Description,
		p.Params.Mood, p.Params.Context, string(genres), p.Params.Limit,
		p.SpotifyPlaylistID, p.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting playlist: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_tracks WHERE playlist_id = ?`, p.ID); err != nil {
		return fmt.Errorf("clearing playlist tracks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO playlist_tracks (playlist_id, position, track_id, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing track insert: %w", err)
	}
	defer stmt.Close()

	for i, st := range p.Tracks {
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("encoding track %s: %w", st.Track.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, i, st.Track.ID, string(data)); err != nil {
			return fmt.Errorf("inserting track %s: %w", st.Track.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const playlistColumns = `id, user_id, title, description, mood, context, genres, track_limit, spotify_playlist_id, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPlaylist(row scanner) (*store.Playlist, error) {
	var (
		p       store.Playlist
		genres  string
		created string
	)
	if err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Title,
		&p.Description,
		&p.Params.Mood,
		&p.Params.Context,
		&genres,
		&p.Params.Limit,
		&p.SpotifyPlaylistID,
		&created,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(genres), &p.Params.Genres); err != nil {
		return nil, fmt.Errorf("decoding genres: %w", err)
	}
	if len(p.Params.Genres) == 0 {
		p.Params.Genres = nil
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	p.CreatedAt = t
	return &p, nil
}

// Get returns a playlist with its tracks in order.
func (s *Store) Get(ctx context.Context, id string) (*store.Playlist, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE id = ?`, id)
	p, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading playlist: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM playlist_tracks WHERE playlist_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("loading playlist tracks: %w", err)
	}
	defer rows.Close()

	p.Tracks = []scoring.ScoredTrack{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning playlist track: %w", err)
		}
		var st scoring.ScoredTrack
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			return nil, fmt.Errorf("decoding playlist track: %w", err)
		}
		p.Tracks = append(p.Tracks, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating playlist tracks: %w", err)
	}
	return p, nil
}

// List returns summaries newest first.
func (s *Store) List(ctx context.Context, userID string) ([]store.Summary, error) {
	query := `
		SELECT ` + playlistColumns + `,
			(SELECT COUNT(*) FROM playlist_tracks pt WHERE pt.playlist_id = playlists.id)
		FROM playlists
		WHERE ? = '' OR user_id = ?
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("listing playlists: %w", err)
	}
	defer rows.Close()

	out := []store.Summary{}
	for rows.Next() {
		var count int
		p, err := scanPlaylist(countScanner{rows, &count})
		if err != nil {
			return nil, fmt.Errorf("scanning playlist: %w", err)
		}
		sum := p.Summarize()
		sum.TrackCount = count
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating playlists: %w", err)
	}
	store.SortNewestFirst(out)
	return out, nil
}

// countScanner appends a trailing count column to a playlist scan.
type countScanner struct {
	rows  *sql.Rows
	count *int
}

func (c countScanner) Scan(dest ...any) error {
	return c.rows.Scan(append(dest, c.count)...)
}

// Delete removes a playlist and its tracks.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_tracks WHERE playlist_id = ?`, id); err != nil {
		return fmt.Errorf("deleting playlist tracks: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting playlist: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deleted rows: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
