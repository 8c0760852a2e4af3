package db

import (
	"context"
	"fmt"
)

// schema is idempotent; Migrate runs it on every start.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_login_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	access_token TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	token_expiry TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions (expires_at);

CREATE TABLE IF NOT EXISTS tracks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	artists TEXT[] NOT NULL DEFAULT '{}',
	tempo DOUBLE PRECISION,
	energy DOUBLE PRECISION,
	valence DOUBLE PRECISION,
	duration_ms INTEGER,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS track_tags (
	track_id TEXT NOT NULL,
	tag_name TEXT NOT NULL,
	tag_count INTEGER NOT NULL DEFAULT 0,
	source TEXT NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (track_id, tag_name)
);

CREATE TABLE IF NOT EXISTS playlists (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	mood TEXT NOT NULL,
	context TEXT NOT NULL DEFAULT '',
	genres TEXT[] NOT NULL DEFAULT '{}',
	track_limit INTEGER NOT NULL,
	spotify_playlist_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_playlists_user_created ON playlists (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS playlist_tracks (
	playlist_id TEXT NOT NULL REFERENCES playlists (id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	track_id TEXT NOT NULL,
	data JSONB NOT NULL,
	PRIMARY KEY (playlist_id, position)
);
`

// Migrate creates missing tables and indexes.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
