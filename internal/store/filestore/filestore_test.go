package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
	"github.com/justestif/go-mood-playlist-builder/internal/store"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s, err := New(dir, WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	require.NoError(t, err)
	return s, dir
}

func playlist(title, userID string, ids ...string) *store.Playlist {
	p := &store.Playlist{
		Title:  title,
		UserID: userID,
		Params: store.Params{Mood: "chill", Context: "study", Genres: []string{"lofi"}, Limit: 20},
	}
	for _, id := range ids {
		p.Tracks = append(p.Tracks, scoring.ScoredTrack{
			Track:   scoring.Track{ID: id, Title: "Song " + id, Artists: []string{"Artist"}},
			Score:   0.5,
			Reasons: []string{"mood fit 0.90"},
		})
	}
	return p
}

func TestNewCreatesEmptyFile(t *testing.T) {
	s, dir := newStore(t)

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
	assert.Equal(t, filepath.Join(dir, FileName), s.Path())
}

func TestSaveGetListDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	first := playlist("First", "u1", "a", "b")
	require.NoError(t, s.Save(ctx, first))
	second := playlist("", "u2", "c")
	require.NoError(t, s.Save(ctx, second))

	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "Playlist "+second.ID, second.Title)

	got, err := s.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Title, got.Title)
	assert.Equal(t, first.Params, got.Params)
	require.Len(t, got.Tracks, 2)
	assert.Equal(t, "a", got.Tracks[0].Track.ID)
	assert.True(t, first.CreatedAt.Equal(got.CreatedAt))

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")
	assert.Equal(t, 2, all[1].TrackCount)

	mine, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)

	require.NoError(t, s.Delete(ctx, first.ID))
	_, err = s.Get(ctx, first.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, first.ID), store.ErrNotFound)
}

func TestSaveReplacesExisting(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	p := playlist("Mine", "", "a")
	require.NoError(t, s.Save(ctx, p))

	p.SpotifyPlaylistID = "sp123"
	require.NoError(t, s.Save(ctx, p))

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "sp123", all[0].SpotifyPlaylistID)
}

func TestGetUnknown(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLegacyShapes(t *testing.T) {
	legacyEntry := `{
		"id": "20240101-101010-abcdef",
		"title": "Old one",
		"created_at": "2024-01-01T10:10:10",
		"request": {"mood": "Happy", "activity": "Workout", "genre_or_language": "Pop", "limit": 12},
		"description": "",
		"tracks": [
			{"id": "t1", "name": "Song", "artists": ["A", {"name": "B"}], "tempo": 128},
			{"nothing": true}
		]
	}`

	tests := []struct {
		name    string
		content string
	}{
		{"items wrapper", `{"items": [` + legacyEntry + `]}`},
		{"keyed by id", `{"20240101-101010-abcdef": ` + legacyEntry + `}`},
		{"single object", legacyEntry},
		{"plain list", `[` + legacyEntry + `]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, FileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			s, err := New(dir)
			require.NoError(t, err)

			p, err := s.Get(context.Background(), "20240101-101010-abcdef")
			require.NoError(t, err)

			assert.Equal(t, "Old one", p.Title)
			assert.Equal(t, store.Params{Mood: "happy", Context: "workout", Genres: []string{"pop"}, Limit: 12}, p.Params)
			assert.Equal(t, time.Date(2024, 1, 1, 10, 10, 10, 0, time.UTC), p.CreatedAt)
			require.Len(t, p.Tracks, 1)
			assert.Equal(t, "Song", p.Tracks[0].Track.Title)
			assert.Equal(t, []string{"A", "B"}, p.Tracks[0].Track.Artists)
			require.NotNil(t, p.Tracks[0].Track.Tempo)
			assert.Equal(t, 128.0, *p.Tracks[0].Track.Tempo)

			// The file is rewritten as a plain list.
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			var list []map[string]any
			require.NoError(t, json.Unmarshal(data, &list))
			assert.Len(t, list, 1)
		})
	}
}

func TestCorruptedFileIsBackedUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": "broken"`), 0o644))

	s, err := New(dir)
	require.NoError(t, err)

	all, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)

	backup, err := os.ReadFile(filepath.Join(dir, "saved_playlists.bak"))
	require.NoError(t, err)
	assert.Equal(t, `[{"id": "broken"`, string(backup))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestUnexpectedJSONIsBackedUp(t *testing.T) {
	for _, content := range []string{`42`, `"saved"`, `true`} {
		t.Run(content, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, FileName)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			s, err := New(dir)
			require.NoError(t, err)

			all, err := s.List(context.Background(), "")
			require.NoError(t, err)
			assert.Empty(t, all)

			backup, err := os.ReadFile(filepath.Join(dir, "saved_playlists.bak"))
			require.NoError(t, err, "the original content is kept aside")
			assert.Equal(t, content, string(backup))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.JSONEq(t, `[]`, string(data))
		})
	}
}

func TestEntriesWithoutIDGetOne(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`[{"title": "no id", "tracks": []}]`), 0o644))

	s, err := New(dir)
	require.NoError(t, err)

	all, err := s.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Regexp(t, `^\d{8}-\d{6}-[0-9a-f]{6}$`, all[0].ID)

	// Stable across reads once repaired.
	again, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, all[0].ID, again[0].ID)
}

func TestCanceledContext(t *testing.T) {
	s, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Save(ctx, playlist("x", "")), context.Canceled)
	_, err := s.List(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}
