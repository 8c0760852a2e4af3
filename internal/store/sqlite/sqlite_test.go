package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
	"github.com/justestif/go-mood-playlist-builder/internal/store"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return s
}

func newPlaylist(title, userID string, ids ...string) *store.Playlist {
	p := &store.Playlist{
		Title:       title,
		UserID:      userID,
		Description: "A chill playlist tailored for study.",
		Params:      store.Params{Mood: "chill", Context: "study", Genres: []string{"lofi", "jazz"}, Limit: 10},
	}
	for i, id := range ids {
		p.Tracks = append(p.Tracks, scoring.ScoredTrack{
			Track: scoring.Track{
				ID:       id,
				Title:    "Song " + id,
				Artists:  []string{"Artist"},
				Tempo:    scoring.Float(80),
				Energy:   scoring.Float(0.3),
				Valence:  scoring.Float(0.6),
				Duration: 3 * time.Minute,
			},
			Score:   1 - float64(i)/10,
			Terms:   scoring.Terms{Mood: 0.9, Tempo: 1},
			Reasons: []string{"mood fit 0.90", "tempo 80 BPM within study band"},
		})
	}
	return p
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	p := newPlaylist("Focus", "u1", "b", "a", "c")
	require.NoError(t, s.Save(ctx, p))
	require.NotEmpty(t, p.ID)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, p.Title, got.Title)
	assert.Equal(t, p.Description, got.Description)
	assert.Equal(t, p.Params, got.Params)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, p.Tracks, got.Tracks, "tracks keep order and content")
}

func TestSaveUpserts(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	p := newPlaylist("Focus", "", "a", "b")
	require.NoError(t, s.Save(ctx, p))

	p.SpotifyPlaylistID = "sp1"
	p.Tracks = p.Tracks[:1]
	require.NoError(t, s.Save(ctx, p))

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "sp1", got.SpotifyPlaylistID)
	assert.Len(t, got.Tracks, 1)
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	older := newPlaylist("Older", "u1", "a")
	newer := newPlaylist("Newer", "u1", "a", "b")
	other := newPlaylist("Other", "u2")
	for _, p := range []*store.Playlist{older, newer, other} {
		require.NoError(t, s.Save(ctx, p))
	}

	mine, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, newer.ID, mine[0].ID)
	assert.Equal(t, 2, mine[0].TrackCount)
	assert.Equal(t, older.ID, mine[1].ID)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, other.ID, all[0].ID)
	assert.Equal(t, 0, all[0].TrackCount)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	p := newPlaylist("Gone", "", "a")
	require.NoError(t, s.Save(ctx, p))
	require.NoError(t, s.Delete(ctx, p.ID))

	_, err := s.Get(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, p.ID), store.ErrNotFound)
}

func TestOpenFileCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "playlists.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), newPlaylist("x", "")))
	require.NoError(t, s.Close())

	// Reopening runs the migration again without error and keeps data.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	all, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
