package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
	"github.com/justestif/go-mood-playlist-builder/internal/store"
)

// openTestDB connects to TEST_DATABASE_URL or skips the test.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	database, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(database.Close)

	_, err = database.Pool().Exec(ctx, `TRUNCATE playlists, playlist_tracks, sessions, users, tracks, track_tags`)
	require.NoError(t, err)
	return database
}

func TestPlaylistRepository(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	repo := database.Playlists()

	p := &store.Playlist{
		UserID: "u1",
		Title:  "Focus",
		Params: store.Params{Mood: "chill", Context: "study", Genres: []string{"lofi"}, Limit: 5},
		Tracks: []scoring.ScoredTrack{
			{Track: scoring.Track{ID: "b", Title: "B"}, Score: 0.9, Reasons: []string{"mood fit 0.95"}},
			{Track: scoring.Track{ID: "a", Title: "A"}, Score: 0.8},
		},
	}
	require.NoError(t, repo.Save(ctx, p))

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Params, got.Params)
	require.Len(t, got.Tracks, 2)
	assert.Equal(t, "b", got.Tracks[0].Track.ID)

	p.SpotifyPlaylistID = "sp1"
	require.NoError(t, repo.Save(ctx, p))

	list, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].TrackCount)
	assert.Equal(t, "sp1", list[0].SpotifyPlaylistID)

	require.NoError(t, repo.Delete(ctx, p.ID))
	assert.ErrorIs(t, repo.Delete(ctx, p.ID), store.ErrNotFound)
	_, err = repo.Get(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTrackRepository(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	repo := database.Tracks()

	tempo := 120.0
	require.NoError(t, repo.UpsertBatch(ctx, []Track{
		{ID: "t1", Name: "One", Artists: []string{"A", "B"}, Tempo: &tempo},
		{ID: "t2", Name: "Two"},
	}))

	got, err := repo.GetMany(ctx, []string{"t1", "t2", "t3"}, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"A", "B"}, got["t1"].Artists)
	require.NotNil(t, got["t1"].Tempo)
	assert.Nil(t, got["t2"].Energy)

	stale, err := repo.GetMany(ctx, []string{"t1"}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestSessionRepository(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	repo := database.Sessions()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, database.Users().Upsert(ctx, &User{ID: "u1", DisplayName: "Una"}))

	token := &oauth2.Token{AccessToken: "tok", RefreshToken: "ref", Expiry: now.Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, &Session{ID: "s1", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)}, token))
	require.NoError(t, repo.Create(ctx, &Session{ID: "s2", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}, token))
	assert.ErrorIs(t, repo.Create(ctx, &Session{ID: "s3", UserID: "u1", CreatedAt: now, ExpiresAt: now}, token), ErrInvalidSession)

	s, err := repo.Get(ctx, "s1", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, "Una", s.UserName, "display name joined from users")
	assert.Equal(t, "ref", s.OAuthToken().RefreshToken)

	// Spotify may omit the refresh token on refresh.
	require.NoError(t, repo.UpdateToken(ctx, "s1", &oauth2.Token{AccessToken: "tok2", Expiry: now.Add(2 * time.Hour)}))
	s, err = repo.Get(ctx, "s1", now)
	require.NoError(t, err)
	assert.Equal(t, "tok2", s.AccessToken)
	assert.Equal(t, "ref", s.RefreshToken)
	assert.ErrorIs(t, repo.UpdateToken(ctx, "nope", token), ErrNotFound)

	_, err = repo.Get(ctx, "s2", now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound, "expired at the given time")
	n, err := repo.DeleteExpired(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.Get(ctx, "s1", now)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "s1"), "deleting twice is fine")
}

func TestTagRepository(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	repo := database.Tags()

	old := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Second)
	fresh := old.Add(47 * time.Hour)
	require.NoError(t, repo.ReplaceForTracks(ctx, []TrackTag{
		{TrackID: "t1", TagName: "jazz", TagCount: 50, Source: "track", FetchedAt: old},
		{TrackID: "t1", TagName: "swing", TagCount: 90, Source: "track", FetchedAt: old},
		{TrackID: "t2", TagName: "rock", TagCount: 10, Source: "artist", FetchedAt: old},
	}))

	// t1 is refetched and lost its swing tag; duplicates keep the last row.
	require.NoError(t, repo.ReplaceForTracks(ctx, []TrackTag{
		{TrackID: "t1", TagName: "jazz", TagCount: 60, Source: "track", FetchedAt: fresh},
		{TrackID: "t1", TagName: "jazz", TagCount: 70, Source: "track", FetchedAt: fresh},
		{TrackID: "t1", TagName: "bebop", TagCount: 80, Source: "track", FetchedAt: fresh},
	}))

	got, err := repo.GetForTracks(ctx, []string{"t1", "t2"}, old)
	require.NoError(t, err)
	require.Len(t, got["t1"], 2)
	assert.Equal(t, "bebop", got["t1"][0].TagName, "ordered by count")
	assert.Equal(t, 70, got["t1"][1].TagCount)
	assert.Len(t, got["t2"], 1)

	got, err = repo.GetForTracks(ctx, []string{"t1", "t2"}, fresh)
	require.NoError(t, err)
	assert.NotContains(t, got, "t2", "stale tags are not returned")

	n, err := repo.DeleteOlderThan(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
