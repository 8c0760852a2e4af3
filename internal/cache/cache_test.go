package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
)

// fakeRedis answers the few commands the cache uses from a map.
// Any other command panics through the nil embedded interface.
type fakeRedis struct {
	redis.Cmdable
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestKeyNormalization(t *testing.T) {
	base := Key{Mood: "chill", Context: "study", Genres: []string{"lofi", "jazz"}, Market: "US"}

	same := []Key{
		{Mood: " Chill ", Context: "STUDY", Genres: []string{"Jazz", "Lo-Fi"}, Market: "us"},
		{Mood: "chill", Context: "study", Genres: []string{"jazz", "lofi", "lofi", ""}, Market: "US"},
	}
	for _, k := range same {
		assert.Equal(t, base.String(), k.String(), "%+v", k)
	}

	different := []Key{
		{Mood: "happy", Context: "study", Genres: []string{"lofi", "jazz"}, Market: "US"},
		{Mood: "chill", Context: "", Genres: []string{"lofi", "jazz"}, Market: "US"},
		{Mood: "chill", Context: "study", Genres: []string{"lofi"}, Market: "US"},
		{Mood: "chill", Context: "study", Genres: []string{"lofi", "jazz"}, Market: "GB"},
		{Mood: "chill", Context: "study", Genres: []string{"lofi", "jazz"}, Market: "US", PerQuery: 150},
	}
	for _, k := range different {
		assert.NotEqual(t, base.String(), k.String(), "%+v", k)
	}

	assert.True(t, strings.HasPrefix(base.String(), keyPrefix))
}

func TestDisabledCacheIsNoop(t *testing.T) {
	ctx := context.Background()
	for name, c := range map[string]*Candidates{
		"nil":       nil,
		"no client": New(nil, time.Minute),
	} {
		t.Run(name, func(t *testing.T) {
			assert.False(t, c.Enabled())
			require.NoError(t, c.Set(ctx, Key{Mood: "chill"}, []scoring.Track{{ID: "a"}}))
			got, ok, err := c.Get(ctx, Key{Mood: "chill"})
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, got)
			assert.NoError(t, c.Invalidate(ctx, Key{Mood: "chill"}))
		})
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := New(fake, 5*time.Minute)
	key := Key{Mood: "chill", Genres: []string{"lofi"}}

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "empty cache misses")

	tracks := []scoring.Track{
		{ID: "a", Title: "A", Artists: []string{"X"}, Tempo: scoring.Float(80), Energy: scoring.Float(0.3), Valence: scoring.Float(0.6)},
		{ID: "b", Title: "B"},
	}
	require.NoError(t, c.Set(ctx, key, tracks))
	assert.Equal(t, 5*time.Minute, fake.ttls[key.String()])

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tracks, got)

	require.NoError(t, c.Invalidate(ctx, key))
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUndecodableEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	key := Key{Mood: "chill"}
	fake.data[key.String()] = "not json"

	c := New(fake, time.Minute)
	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotContains(t, fake.data, key.String())
}

func TestNewDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, New(nil, 0).ttl)
}

func TestConnectUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
