// Package cache keeps recently fetched candidate pools in Redis so repeated
// builds with the same inputs skip the catalog round trips.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
)

const keyPrefix = "mpb:candidates:v2:"

// DefaultTTL is used when a non-positive TTL is configured.
const DefaultTTL = 15 * time.Minute

// Connect opens a Redis client and verifies it answers.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Key identifies one candidate pool.
type Key struct {
	Mood     string
	Context  string
	Genres   []string
	Market   string
	PerQuery int // tracks requested per search variant
}

// String returns the Redis key. Case, surrounding whitespace, genre order and
// duplicate genres do not change it.
func (k Key) String() string {
	genres := make([]string, 0, len(k.Genres))
	for _, g := range k.Genres {
		if g = scoring.NormalizeTag(g); g != "" {
			genres = append(genres, g)
		}
	}
	slices.Sort(genres)
	genres = slices.Compact(genres)

	norm := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(k.Mood)),
		strings.ToLower(strings.TrimSpace(k.Context)),
		strings.Join(genres, ","),
		strings.ToUpper(strings.TrimSpace(k.Market)),
		strconv.Itoa(k.PerQuery),
	}, "|")
	sum := sha256.Sum256([]byte(norm))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// Candidates caches candidate pools. A nil *Candidates, or one without a
// client, never hits and never stores.
type Candidates struct {
	client redis.Cmdable
	ttl    time.Duration
	log    *zap.Logger
}

// Option configures Candidates.
type Option func(*Candidates)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Candidates) {
		if l != nil {
			c.log = l
		}
	}
}

// New wraps client. ttl bounds how long a pool is reused.
func New(client redis.Cmdable, ttl time.Duration, opts ...Option) *Candidates {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Candidates{client: client, ttl: ttl, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether the cache is backed by Redis.
func (c *Candidates) Enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached pool for k and whether it was found.
func (c *Candidates) Get(ctx context.Context, k Key) ([]scoring.Track, bool, error) {
	if !c.Enabled() {
		return nil, false, nil
	}

	data, err := c.client.Get(ctx, k.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading candidate cache: %w", err)
	}

	var tracks []scoring.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		// A bad entry is a miss; drop it so the next build rewrites it.
		c.log.Warn("dropping undecodable cache entry", zap.String("key", k.String()), zap.Error(err))
		c.client.Del(ctx, k.String())
		return nil, false, nil
	}
	return tracks, true, nil
}

// Set stores the pool for k.
func (c *Candidates) Set(ctx context.Context, k Key, tracks []scoring.Track) error {
	if !c.Enabled() {
		return nil
	}

	data, err := json.Marshal(tracks)
	if err != nil {
		return fmt.Errorf("encoding candidates: %w", err)
	}
	if err := c.client.Set(ctx, k.String(), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing candidate cache: %w", err)
	}
	return nil
}

// Invalidate removes the pool for k.
func (c *Candidates) Invalidate(ctx context.Context, k Key) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.client.Del(ctx, k.String()).Err(); err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}
