// Package history derives a user's listening history from the playlists they
// saved and, when a Spotify user client is available, what they played last.
package history

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
	"github.com/justestif/go-mood-playlist-builder/internal/spotify"
	"github.com/justestif/go-mood-playlist-builder/internal/store"
)

// Defaults.
const (
	DefaultHalfLife     = 30 * 24 * time.Hour
	DefaultRecentWindow = 7 * 24 * time.Hour
	DefaultMaxPlaylists = 50

	// RecentlyPlayedLimit is the most Spotify returns in one page.
	RecentlyPlayedLimit = 50

	// LikedTracksLimit bounds how much of a user's library is read per build.
	LikedTracksLimit = 200
)

// Source supplies the history a playlist build is personalized with. An
// empty userID yields an empty history.
type Source interface {
	History(ctx context.Context, userID string) (*scoring.UserHistory, error)
}

// PlaylistSource is the read side of store.Store.
type PlaylistSource interface {
	List(ctx context.Context, userID string) ([]store.Summary, error)
	Get(ctx context.Context, id string) (*store.Playlist, error)
}

// Listener reports recently played tracks. *spotify.Client implements it.
type Listener interface {
	RecentlyPlayed(ctx context.Context, limit int) ([]spotify.PlayedTrack, error)
}

// Library reports the songs a user liked. A Listener that also implements
// Library adds the artists of liked songs to the history, weighted by when
// they were liked.
type Library interface {
	LikedTracks(ctx context.Context, maxTracks int) ([]spotify.FullTrack, error)
}

var (
	_ Listener = (*spotify.Client)(nil)
	_ Library  = (*spotify.Client)(nil)
)

// Builder computes histories from saved playlists.
type Builder struct {
	playlists    PlaylistSource
	halfLife     time.Duration
	recentWindow time.Duration
	maxPlaylists int
	log          *zap.Logger
	now          func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithHalfLife sets how fast older playlists lose weight.
func WithHalfLife(d time.Duration) Option {
	return func(b *Builder) {
		if d > 0 {
			b.halfLife = d
		}
	}
}

// WithRecentWindow sets how recently a playlist must have been saved for its
// tracks to count as recently heard.
func WithRecentWindow(d time.Duration) Option {
	return func(b *Builder) {
		if d >= 0 {
			b.recentWindow = d
		}
	}
}

// WithMaxPlaylists bounds how many of the newest playlists are read.
func WithMaxPlaylists(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxPlaylists = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// New creates a Builder reading from playlists.
func New(playlists PlaylistSource, opts ...Option) *Builder {
	b := &Builder{
		playlists:    playlists,
		halfLife:     DefaultHalfLife,
		recentWindow: DefaultRecentWindow,
		maxPlaylists: DefaultMaxPlaylists,
		log:          zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// History returns the user's history from saved playlists alone.
func (b *Builder) History(ctx context.Context, userID string) (*scoring.UserHistory, error) {
	return b.build(ctx, userID, nil)
}

// WithListener returns a Source that also marks the tracks l played last as
// recent.
func (b *Builder) WithListener(l Listener) Source {
	if l == nil {
		return b
	}
	return listenerSource{b: b, l: l}
}

type listenerSource struct {
	b *Builder
	l Listener
}

func (s listenerSource) History(ctx context.Context, userID string) (*scoring.UserHistory, error) {
	return s.b.build(ctx, userID, s.l)
}

func (b *Builder) build(ctx context.Context, userID string, l Listener) (*scoring.UserHistory, error) {
	saved, err := b.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := b.now()
	artists := make(map[string]float64)
	genres := make(map[string]float64)
	recent := make(map[string]struct{})

	for _, p := range saved {
		w := b.weight(p.CreatedAt, now)
		isRecent := !p.CreatedAt.IsZero() && now.Sub(p.CreatedAt) <= b.recentWindow

		for _, g := range p.Params.Genres {
			if key := strings.ToLower(strings.TrimSpace(g)); key != "" {
				genres[key] += w
			}
		}
		for _, st := range p.Tracks {
			for _, a := range st.Track.Artists {
				if key := strings.ToLower(strings.TrimSpace(a)); key != "" {
					artists[key] += w
				}
			}
			for _, g := range st.Track.Genres {
				if key := strings.ToLower(strings.TrimSpace(g)); key != "" {
					genres[key] += w
				}
			}
			if isRecent && st.Track.ID != "" {
				recent[st.Track.ID] = struct{}{}
			}
		}
	}

	if l != nil {
		played, err := l.RecentlyPlayed(ctx, RecentlyPlayedLimit)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			b.log.Warn("fetching recently played", zap.Error(err))
		default:
			for _, pt := range played {
				if pt.ID != "" {
					recent[pt.ID] = struct{}{}
				}
			}
		}

		if lib, ok := l.(Library); ok {
			if err := b.addLiked(ctx, lib, artists, now); err != nil {
				return nil, err
			}
		}
	}

	h := &scoring.UserHistory{
		RecentTrackIDs: recent,
		ArtistCounts:   roundCounts(artists),
		GenreCounts:    roundCounts(genres),
	}
	b.log.Debug("history built",
		zap.String("user", userID),
		zap.Int("playlists", len(saved)),
		zap.Int("recent", len(recent)),
		zap.Int("artists", len(h.ArtistCounts)),
		zap.Int("genres", len(h.GenreCounts)),
	)
	return h, nil
}

// addLiked adds the artists of liked songs to artists. Only a canceled
// context is an error.
func (b *Builder) addLiked(ctx context.Context, lib Library, artists map[string]float64, now time.Time) error {
	liked, err := lib.LikedTracks(ctx, LikedTracksLimit)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.log.Warn("fetching liked songs", zap.Error(err))
		return nil
	}
	for _, t := range liked {
		w := b.weight(t.AddedAt, now)
		for _, a := range t.Artists {
			if key := strings.ToLower(strings.TrimSpace(a)); key != "" {
				artists[key] += w
			}
		}
	}
	return nil
}

// FeatureTracks returns the distinct tracks with tempo, energy and valence
// from the user's saved playlists, newest playlist first.
func (b *Builder) FeatureTracks(ctx context.Context, userID string) ([]scoring.Track, error) {
	saved, err := b.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []scoring.Track
	for _, p := range saved {
		for _, st := range p.Tracks {
			t := st.Track
			if t.ID == "" || seen[t.ID] || t.Energy == nil || t.Valence == nil {
				continue
			}
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	return out, nil
}

// load returns the newest saved playlists of userID, bounded by maxPlaylists.
// Anonymous callers have no playlists: an empty userID would list everyone's.
func (b *Builder) load(ctx context.Context, userID string) ([]*store.Playlist, error) {
	if b.playlists == nil || userID == "" {
		return nil, nil
	}

	summaries, err := b.playlists.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing saved playlists: %w", err)
	}
	if len(summaries) > b.maxPlaylists {
		summaries = summaries[:b.maxPlaylists]
	}

	out := make([]*store.Playlist, 0, len(summaries))
	for _, s := range summaries {
		p, err := b.playlists.Get(ctx, s.ID)
		if errors.Is(err, store.ErrNotFound) {
			// Deleted between List and Get.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading playlist %s: %w", s.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// weight halves every halfLife. Undated playlists count fully.
func (b *Builder) weight(created, now time.Time) float64 {
	if created.IsZero() {
		return 1
	}
	age := max(now.Sub(created), 0)
	return math.Pow(0.5, float64(age)/float64(b.halfLife))
}

// roundCounts rounds weighted counts to integers, never below 1.
func roundCounts(weighted map[string]float64) map[string]int {
	out := make(map[string]int, len(weighted))
	for k, w := range weighted {
		out[k] = max(1, int(math.Round(w)))
	}
	return out
}
