// Package catalog assembles the candidate pool for a playlist build: it runs
// several Spotify searches concurrently, merges the results and fills in the
// audio features and genres the scorer needs.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/justestif/go-mood-playlist-builder/internal/cache"
	"github.com/justestif/go-mood-playlist-builder/internal/db"
	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
	"github.com/justestif/go-mood-playlist-builder/internal/spotify"
)

// ErrSearchFailed is returned when every search variant failed.
var ErrSearchFailed = errors.New("catalog search failed")

// Defaults.
const (
	DefaultConcurrency = 4
	DefaultFeatureTTL  = 30 * 24 * time.Hour
	maxPerQuery        = 50
	minPerQuery        = 30
)

// Query describes the pool to fetch.
type Query struct {
	Mood    string
	Context string
	Genres  []string
	Vibe    string // optional free text searched as-is
	Limit   int    // playlist size; the pool is larger
	Market  string
}

// Searcher is the Spotify side of the catalog. *spotify.Client implements it.
type Searcher interface {
	SearchTracks(ctx context.Context, query string, limit int, market string) ([]spotify.FullTrack, error)
	FetchAudioFeatures(ctx context.Context, tracks []scoring.Track) error
	FetchArtistGenres(ctx context.Context, artistIDs []string) (map[string][]string, error)
}

// GenreEnricher fills genres for tracks that have none. *tags.Service implements it.
type GenreEnricher interface {
	EnrichGenres(ctx context.Context, tracks []scoring.Track) (int, error)
}

// FeatureStore caches audio features across builds. *db.TrackRepository implements it.
type FeatureStore interface {
	GetMany(ctx context.Context, ids []string, since time.Time) (map[string]db.Track, error)
	UpsertBatch(ctx context.Context, tracks []db.Track) error
}

var (
	_ Searcher     = (*spotify.Client)(nil)
	_ FeatureStore = (*db.TrackRepository)(nil)
)

// Service implements the catalog search collaborator.
type Service struct {
	searcher    Searcher
	enricher    GenreEnricher
	features    FeatureStore
	featureTTL  time.Duration
	cache       *cache.Candidates
	concurrency int
	log         *zap.Logger
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithGenreEnricher adds Last.fm genres to tracks whose artists have none on Spotify.
func WithGenreEnricher(e GenreEnricher) Option {
	return func(s *Service) { s.enricher = e }
}

// WithFeatureStore reuses audio features fetched by earlier builds.
func WithFeatureStore(fs FeatureStore, ttl time.Duration) Option {
	return func(s *Service) {
		s.features = fs
		if ttl > 0 {
			s.featureTTL = ttl
		}
	}
}

// WithCache reuses whole candidate pools for identical queries.
func WithCache(c *cache.Candidates) Option {
	return func(s *Service) { s.cache = c }
}

// WithConcurrency bounds how many searches run at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a catalog service.
func New(searcher Searcher, opts ...Option) *Service {
	s := &Service{
		searcher:    searcher,
		featureTTL:  DefaultFeatureTTL,
		concurrency: DefaultConcurrency,
		log:         zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns the candidate pool for q: distinct tracks in first-seen
// order across the query variants, with features and genres filled in where
// the catalog has them. Failing variants are tolerated as long as one succeeds.
func (s *Service) Search(ctx context.Context, q Query) ([]scoring.Track, error) {
	perQuery := min(max(minPerQuery, q.Limit*3), maxPerQuery)
	key := cache.Key{Mood: q.Mood, Context: q.Context, Genres: q.Genres, Market: q.Market, PerQuery: perQuery}
	if q.Vibe == "" {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("candidate cache unavailable", zap.Error(err))
		}
		if ok {
			s.log.Debug("candidate cache hit", zap.Int("tracks", len(cached)))
			return cached, nil
		}
	}

	found, err := s.searchVariants(ctx, q, perQuery)
	if err != nil {
		return nil, err
	}

	tracks := make([]scoring.Track, len(found))
	for i, ft := range found {
		tracks[i] = ft.ScoringTrack()
	}

	// A pool built while an upstream call failed is served once but not
	// cached, so the next identical build retries.
	complete := s.applyArtistGenres(ctx, found, tracks)
	featuresOK, err := s.applyFeatures(ctx, found, tracks)
	if err != nil {
		return nil, err
	}
	complete = complete && featuresOK
	if s.enricher != nil {
		n, err := s.enricher.EnrichGenres(ctx, tracks)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn("genre enrichment failed", zap.Error(err))
			complete = false
		} else if n > 0 {
			s.log.Debug("enriched genres from last.fm", zap.Int("tracks", n))
		}
	}

	if q.Vibe == "" && complete {
		if err := s.cache.Set(ctx, key, tracks); err != nil {
			s.log.Warn("caching candidates", zap.Error(err))
		}
	}
	return tracks, nil
}

// searchVariants runs every query variant and merges the results.
func (s *Service) searchVariants(ctx context.Context, q Query, perQuery int) ([]spotify.FullTrack, error) {
	variants := Variants(q)
	if len(variants) == 0 {
		return nil, fmt.Errorf("%w: nothing to search for", ErrSearchFailed)
	}

	results := make([][]spotify.FullTrack, len(variants))
	errs := make([]error, len(variants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, v := range variants {
		g.Go(func() error {
			found, err := s.searcher.SearchTracks(gctx, v, perQuery, q.Market)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				errs[i] = fmt.Errorf("searching %q: %w", v, err)
				return nil
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			s.log.Warn("search variant failed", zap.String("query", variants[i]), zap.Error(err))
		}
	}
	if failed == len(variants) {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, errors.Join(errs...))
	}

	seen := make(map[string]bool)
	var merged []spotify.FullTrack
	for _, found := range results {
		for _, ft := range found {
			if ft.ID == "" || seen[ft.ID] {
				continue
			}
			seen[ft.ID] = true
			merged = append(merged, ft)
		}
	}
	s.log.Debug("catalog search",
		zap.Int("variants", len(variants)),
		zap.Int("failed", failed),
		zap.Int("tracks", len(merged)),
	)
	return merged, nil
}

// applyArtistGenres copies Spotify artist genres onto tracks. Failures leave
// genres empty for later enrichment and report false.
func (s *Service) applyArtistGenres(ctx context.Context, found []spotify.FullTrack, tracks []scoring.Track) bool {
	var artistIDs []string
	for _, ft := range found {
		artistIDs = append(artistIDs, ft.ArtistIDs...)
	}
	if len(artistIDs) == 0 {
		return true
	}

	byArtist, err := s.searcher.FetchArtistGenres(ctx, artistIDs)
	if err != nil {
		s.log.Warn("fetching artist genres", zap.Error(err))
		return false
	}

	byTrack := spotify.ApplyArtistGenres(found, byArtist)
	for i := range tracks {
		if g, ok := byTrack[tracks[i].ID]; ok {
			tracks[i].Genres = g
		}
	}
	return true
}

// applyFeatures fills tempo, energy and valence, reusing stored features when
// a FeatureStore is configured. It reports false when the features could not
// be fetched.
func (s *Service) applyFeatures(ctx context.Context, found []spotify.FullTrack, tracks []scoring.Track) (bool, error) {
	missing := tracks
	var index []int

	if s.features != nil {
		ids := make([]string, len(tracks))
		for i, t := range tracks {
			ids[i] = t.ID
		}
		stored, err := s.features.GetMany(ctx, ids, s.now().Add(-s.featureTTL))
		if err != nil {
			s.log.Warn("reading stored features", zap.Error(err))
			stored = nil
		}

		missing = nil
		for i := range tracks {
			if st, ok := stored[tracks[i].ID]; ok && st.Tempo != nil && st.Energy != nil && st.Valence != nil {
				tracks[i].Tempo, tracks[i].Energy, tracks[i].Valence = st.Tempo, st.Energy, st.Valence
				continue
			}
			missing = append(missing, tracks[i])
			index = append(index, i)
		}
	}

	if len(missing) == 0 {
		return true, nil
	}

	if err := s.searcher.FetchAudioFeatures(ctx, missing); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// Without features the scorer excludes the tracks and says so.
		s.log.Warn("fetching audio features", zap.Int("tracks", len(missing)), zap.Error(err))
		return false, nil
	}

	if s.features == nil {
		return true, nil
	}

	rows := make([]db.Track, 0, len(missing))
	for j, t := range missing {
		tracks[index[j]] = t
		ft := found[index[j]]
		duration := ft.DurationMs
		rows = append(rows, db.Track{
			ID:         t.ID,
			Name:       t.Title,
			Artists:    t.Artists,
			Tempo:      t.Tempo,
			Energy:     t.Energy,
			Valence:    t.Valence,
			DurationMs: &duration,
		})
	}
	if err := s.features.UpsertBatch(ctx, rows); err != nil {
		s.log.Warn("storing features", zap.Error(err))
	}
	return true, nil
}
