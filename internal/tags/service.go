// Package tags fills in genre tags for tracks the catalog left without any,
// using Last.fm as the source.
package tags

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/justestif/go-mood-playlist-builder/internal/lastfm"
	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
)

// TagSource indicates where the tags came from.
type TagSource string

const (
	// SourceLastfm means tags came from the Last.fm API (track tags, or artist tags as fallback).
	SourceLastfm TagSource = "lastfm"
	// SourceCache means tags came from the persistent tag cache.
	SourceCache TagSource = "cache"
	// SourceNone means no tags were found.
	SourceNone TagSource = "none"
)

// Defaults for batch processing and genre extraction.
const (
	DefaultConcurrency = 5
	DefaultMaxGenres   = 5
)

// Track represents the minimal track info needed for tag lookup.
type Track struct {
	ID     string
	Name   string
	Artist string
}

// TrackTags holds the tags fetched for a track.
type TrackTags struct {
	TrackID string
	Tags    []lastfm.Tag
	Source  TagSource
	Error   error // Non-nil if fetching failed
}

// TagFetcher abstracts the Last.fm client for testing.
type TagFetcher interface {
	GetTags(ctx context.Context, artist, track string) ([]lastfm.Tag, error)
}

// Service fetches tags concurrently and turns them into genres.
type Service struct {
	fetcher     TagFetcher
	cache       TagCache
	concurrency int
	minCount    int
	maxGenres   int
	log         *zap.Logger
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithConcurrency sets the number of concurrent tag fetch operations.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithCache persists fetched tags and serves fresh ones without calling Last.fm.
func WithCache(c TagCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMinTagCount drops tags weighted below n when deriving genres.
func WithMinTagCount(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.minCount = n
		}
	}
}

// WithMaxGenres caps the genres attached to one track.
func WithMaxGenres(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxGenres = n
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

// NewService creates a new tag service.
func NewService(fetcher TagFetcher, opts ...Option) *Service {
	s := &Service{
		fetcher:     fetcher,
		concurrency: DefaultConcurrency,
		minCount:    lastfm.DefaultMinTagCount,
		maxGenres:   DefaultMaxGenres,
		log:         zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnrichGenres sets Genres on every track that has none, using tags.
// Tracks without an artist are skipped. It returns how many tracks gained
// genres; lookup failures for single tracks are logged and skipped.
func (s *Service) EnrichGenres(ctx context.Context, tracks []scoring.Track) (int, error) {
	var (
		lookups []Track
		index   []int
	)
	for i, t := range tracks {
		if len(t.Genres) > 0 || len(t.Artists) == 0 || t.ID == "" {
			continue
		}
		lookups = append(lookups, Track{ID: t.ID, Name: t.Title, Artist: t.Artists[0]})
		index = append(index, i)
	}
	if len(lookups) == 0 {
		return 0, nil
	}

	results, err := s.FetchTagsForTracks(ctx, lookups)
	if err != nil {
		return 0, err
	}

	enriched := 0
	for i, r := range results {
		if r.Error != nil {
			s.log.Debug("tag lookup failed", zap.String("track_id", r.TrackID), zap.Error(r.Error))
			continue
		}
		genres := lastfm.GenreNames(r.Tags, s.minCount, s.maxGenres)
		if len(genres) == 0 {
			continue
		}
		tracks[index[i]].Genres = genres
		enriched++
	}
	return enriched, nil
}

// FetchTagsForTracks fetches tags for multiple tracks concurrently.
// Results are returned in the same order as input tracks.
// Individual fetch errors are captured in TrackTags.Error rather than failing the batch.
func (s *Service) FetchTagsForTracks(ctx context.Context, tracks []Track) ([]TrackTags, error) {
	if len(tracks) == 0 {
		return []TrackTags{}, nil
	}

	results := make([]TrackTags, len(tracks))

	// Create work channel
	type workItem struct {
		index int
		track Track
	}
	workCh := make(chan workItem, len(tracks))

	cached := s.lookupCache(ctx, tracks)
	for i, t := range tracks {
		if tags, ok := cached[t.ID]; ok {
			results[i] = TrackTags{TrackID: t.ID, Tags: tags, Source: SourceCache}
			continue
		}
		workCh <- workItem{index: i, track: t}
	}
	close(workCh)

	// Process with worker pool
	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workCh {
				select {
				case <-ctx.Done():
					results[work.index] = TrackTags{
						TrackID: work.track.ID,
						Tags:    []lastfm.Tag{},
						Source:  SourceNone,
						Error:   ctx.Err(),
					}
					continue
				default:
				}

				tags, err := s.fetcher.GetTags(ctx, work.track.Artist, work.track.Name)
				result := TrackTags{
					TrackID: work.track.ID,
					Tags:    tags,
					Error:   err,
				}

				switch {
				case err != nil:
					result.Source = SourceNone
					result.Tags = []lastfm.Tag{}
				case len(tags) == 0:
					result.Source = SourceNone
				default:
					result.Source = SourceLastfm
				}

				results[work.index] = result
			}
		}()
	}

	wg.Wait()

	// Check if context was cancelled
	if ctx.Err() != nil {
		return results, ctx.Err()
	}

	s.persist(ctx, results)
	return results, nil
}
