package tags

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/justestif/go-mood-playlist-builder/internal/db"
	"github.com/justestif/go-mood-playlist-builder/internal/lastfm"
)

// CacheTTL is the duration after which cached tags are considered stale.
const CacheTTL = 30 * 24 * time.Hour // 30 days

// TagCache persists tags per track. *db.TagRepository implements it.
type TagCache interface {
	// GetForTracks returns tags fetched at or after freshSince.
	GetForTracks(ctx context.Context, trackIDs []string, freshSince time.Time) (map[string][]db.TrackTag, error)
	// ReplaceForTracks replaces the stored tags of every track in tags.
	ReplaceForTracks(ctx context.Context, tags []db.TrackTag) error
}

var _ TagCache = (*db.TagRepository)(nil)

// lookupCache returns fresh cached tags by track ID.
// Stale entries and cache failures count as misses.
func (s *Service) lookupCache(ctx context.Context, tracks []Track) map[string][]lastfm.Tag {
	if s.cache == nil {
		return nil
	}

	trackIDs := make([]string, len(tracks))
	for i, t := range tracks {
		trackIDs[i] = t.ID
	}

	cached, err := s.cache.GetForTracks(ctx, trackIDs, s.now().Add(-CacheTTL))
	if err != nil {
		s.log.Warn("reading tag cache", zap.Error(err))
		return nil
	}

	result := make(map[string][]lastfm.Tag, len(cached))
	for id, cachedTags := range cached {
		if len(cachedTags) > 0 {
			result[id] = dbTagsToLastfmTags(cachedTags)
		}
	}
	return result
}

// persist stores tags freshly fetched from Last.fm. Failures are logged only.
func (s *Service) persist(ctx context.Context, results []TrackTags) {
	if s.cache == nil {
		return
	}

	var dbTags []db.TrackTag
	now := s.now()
	for _, r := range results {
		if r.Source != SourceLastfm {
			continue
		}
		for _, tag := range r.Tags {
			dbTags = append(dbTags, db.TrackTag{
				TrackID:   r.TrackID,
				TagName:   tag.Name,
				TagCount:  tag.Count,
				Source:    string(SourceLastfm),
				FetchedAt: now,
			})
		}
	}
	if len(dbTags) == 0 {
		return
	}
	if err := s.cache.ReplaceForTracks(ctx, dbTags); err != nil {
		s.log.Warn("persisting tags", zap.Int("tags", len(dbTags)), zap.Error(err))
	}
}

// dbTagsToLastfmTags converts database TrackTag slice to lastfm.Tag slice.
func dbTagsToLastfmTags(dbTags []db.TrackTag) []lastfm.Tag {
	tags := make([]lastfm.Tag, len(dbTags))
	for i, t := range dbTags {
		tags[i] = lastfm.Tag{
			Name:  t.TagName,
			Count: t.TagCount,
		}
	}
	return tags
}
