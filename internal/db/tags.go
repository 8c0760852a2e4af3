package db

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TagRepository caches Last.fm tags per track.
type TagRepository struct {
	pool *pgxpool.Pool
}

// ReplaceForTracks makes tags the complete tag set of every track they
// mention. Tags a track no longer carries on Last.fm are dropped.
func (r *TagRepository) ReplaceForTracks(ctx context.Context, tags []TrackTag) error {
	if len(tags) == 0 {
		return nil
	}

	// One INSERT cannot write the same key twice; the last duplicate wins.
	type key struct{ track, tag string }
	pos := make(map[key]int, len(tags))
	var unique []TrackTag
	var replaced []string
	for _, t := range tags {
		k := key{t.TrackID, t.TagName}
		if i, ok := pos[k]; ok {
			unique[i] = t
			continue
		}
		if !slices.Contains(replaced, t.TrackID) {
			replaced = append(replaced, t.TrackID)
		}
		pos[k] = len(unique)
		unique = append(unique, t)
	}

	trackIDs := make([]string, len(unique))
	tagNames := make([]string, len(unique))
	tagCounts := make([]int, len(unique))
	sources := make([]string, len(unique))
	fetchedAts := make([]time.Time, len(unique))
	for i, t := range unique {
		trackIDs[i] = t.TrackID
		tagNames[i] = t.TagName
		tagCounts[i] = t.TagCount
		sources[i] = t.Source
		fetchedAts[i] = t.FetchedAt
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning tag transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM track_tags WHERE track_id = ANY($1)`, replaced); err != nil {
		return fmt.Errorf("clearing track tags: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO track_tags (track_id, tag_name, tag_count, source, fetched_at)
		SELECT * FROM unnest($1::text[], $2::text[], $3::int[], $4::text[], $5::timestamptz[])
	`, trackIDs, tagNames, tagCounts, sources, fetchedAts)
	if err != nil {
		return fmt.Errorf("inserting track tags: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing track tags: %w", err)
	}
	return nil
}

// GetForTracks returns the tags fetched at or after freshSince, keyed by
// track ID and ordered by count. Tracks with only older tags are absent.
func (r *TagRepository) GetForTracks(ctx context.Context, trackIDs []string, freshSince time.Time) (map[string][]TrackTag, error) {
	result := make(map[string][]TrackTag)
	if len(trackIDs) == 0 {
		return result, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT track_id, tag_name, tag_count, source, fetched_at
		FROM track_tags
		WHERE track_id = ANY($1) AND fetched_at >= $2
		ORDER BY track_id, tag_count DESC, tag_name
	`, trackIDs, freshSince)
	if err != nil {
		return nil, fmt.Errorf("querying track tags: %w", err)
	}

	tags, err := pgx.CollectRows(rows, pgx.RowToStructByPos[TrackTag])
	if err != nil {
		return nil, fmt.Errorf("scanning track tags: %w", err)
	}
	for _, tag := range tags {
		result[tag.TrackID] = append(result[tag.TrackID], tag)
	}
	return result, nil
}

// DeleteOlderThan removes tags fetched before t.
func (r *TagRepository) DeleteOlderThan(ctx context.Context, t time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM track_tags WHERE fetched_at < $1`, t)
	if err != nil {
		return 0, fmt.Errorf("deleting stale tags: %w", err)
	}
	return result.RowsAffected(), nil
}
