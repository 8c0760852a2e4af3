package store

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
)

var idPattern = regexp.MustCompile(`^\d{8}-\d{6}-[0-9a-f]{6}$`)

func TestNewID(t *testing.T) {
	now := time.Date(2024, 5, 17, 9, 4, 33, 0, time.UTC)

	id := NewID(now)

	assert.Regexp(t, idPattern, id)
	assert.Equal(t, "20240517-090433-", id[:16])
	assert.NotEqual(t, id, NewID(now), "IDs should not repeat")
}

func TestPrepare(t *testing.T) {
	now := time.Date(2024, 5, 17, 9, 4, 33, 500, time.UTC)

	t.Run("fills blanks", func(t *testing.T) {
		p := &Playlist{Title: "  "}
		Prepare(p, now)

		assert.Regexp(t, idPattern, p.ID)
		assert.Equal(t, now.Truncate(time.Second), p.CreatedAt)
		assert.Equal(t, "Playlist "+p.ID, p.Title)
	})

	t.Run("keeps existing values", func(t *testing.T) {
		created := now.Add(-time.Hour)
		p := &Playlist{ID: "fixed", Title: "Focus", CreatedAt: created}
		Prepare(p, now)

		assert.Equal(t, "fixed", p.ID)
		assert.Equal(t, "Focus", p.Title)
		assert.Equal(t, created, p.CreatedAt)
	})
}

func TestSummarize(t *testing.T) {
	p := &Playlist{
		ID:     "p1",
		Title:  "Evening",
		Params: Params{Mood: "chill", Context: "study", Genres: []string{"lofi"}, Limit: 10},
		Tracks: []scoring.ScoredTrack{{Track: scoring.Track{ID: "a"}}, {Track: scoring.Track{ID: "b"}}},
	}

	s := p.Summarize()

	assert.Equal(t, "p1", s.ID)
	assert.Equal(t, "chill", s.Mood)
	assert.Equal(t, "study", s.Context)
	assert.Equal(t, []string{"lofi"}, s.Genres)
	assert.Equal(t, 2, s.TrackCount)
}
