package history

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Ranked is one entry of a profile ranking.
type Ranked struct {
	Value string  `json:"value"`
	Score float64 `json:"score"`
}

// Profile summarizes what a user tends to build.
type Profile struct {
	Playlists    int      `json:"total_playlists"`
	UniqueTracks int      `json:"total_unique_tracks"`
	TopMoods     []Ranked `json:"top_moods"`
	TopGenres    []Ranked `json:"top_genres"`
	TopArtists   []Ranked `json:"top_artists"`
	TopWeekdays  []Ranked `json:"top_weekdays"`
	TopHours     []Ranked `json:"top_hours"`
}

// TopMood returns the user's dominant mood, or "" without history.
func (p *Profile) TopMood() string {
	if p == nil || len(p.TopMoods) == 0 {
		return ""
	}
	return p.TopMoods[0].Value
}

// Profile aggregates the user's saved playlists with the same recency
// weighting as History.
func (b *Builder) Profile(ctx context.Context, userID string) (*Profile, error) {
	saved, err := b.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := b.now()
	moods := make(map[string]float64)
	genres := make(map[string]float64)
	artists := make(map[string]float64)
	weekdays := make(map[string]float64)
	hours := make(map[string]float64)
	tracks := make(map[string]struct{})

	for _, p := range saved {
		w := b.weight(p.CreatedAt, now)
		if !p.CreatedAt.IsZero() {
			weekdays[strings.ToLower(p.CreatedAt.Format("Mon"))] += w
			hours[fmt.Sprintf("%02d", p.CreatedAt.Hour())] += w
		}
		if m := strings.ToLower(strings.TrimSpace(p.Params.Mood)); m != "" {
			moods[m] += w
		}
		for _, g := range p.Params.Genres {
			if g = strings.ToLower(strings.TrimSpace(g)); g != "" {
				genres[g] += w
			}
		}
		for _, st := range p.Tracks {
			if st.Track.ID != "" {
				tracks[st.Track.ID] = struct{}{}
			}
			for _, a := range st.Track.Artists {
				if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
					artists[a] += w
				}
			}
		}
	}

	return &Profile{
		Playlists:    len(saved),
		UniqueTracks: len(tracks),
		TopMoods:     topN(moods, 5),
		TopGenres:    topN(genres, 5),
		TopArtists:   topN(artists, 8),
		TopWeekdays:  topN(weekdays, 3),
		TopHours:     topN(hours, 3),
	}, nil
}

// topN ranks by score descending, then value ascending.
func topN(scores map[string]float64, n int) []Ranked {
	out := make([]Ranked, 0, len(scores))
	for v, s := range scores {
		out = append(out, Ranked{Value: v, Score: math.Round(s*1000) / 1000})
	}
	slices.SortFunc(out, func(a, b Ranked) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
