package scoring

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// NormalizeTag folds a genre tag for comparison: lower case, letters and
// digits only. "Lo-Fi", "lo fi" and "lofi" all become "lofi".
func NormalizeTag(tag string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(tag) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// ParseGenres splits a comma separated genre list into tags, dropping blanks
// and duplicates while keeping the first spelling of each.
func ParseGenres(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		key := NormalizeTag(part)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, part)
	}
	return out
}

// validateTrack returns the names of the fields that prevent scoring.
func validateTrack(t Track) []string {
	var missing []string
	if strings.TrimSpace(t.ID) == "" {
		missing = append(missing, "id")
	}
	if t.Tempo == nil || !isFinite(*t.Tempo) || *t.Tempo < 0 {
		missing = append(missing, "tempo")
	}
	if t.Valence == nil || !inUnit(*t.Valence) {
		missing = append(missing, "valence")
	}
	if t.Energy == nil || !inUnit(*t.Energy) {
		missing = append(missing, "energy")
	}
	return missing
}

// request holds the resolved inputs shared by every candidate in one Build call.
type request struct {
	mood    MoodProfile
	context ContextProfile
	genres  []genreTag
	history *historyIndex
}

type genreTag struct {
	key     string
	display string
}

func newGenreTags(genres []string) []genreTag {
	var out []genreTag
	seen := make(map[string]bool)
	for _, g := range genres {
		key := NormalizeTag(g)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, genreTag{key: key, display: strings.ToLower(strings.TrimSpace(g))})
	}
	return out
}

// historyIndex is a normalized, read-only view of a UserHistory.
type historyIndex struct {
	recent    map[string]struct{}
	artists   map[string]int
	genres    map[string]int
	maxArtist int
	maxGenre  int
}

func newHistoryIndex(h *UserHistory) *historyIndex {
	if h.IsEmpty() {
		return nil
	}
	idx := &historyIndex{
		recent:  h.RecentTrackIDs,
		artists: make(map[string]int, len(h.ArtistCounts)),
		genres:  make(map[string]int, len(h.GenreCounts)),
	}
	for name, n := range h.ArtistCounts {
		key := normalizeName(name)
		idx.artists[key] += n
	}
	for tag, n := range h.GenreCounts {
		idx.genres[NormalizeTag(tag)] += n
	}
	for _, n := range idx.artists {
		idx.maxArtist = max(idx.maxArtist, n)
	}
	for _, n := range idx.genres {
		idx.maxGenre = max(idx.maxGenre, n)
	}
	return idx
}

// scoreTrack computes the terms, weighted score and reasons for one valid track.
func (s *Scorer) scoreTrack(t Track, req request) ScoredTrack {
	var terms Terms
	var reasons []string

	mood, reason := s.moodFit(t, req)
	terms.Mood = mood
	if mood != 0 {
		reasons = append(reasons, reason)
	}

	tempo, reason := s.tempoFit(t, req)
	terms.Tempo = tempo
	if tempo != 0 {
		reasons = append(reasons, reason)
	}

	genre, reason := s.genreMatch(t, req)
	terms.Genre = genre
	if genre != 0 {
		reasons = append(reasons, reason)
	}

	hist, reason := s.historyFit(t, req)
	terms.History = hist
	if hist != 0 {
		reasons = append(reasons, reason)
	}

	w := s.cfg.Weights
	score := w.Mood*terms.Mood + w.Tempo*terms.Tempo + w.Genre*terms.Genre + w.History*terms.History

	return ScoredTrack{
		Track:   t,
		Score:   score,
		Terms:   terms,
		Reasons: reasons,
	}
}

// moodFit is 1 minus the valence/energy distance to the mood target, scaled
// by the largest possible distance in the unit square.
func (s *Scorer) moodFit(t Track, req request) (float64, string) {
	tv, te := targetPoint(req.mood, req.context)
	d := math.Hypot(*t.Valence-tv, *t.Energy-te)
	fit := clamp(1-d/math.Sqrt2, 0, 1)

	name := req.mood.Name
	switch {
	case fit >= s.cfg.StrongMoodFit:
		return fit, fmt.Sprintf("matches %s mood (valence/energy close)", name)
	case fit >= s.cfg.PartialMoodFit:
		return fit, fmt.Sprintf("partly fits %s mood", name)
	default:
		return fit, fmt.Sprintf("weak fit for %s mood", name)
	}
}

func (s *Scorer) tempoFit(t Track, req request) (float64, string) {
	band, owner := tempoBand(req.mood, req.context)
	off := band.Distance(*t.Tempo)
	if off == 0 {
		return 1, fmt.Sprintf("tempo within %s range", owner)
	}
	fit := clamp(1-off/s.cfg.TempoTolerance, 0, 1)
	return fit, fmt.Sprintf("tempo %.0f BPM outside %s range", off, owner)
}

func (s *Scorer) genreMatch(t Track, req request) (float64, string) {
	if len(req.genres) == 0 {
		return 0, ""
	}

	tags := make(map[string]bool, len(t.Genres))
	for _, g := range t.Genres {
		if key := NormalizeTag(g); key != "" {
			tags[key] = true
		}
	}
	if len(tags) == 0 {
		return s.cfg.UnknownGenreCredit, "no genre metadata (partial credit)"
	}

	for _, g := range req.genres {
		if tags[g.key] {
			return 1, "tagged " + g.display
		}
	}
	return 0, ""
}

// historyFit rewards familiar artists and genres and penalizes tracks the
// user played recently. The result lies in [-1, 1].
func (s *Scorer) historyFit(t Track, req request) (float64, string) {
	h := req.history
	if h == nil {
		return 0, ""
	}

	var parts []string
	familiarity := 0.0
	minCount := s.cfg.FamiliarityMinCount

	if h.maxArtist > 0 {
		for _, a := range t.Artists {
			n := h.artists[normalizeName(a)]
			if n < minCount {
				continue
			}
			if share := float64(n) / float64(h.maxArtist); share > familiarity {
				familiarity = share
				parts = []string{"familiar artist " + a}
			}
		}
	}
	if h.maxGenre > 0 {
		for _, g := range t.Genres {
			n := h.genres[NormalizeTag(g)]
			if n < minCount {
				continue
			}
			if share := float64(n) / float64(h.maxGenre); share > familiarity {
				familiarity = share
				parts = []string{"familiar genre " + strings.ToLower(g)}
			}
		}
	}

	penalty := 0.0
	if _, ok := h.recent[t.ID]; ok && s.cfg.RecentPenalty > 0 {
		penalty = s.cfg.RecentPenalty
		parts = append(parts, "played recently")
	}

	fit := clamp(familiarity-penalty, -1, 1)
	return fit, strings.Join(parts, "; ")
}
