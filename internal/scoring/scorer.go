package scoring

import (
	"cmp"
	"fmt"
	"slices"
)

// Scorer ranks candidate pools. It is immutable and safe for concurrent use.
type Scorer struct {
	cfg      Config
	moods    map[string]MoodProfile
	contexts map[string]ContextProfile
}

// NewScorer validates cfg and builds a Scorer from a private copy of it.
func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scorer{
		cfg:      cfg,
		moods:    make(map[string]MoodProfile, len(cfg.Moods)),
		contexts: make(map[string]ContextProfile, len(cfg.Contexts)),
	}
	for _, m := range cfg.Moods {
		m.Name = normalizeName(m.Name)
		s.moods[m.Name] = m
	}
	for _, c := range cfg.Contexts {
		c = copyContext(c)
		c.Name = normalizeName(c.Name)
		s.contexts[c.Name] = c
	}
	// Drop the caller's slices so later mutation cannot leak in.
	s.cfg.Moods = nil
	s.cfg.Contexts = nil
	return s, nil
}

// Weights returns the configured weight vector.
func (s *Scorer) Weights() Weights {
	return s.cfg.Weights
}

// ScoreRange returns the closed interval every score falls within.
func (s *Scorer) ScoreRange() (lo, hi float64) {
	w := s.cfg.Weights
	return -w.History, w.Sum()
}

// Request describes one playlist build.
type Request struct {
	Mood    string
	Context string
	Genres  []string // any-match; empty means no genre preference
	Limit   int
}

// Result is the outcome of Build.
type Result struct {
	Mood    MoodProfile         `json:"mood"`
	Context ContextProfile      `json:"context"`
	Tracks  []ScoredTrack       `json:"tracks"`
	Invalid []InvalidTrackError `json:"invalid,omitempty"`
	Note    string              `json:"note,omitempty"` // set when Tracks is empty
}

// Excluded returns how many candidates were dropped for missing data.
func (r *Result) Excluded() int {
	return len(r.Invalid)
}

// Build scores candidates and returns the top req.Limit distinct tracks.
//
// Ordering is by score descending, then mood fit descending, then track ID
// ascending. When an ID appears more than once only its best-ranked
// occurrence is kept. Candidates that cannot be scored are reported in
// Result.Invalid rather than failing the build. An empty result is not an
// error; Result.Note explains it.
func (s *Scorer) Build(req Request, candidates []Track, history *UserHistory) (*Result, error) {
	if req.Limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, req.Limit)
	}

	mood, ctx, err := s.Resolve(req.Mood, req.Context)
	if err != nil {
		return nil, err
	}

	r := request{
		mood:    mood,
		context: ctx,
		genres:  newGenreTags(req.Genres),
		history: newHistoryIndex(history),
	}

	result := &Result{Mood: mood, Context: copyContext(ctx)}

	scored := make([]ScoredTrack, 0, len(candidates))
	for _, t := range candidates {
		if missing := validateTrack(t); len(missing) > 0 {
			result.Invalid = append(result.Invalid, InvalidTrackError{TrackID: t.ID, Missing: missing})
			continue
		}
		scored = append(scored, s.scoreTrack(t, r))
	}

	slices.SortStableFunc(scored, compareScored)

	seen := make(map[string]bool, len(scored))
	result.Tracks = make([]ScoredTrack, 0, min(req.Limit, len(scored)))
	for _, st := range scored {
		if len(result.Tracks) == req.Limit {
			break
		}
		if seen[st.Track.ID] {
			continue
		}
		seen[st.Track.ID] = true
		result.Tracks = append(result.Tracks, st)
	}

	if len(result.Tracks) == 0 {
		result.Note = emptyNote(len(candidates), result.Excluded())
	}
	return result, nil
}

// compareScored orders by score desc, mood fit desc, ID asc.
func compareScored(a, b ScoredTrack) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Terms.Mood, a.Terms.Mood); c != 0 {
		return c
	}
	return cmp.Compare(a.Track.ID, b.Track.ID)
}

func emptyNote(candidates, excluded int) string {
	if candidates == 0 {
		return "no candidate tracks were supplied"
	}
	return fmt.Sprintf("all %d candidate tracks lacked the audio features needed for scoring", excluded)
}
