// Package playlist orchestrates a playlist build: it resolves the mood,
// gathers candidates from the catalog, personalizes with history, ranks with
// the scorer, describes the result and optionally persists and publishes it.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/justestif/go-mood-playlist-builder/internal/catalog"
	"github.com/justestif/go-mood-playlist-builder/internal/clustering"
	"github.com/justestif/go-mood-playlist-builder/internal/explain"
	"github.com/justestif/go-mood-playlist-builder/internal/history"
	"github.com/justestif/go-mood-playlist-builder/internal/mood"
	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
	"github.com/justestif/go-mood-playlist-builder/internal/spotify"
	"github.com/justestif/go-mood-playlist-builder/internal/store"
)

// Common errors.
var (
	// ErrCatalogTimeout is returned when the catalog does not answer within
	// the configured timeout.
	ErrCatalogTimeout = errors.New("catalog search timed out")

	// ErrNoStore is returned by persistence operations when no store is configured.
	ErrNoStore = errors.New("playlist storage is not configured")

	// ErrEmptyPlaylist is returned when publishing a playlist without tracks.
	ErrEmptyPlaylist = errors.New("playlist has no tracks")
)

// Limits for the number of tracks in a playlist.
const (
	MinLimit     = 1
	MaxLimit     = 50
	DefaultLimit = 20

	DefaultCatalogTimeout = 20 * time.Second
)

// Catalog supplies candidate pools. *catalog.Service implements it.
type Catalog interface {
	Search(ctx context.Context, q catalog.Query) ([]scoring.Track, error)
}

// History supplies listening history. *history.Builder implements it.
type History interface {
	history.Source
	WithListener(l history.Listener) history.Source
	FeatureTracks(ctx context.Context, userID string) ([]scoring.Track, error)
	Profile(ctx context.Context, userID string) (*history.Profile, error)
}

// Publisher creates playlists in a user's Spotify account. *spotify.Client implements it.
type Publisher interface {
	CreatePlaylist(ctx context.Context, name, description string, public bool) (string, error)
	AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error
}

var (
	_ Catalog   = (*catalog.Service)(nil)
	_ History   = (*history.Builder)(nil)
	_ Publisher = (*spotify.Client)(nil)
)

// BuildRequest describes one playlist build.
type BuildRequest struct {
	UserID  string
	Mood    string // empty detects one from Vibe and Quiz, then suggests one from history
	Context string
	Genres  []string
	Vibe    string     // optional free-text search
	Quiz    *mood.Quiz // optional questionnaire answers
	Limit   *int       // nil means DefaultLimit
	Market  string     // empty uses the service default
	Save    bool
	Title   string

	// Listener, when set, marks the user's recently played tracks.
	Listener history.Listener
}

// BuildResult is the outcome of Build.
type BuildResult struct {
	Playlist   *store.Playlist             `json:"playlist"`
	Saved      bool                        `json:"saved"`
	Candidates int                         `json:"candidates"`
	Excluded   int                         `json:"excluded"`
	Invalid    []scoring.InvalidTrackError `json:"invalid,omitempty"`
	Note       string                      `json:"note,omitempty"`
	Suggestion *clustering.Suggestion      `json:"suggestion,omitempty"` // set when the mood was suggested
	Detected   *mood.Result                `json:"detected,omitempty"`   // set when the mood was detected
}

// Service builds and manages playlists.
type Service struct {
	scorer         *scoring.Scorer
	catalog        Catalog
	history        History
	store          store.Store
	describer      explain.Describer
	catalogTimeout time.Duration
	market         string
	clusterCfg     clustering.Config
	log            *zap.Logger
	now            func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithHistory personalizes builds with the user's history.
func WithHistory(h History) Option {
	return func(s *Service) { s.history = h }
}

// WithStore enables saving, listing and publishing playlists.
func WithStore(st store.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithDescriber sets how playlists are described. Defaults to explain.Template.
func WithDescriber(d explain.Describer) Option {
	return func(s *Service) {
		if d != nil {
			s.describer = d
		}
	}
}

// WithCatalogTimeout bounds the catalog search of one build.
func WithCatalogTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.catalogTimeout = d
		}
	}
}

// WithMarket sets the default Spotify market.
func WithMarket(m string) Option {
	return func(s *Service) { s.market = m }
}

// WithClusterConfig sets the mood suggestion parameters.
func WithClusterConfig(cfg clustering.Config) Option {
	return func(s *Service) { s.clusterCfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a playlist service.
func New(scorer *scoring.Scorer, cat Catalog, opts ...Option) *Service {
	s := &Service{
		scorer:         scorer,
		catalog:        cat,
		describer:      explain.Template{},
		catalogTimeout: DefaultCatalogTimeout,
		clusterCfg:     clustering.DefaultConfig(),
		log:            zap.NewNop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scorer returns the scorer builds are ranked with.
func (s *Service) Scorer() *scoring.Scorer {
	return s.scorer
}

// Build runs a full playlist build.
func (s *Service) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	limit := DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit < MinLimit || limit > MaxLimit {
		return nil, fmt.Errorf("%w: must be between %d and %d, got %d", scoring.ErrInvalidLimit, MinLimit, MaxLimit, limit)
	}
	if req.Save && s.store == nil {
		return nil, ErrNoStore
	}

	out := &BuildResult{}
	moodName := req.Mood
	if strings.TrimSpace(moodName) == "" {
		det, err := s.DetectMood(req.Vibe, req.Quiz)
		if err != nil {
			return nil, err
		}
		if det.Matched {
			out.Detected = &det
			moodName = det.Mood
		} else {
			sug := s.SuggestMood(ctx, req.UserID)
			out.Suggestion = &sug
			moodName = sug.Mood
		}
	}

	// Reject unknown names before spending any catalog calls.
	profile, listeningCtx, err := s.scorer.Resolve(moodName, req.Context)
	if err != nil {
		return nil, err
	}
	contextName := ""
	if strings.TrimSpace(req.Context) != "" {
		contextName = listeningCtx.Name
	}

	market := req.Market
	if market == "" {
		market = s.market
	}
	candidates, err := s.search(ctx, catalog.Query{
		Mood:    profile.Name,
		Context: contextName,
		Genres:  req.Genres,
		Vibe:    req.Vibe,
		Limit:   limit,
		Market:  market,
	})
	if err != nil {
		return nil, err
	}
	out.Candidates = len(candidates)

	hist := s.loadHistory(ctx, req)

	result, err := s.scorer.Build(scoring.Request{
		Mood:    profile.Name,
		Context: contextName,
		Genres:  req.Genres,
		Limit:   limit,
	}, candidates, hist)
	if err != nil {
		return nil, err
	}

	p := &store.Playlist{
		UserID: req.UserID,
		Title:  strings.TrimSpace(req.Title),
		Params: store.Params{
			Mood:    profile.Name,
			Context: contextName,
			Genres:  req.Genres,
			Limit:   limit,
		},
		Tracks: result.Tracks,
	}
	if p.Title == "" {
		p.Title = defaultTitle(profile.Name, contextName)
	}
	if len(result.Tracks) > 0 {
		p.Description = s.describer.Describe(ctx, profile.Name, contextName, result.Tracks)
	}

	out.Playlist = p
	out.Invalid = result.Invalid
	out.Excluded = result.Excluded()
	out.Note = result.Note

	if req.Save {
		store.Prepare(p, s.now())
		if err := s.store.Save(ctx, p); err != nil {
			return nil, fmt.Errorf("saving playlist: %w", err)
		}
		out.Saved = true
	} else {
		p.CreatedAt = s.now().UTC().Truncate(time.Second)
	}

	s.log.Info("playlist built",
		zap.String("user", req.UserID),
		zap.String("mood", profile.Name),
		zap.String("context", contextName),
		zap.Int("candidates", out.Candidates),
		zap.Int("tracks", len(p.Tracks)),
		zap.Int("excluded", out.Excluded),
		zap.Bool("saved", out.Saved),
	)
	return out, nil
}

// search queries the catalog under the catalog timeout.
func (s *Service) search(ctx context.Context, q catalog.Query) ([]scoring.Track, error) {
	searchCtx, cancel := context.WithTimeout(ctx, s.catalogTimeout)
	defer cancel()

	candidates, err := s.catalog.Search(searchCtx, q)
	if err == nil {
		return candidates, nil
	}
	if ctx.Err() == nil && errors.Is(searchCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrCatalogTimeout, s.catalogTimeout)
	}
	return nil, fmt.Errorf("searching catalog: %w", err)
}

// loadHistory returns the user's history, or nil when it is unavailable.
func (s *Service) loadHistory(ctx context.Context, req BuildRequest) *scoring.UserHistory {
	if s.history == nil {
		return nil
	}
	var src history.Source = s.history
	if req.Listener != nil {
		src = s.history.WithListener(req.Listener)
	}
	h, err := src.History(ctx, req.UserID)
	if err != nil {
		s.log.Warn("loading history, continuing without it", zap.String("user", req.UserID), zap.Error(err))
		return nil
	}
	return h
}

// DetectMood guesses a configured mood from free text and quiz answers.
// The result is unmatched when neither carries a usable signal.
func (s *Service) DetectMood(text string, quiz *mood.Quiz) (mood.Result, error) {
	res := mood.Detect(text)
	if !quiz.Empty() {
		q, err := mood.ScoreQuiz(*quiz)
		if err != nil {
			return mood.Result{}, err
		}
		res = mood.Fuse(res, q.Result)
	}
	return mood.Restrict(res, s.scorer.MoodNames()), nil
}

// SuggestMood picks a mood from the features of the user's saved tracks,
// then from the mood they build most, then DefaultMood.
func (s *Service) SuggestMood(ctx context.Context, userID string) clustering.Suggestion {
	fallback := clustering.Suggestion{Mood: clustering.DefaultMood, Fallback: true}
	if s.history == nil {
		return fallback
	}

	tracks, err := s.history.FeatureTracks(ctx, userID)
	if err != nil {
		s.log.Warn("loading history tracks for mood suggestion", zap.Error(err))
	}
	sug := clustering.SuggestMood(tracks, s.scorer.Moods(), s.clusterCfg)
	if !sug.Fallback {
		return sug
	}

	profile, err := s.history.Profile(ctx, userID)
	if err != nil {
		s.log.Warn("loading profile for mood suggestion", zap.Error(err))
		return sug
	}
	if top := profile.TopMood(); top != "" {
		if _, _, err := s.scorer.Resolve(top, ""); err == nil {
			sug.Mood = top
		}
	}
	return sug
}

// Profile returns the user's build profile.
func (s *Service) Profile(ctx context.Context, userID string) (*history.Profile, error) {
	if s.history == nil {
		return &history.Profile{}, nil
	}
	return s.history.Profile(ctx, userID)
}

// Get returns a saved playlist.
func (s *Service) Get(ctx context.Context, id string) (*store.Playlist, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.Get(ctx, id)
}

// List returns the user's saved playlists, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]store.Summary, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.List(ctx, userID)
}

// Delete removes a saved playlist.
func (s *Service) Delete(ctx context.Context, id string) error {
	if s.store == nil {
		return ErrNoStore
	}
	return s.store.Delete(ctx, id)
}

// Publish creates a Spotify playlist from a saved playlist and records its
// Spotify ID. Publishing again creates a new Spotify playlist.
func (s *Service) Publish(ctx context.Context, id string, pub Publisher, public bool) (*store.Playlist, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	trackIDs := make([]string, 0, len(p.Tracks))
	for _, st := range p.Tracks {
		if st.Track.ID != "" {
			trackIDs = append(trackIDs, st.Track.ID)
		}
	}
	if len(trackIDs) == 0 {
		return nil, ErrEmptyPlaylist
	}

	spotifyID, err := pub.CreatePlaylist(ctx, p.Title, p.Description, public)
	if err != nil {
		return nil, fmt.Errorf("creating spotify playlist: %w", err)
	}
	if err := pub.AddTracksToPlaylist(ctx, spotifyID, trackIDs); err != nil {
		return nil, fmt.Errorf("adding tracks to spotify playlist %s: %w", spotifyID, err)
	}

	p.SpotifyPlaylistID = spotifyID
	if err := s.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("recording spotify playlist %s: %w", spotifyID, err)
	}
	s.log.Info("playlist published", zap.String("id", p.ID), zap.String("spotify_id", spotifyID), zap.Int("tracks", len(trackIDs)))
	return p, nil
}

// defaultTitle is "Chill for study", or "Chill mix" without a context.
func defaultTitle(moodName, listeningContext string) string {
	name := moodName
	if r, size := utf8.DecodeRuneInString(moodName); r != utf8.RuneError {
		name = string(unicode.ToUpper(r)) + moodName[size:]
	}
	if listeningContext == "" {
		return name + " mix"
	}
	return name + " for " + listeningContext
}
