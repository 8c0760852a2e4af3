// Package filestore keeps playlists in a single JSON file.
//
// The file holds a JSON array of playlists. Older files written as
// {"items": [...]}, as an object keyed by playlist ID, or as a single
// playlist object are read as well and rewritten as an array. A file that is
// not valid JSON is moved aside to a .bak file and replaced by an empty list.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
	"github.com/justestif/go-mood-playlist-builder/internal/store"
)

// FileName is the name of the playlist file inside the data directory.
const FileName = "saved_playlists.json"

// Store is a store.Store backed by a JSON file.
// It is safe for concurrent use within one process.
type Store struct {
	path string
	log  *zap.Logger
	now  func() time.Time

	mu sync.Mutex
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report repaired files.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New opens the store in dir, creating the directory and an empty file when needed.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		path: filepath.Join(dir, FileName),
		log:  zap.NewNop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		if err := s.writeAll(nil); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("checking playlist file: %w", err)
	}
	return s, nil
}

// Path returns the location of the playlist file.
func (s *Store) Path() string {
	return s.path
}

// Save inserts or replaces p.
func (s *Store) Save(ctx context.Context, p *store.Playlist) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.readAll()
	if err != nil {
		return err
	}

	store.Prepare(p, s.now())

	replaced := false
	for i, it := range items {
		if it.ID == p.ID {
			items[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, p)
	}
	return s.writeAll(items)
}

// Get returns the playlist with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*store.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.readAll()
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.ID == id {
			return it, nil
		}
	}
	return nil, store.ErrNotFound
}

// List returns summaries newest first.
func (s *Store) List(ctx context.Context, userID string) ([]store.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.readAll()
	if err != nil {
		return nil, err
	}

	out := make([]store.Summary, 0, len(items))
	for _, it := range items {
		if userID != "" && it.UserID != userID {
			continue
		}
		out = append(out, it.Summarize())
	}
	store.SortNewestFirst(out)
	return out, nil
}

// Delete removes the playlist with the given ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.readAll()
	if err != nil {
		return err
	}

	kept := items[:0]
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return store.ErrNotFound
	}
	return s.writeAll(kept)
}

// readAll loads and normalizes the file. Callers hold s.mu.
func (s *Store) readAll() ([]*store.Playlist, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading playlist file: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	raws, clean, err := splitRecords(data)
	if err != nil {
		return nil, s.reset(err)
	}

	items := make([]*store.Playlist, 0, len(raws))
	for _, raw := range raws {
		p, ok := decodeRecord(raw)
		if !ok {
			clean = false
			continue
		}
		if p.ID == "" || p.CreatedAt.IsZero() {
			store.Prepare(p, s.now())
			clean = false
		}
		items = append(items, p)
	}

	if !clean {
		s.log.Info("normalizing playlist file", zap.String("path", s.path), zap.Int("playlists", len(items)))
		if err := s.writeAll(items); err != nil {
			s.log.Warn("rewriting playlist file", zap.Error(err))
		}
	}
	return items, nil
}

// reset moves a corrupted file aside and starts over with an empty list.
func (s *Store) reset(cause error) error {
	backup := strings.TrimSuffix(s.path, filepath.Ext(s.path)) + ".bak"
	s.log.Warn("playlist file is corrupted, backing it up",
		zap.String("path", s.path),
		zap.String("backup", backup),
		zap.Error(cause),
	)
	if err := os.Rename(s.path, backup); err != nil {
		s.log.Warn("backing up playlist file", zap.Error(err))
	}
	return s.writeAll(nil)
}

// writeAll replaces the file atomically. Callers hold s.mu.
func (s *Store) writeAll(items []*store.Playlist) error {
	if items == nil {
		items = []*store.Playlist{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding playlists: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".playlists-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing playlist file: %w", err)
	}
	return nil
}

var errUnknownShape = errors.New("not a playlist list or object")

// splitRecords accepts every known file shape and returns the playlist
// objects it contains. clean is false when the shape is not a plain array.
func splitRecords(data []byte) (raws []json.RawMessage, clean bool, err error) {
	switch data[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, false, err
		}
		return list, true, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, false, err
		}
		if items, ok := obj["items"]; ok {
			var list []json.RawMessage
			if err := json.Unmarshal(items, &list); err == nil {
				return list, false, nil
			}
		}
		if looksLikePlaylist(obj) {
			return []json.RawMessage{data}, false, nil
		}
		// Keyed by ID.
		for _, v := range obj {
			if v = bytes.TrimSpace(v); len(v) > 0 && v[0] == '{' {
				raws = append(raws, v)
			}
		}
		return raws, false, nil
	default:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("%w: top level is %T", errUnknownShape, v)
	}
}

func looksLikePlaylist(obj map[string]json.RawMessage) bool {
	for _, k := range []string{"id", "title", "tracks"} {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

// record is the on-disk form, loose enough for older files.
type record struct {
	store.Playlist
	CreatedAt string            `json:"created_at"`
	Tracks    []json.RawMessage `json:"tracks"`
	Request   *legacyRequest    `json:"request"`
}

type legacyRequest struct {
	Mood            string `json:"mood"`
	Activity        string `json:"activity"`
	GenreOrLanguage string `json:"genre_or_language"`
	Limit           int    `json:"limit"`
}

// legacyTrack is a flat track entry as written by older versions.
type legacyTrack struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Title   string            `json:"title"`
	Artists []json.RawMessage `json:"artists"`
	Genres  []string          `json:"genres"`
	URL     string            `json:"url"`
	Tempo   *float64          `json:"tempo"`
	Energy  *float64          `json:"energy"`
	Valence *float64          `json:"valence"`
	Score   float64           `json:"score"`
	Reasons []string          `json:"reasons"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func decodeRecord(raw json.RawMessage) (*store.Playlist, bool) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false
	}

	p := r.Playlist
	p.CreatedAt = parseTime(r.CreatedAt)

	if r.Request != nil && p.Params.Mood == "" {
		p.Params = store.Params{
			Mood:    strings.ToLower(strings.TrimSpace(r.Request.Mood)),
			Context: strings.ToLower(strings.TrimSpace(r.Request.Activity)),
			Limit:   r.Request.Limit,
		}
		if g := strings.TrimSpace(r.Request.GenreOrLanguage); g != "" {
			p.Params.Genres = []string{strings.ToLower(g)}
		}
	}

	p.Tracks = make([]scoring.ScoredTrack, 0, len(r.Tracks))
	for _, t := range r.Tracks {
		if st, ok := decodeTrack(t); ok {
			p.Tracks = append(p.Tracks, st)
		}
	}
	return &p, true
}

func decodeTrack(raw json.RawMessage) (scoring.ScoredTrack, bool) {
	var st scoring.ScoredTrack
	if err := json.Unmarshal(raw, &st); err == nil && st.Track.ID != "" {
		return st, true
	}

	var lt legacyTrack
	if err := json.Unmarshal(raw, &lt); err != nil || lt.ID == "" {
		return scoring.ScoredTrack{}, false
	}
	title := lt.Title
	if title == "" {
		title = lt.Name
	}
	return scoring.ScoredTrack{
		Track: scoring.Track{
			ID:      lt.ID,
			Title:   title,
			Artists: artistNames(lt.Artists),
			Genres:  lt.Genres,
			Tempo:   lt.Tempo,
			Energy:  lt.Energy,
			Valence: lt.Valence,
			URL:     lt.URL,
		},
		Score:   lt.Score,
		Reasons: lt.Reasons,
	}, true
}

// artistNames accepts artists stored as plain names or as {"name": ...} objects.
func artistNames(raws []json.RawMessage) []string {
	names := make([]string, 0, len(raws))
	for _, raw := range raws {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			var obj struct {
				Name string `json:"name"`
			}
			if json.Unmarshal(raw, &obj) != nil {
				continue
			}
			name = obj.Name
		}
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
