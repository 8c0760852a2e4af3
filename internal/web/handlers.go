package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/justestif/go-mood-playlist-builder/internal/catalog"
	"github.com/justestif/go-mood-playlist-builder/internal/clustering"
	"github.com/justestif/go-mood-playlist-builder/internal/db"
	"github.com/justestif/go-mood-playlist-builder/internal/history"
	"github.com/justestif/go-mood-playlist-builder/internal/mood"
	"github.com/justestif/go-mood-playlist-builder/internal/playlist"
	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
	"github.com/justestif/go-mood-playlist-builder/internal/spotify"
	"github.com/justestif/go-mood-playlist-builder/internal/store"
)

const (
	stateCookieName = "oauth_state"
	maxBodyBytes    = 64 << 10
)

// errNoSession is answered with 401.
var errNoSession = errors.New("sign in with Spotify first")

// UserClient is a Spotify client acting for a signed-in user.
type UserClient interface {
	playlist.Publisher
	history.Listener
	CurrentUser(ctx context.Context) (spotify.User, error)
	Token() (*oauth2.Token, error)
}

var _ UserClient = (*spotify.Client)(nil)

// ClientFactory returns a UserClient for a session token.
type ClientFactory func(ctx context.Context, token *oauth2.Token) UserClient

// UserRecorder records users as they sign in. *db.UserRepository implements it.
type UserRecorder interface {
	Upsert(ctx context.Context, user *db.User) error
	UpdateLastLogin(ctx context.Context, id string, loginTime time.Time) error
}

var _ UserRecorder = (*db.UserRepository)(nil)

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	auth      *spotifyauth.Authenticator
	sessions  SessionManager
	svc       *playlist.Service
	users     UserRecorder
	newClient ClientFactory
	log       *zap.Logger
	now       func() time.Time
}

// NewHandlers creates a new Handlers instance. users may be nil.
func NewHandlers(auth *spotifyauth.Authenticator, sessions SessionManager, svc *playlist.Service, users UserRecorder, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		auth:     auth,
		sessions: sessions,
		svc:      svc,
		users:    users,
		newClient: func(ctx context.Context, token *oauth2.Token) UserClient {
			return spotify.NewUserClient(auth.Client(ctx, token), spotify.WithLogger(log))
		},
		log: log,
		now: time.Now,
	}
}

// ============================================================================
// Auth
// ============================================================================

// Login initiates the Spotify OAuth flow (GET /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	// Generate state for CSRF protection
	state, err := generateOAuthState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate state")
		return
	}

	// Store state in cookie for validation on callback
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300, // 5 minutes
	})

	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback from Spotify (GET /callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing state cookie")
		return
	}

	state := r.URL.Query().Get("state")
	if state != stateCookie.Value {
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	// Clear state cookie
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		writeError(w, http.StatusBadRequest, "spotify auth error: "+errMsg)
		return
	}

	token, err := h.auth.Token(r.Context(), state, r)
	if err != nil {
		h.log.Warn("token exchange failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to get token")
		return
	}

	user, err := h.newClient(r.Context(), token).CurrentUser(r.Context())
	if err != nil {
		h.log.Warn("fetching spotify user failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to get user info")
		return
	}
	h.recordLogin(r.Context(), user)

	session, err := h.sessions.Create(r.Context(), token, user.ID, user.DisplayName)
	if err != nil {
		h.log.Error("creating session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	h.sessions.SetCookie(w, session)
	h.log.Info("user signed in", zap.String("user", user.ID))

	http.Redirect(w, r, "/api/me", http.StatusTemporaryRedirect)
}

// recordLogin upserts the user row. Failures only cost the login timestamp.
func (h *Handlers) recordLogin(ctx context.Context, user spotify.User) {
	if h.users == nil {
		return
	}
	if err := h.users.Upsert(ctx, &db.User{ID: user.ID, DisplayName: user.DisplayName}); err != nil {
		h.log.Warn("recording user", zap.String("user", user.ID), zap.Error(err))
		return
	}
	if err := h.users.UpdateLastLogin(ctx, user.ID, h.now()); err != nil {
		h.log.Warn("recording last login", zap.String("user", user.ID), zap.Error(err))
	}
}

// Logout clears the session (POST /auth/logout). With ?all=true every
// session of the user is ended.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if session := h.sessions.GetFromRequest(r); session != nil {
		if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
			h.sessions.DeleteForUser(r.Context(), session.UserID)
		} else {
			h.sessions.Delete(r.Context(), session.ID)
		}
	}
	h.sessions.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed-in user (GET /api/me).
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session == nil {
		h.writeErr(w, errNoSession)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":   session.UserID,
		"name": session.UserName,
	})
}

// profileResponse is the body of GET /api/me/profile.
type profileResponse struct {
	Profile    *history.Profile      `json:"profile"`
	Suggestion clustering.Suggestion `json:"suggestion"`
}

// MyProfile returns what the user builds and the mood suggested for them
// (GET /api/me/profile).
func (h *Handlers) MyProfile(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session == nil {
		h.writeErr(w, errNoSession)
		return
	}
	profile, err := h.svc.Profile(r.Context(), session.UserID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		Profile:    profile,
		Suggestion: h.svc.SuggestMood(r.Context(), session.UserID),
	})
}

// ============================================================================
// Playlists
// ============================================================================

// Health reports liveness (GET /healthz).
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Profiles lists the configured moods and contexts (GET /api/profiles).
func (h *Handlers) Profiles(w http.ResponseWriter, _ *http.Request) {
	scorer := h.svc.Scorer()
	writeJSON(w, http.StatusOK, map[string]any{
		"moods":    scorer.Moods(),
		"contexts": scorer.Contexts(),
	})
}

// moodRequest is the body of POST /api/mood.
type moodRequest struct {
	Text string     `json:"text"`
	Quiz *mood.Quiz `json:"quiz"`
}

// DetectMood guesses a mood from free text and quiz answers (POST /api/mood).
func (h *Handlers) DetectMood(w http.ResponseWriter, r *http.Request) {
	var body moodRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(body.Text) == "" && body.Quiz.Empty() {
		writeError(w, http.StatusBadRequest, "text or quiz is required")
		return
	}

	res, err := h.svc.DetectMood(body.Text, body.Quiz)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// buildRequest is the body of POST /api/playlists.
type buildRequest struct {
	Mood    string     `json:"mood"`
	Context string     `json:"context"`
	Genres  []string   `json:"genres"`
	Vibe    string     `json:"vibe"`
	Quiz    *mood.Quiz `json:"quiz"`
	Limit   *int       `json:"limit"` // absent means the default
	Market  string     `json:"market"`
	Title   string     `json:"title"`
	Save    bool       `json:"save"`
}

// Build builds a playlist (POST /api/playlists). Signed-in users get
// personalized builds; ?save=true persists the result.
func (h *Handlers) Build(w http.ResponseWriter, r *http.Request) {
	var body buildRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if v := r.URL.Query().Get("save"); v != "" {
		save, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid save parameter %q", v))
			return
		}
		body.Save = save
	}

	req := playlist.BuildRequest{
		Mood:    body.Mood,
		Context: body.Context,
		Genres:  body.Genres,
		Vibe:    body.Vibe,
		Quiz:    body.Quiz,
		Limit:   body.Limit,
		Market:  body.Market,
		Save:    body.Save,
		Title:   body.Title,
	}

	var client UserClient
	session := h.sessions.GetFromRequest(r)
	if session != nil {
		client = h.newClient(r.Context(), session.Token)
		req.UserID = session.UserID
		req.Listener = client
	}

	result, err := h.svc.Build(r.Context(), req)
	if client != nil {
		h.keepToken(r.Context(), session, client)
	}
	if err != nil {
		h.writeErr(w, err)
		return
	}

	status := http.StatusOK
	if result.Saved {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

// List lists saved playlists (GET /api/playlists). Without a session only
// playlists built anonymously are listed.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if session := h.sessions.GetFromRequest(r); session != nil {
		userID = session.UserID
	}

	summaries, err := h.svc.List(r.Context(), userID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	out := make([]store.Summary, 0, len(summaries))
	for _, s := range summaries {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Get returns a saved playlist (GET /api/playlists/{id}).
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.owned(r)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Delete removes a saved playlist (DELETE /api/playlists/{id}).
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := h.owned(r)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), p.ID); err != nil {
		h.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Publish creates the playlist in the user's Spotify account
// (POST /api/playlists/{id}/publish?public=true).
func (h *Handlers) Publish(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session == nil {
		h.writeErr(w, errNoSession)
		return
	}
	p, err := h.owned(r)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	public, _ := strconv.ParseBool(r.URL.Query().Get("public"))

	client := h.newClient(r.Context(), session.Token)
	p, err = h.svc.Publish(r.Context(), p.ID, client, public)
	h.keepToken(r.Context(), session, client)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"playlist":    p,
		"spotify_url": spotify.PlaylistURL(p.SpotifyPlaylistID),
	})
}

// owned loads the playlist named in the URL. Playlists of other users are
// reported as not found.
func (h *Handlers) owned(r *http.Request) (*store.Playlist, error) {
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	userID := ""
	if session := h.sessions.GetFromRequest(r); session != nil {
		userID = session.UserID
	}
	if p.UserID != userID {
		return nil, store.ErrNotFound
	}
	return p, nil
}

// keepToken stores a token the client refreshed while serving the request.
func (h *Handlers) keepToken(ctx context.Context, session *Session, client UserClient) {
	token, err := client.Token()
	if err != nil || token == nil || session.Token == nil {
		return
	}
	if token.AccessToken != session.Token.AccessToken {
		h.sessions.UpdateToken(ctx, session.ID, token)
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, scoring.ErrUnknownProfile), errors.Is(err, scoring.ErrInvalidLimit),
		errors.Is(err, mood.ErrInvalidQuiz):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, playlist.ErrEmptyPlaylist):
		return http.StatusUnprocessableEntity
	case errors.Is(err, playlist.ErrNoStore):
		return http.StatusServiceUnavailable
	case errors.Is(err, playlist.ErrCatalogTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, catalog.ErrSearchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse is the body of every error answer.
type errorResponse struct {
	Error string   `json:"error"`
	Valid []string `json:"valid,omitempty"` // accepted names for an unknown profile
}

func (h *Handlers) writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
		body.Error = "internal error"
	}
	var unknown *scoring.UnknownProfileError
	if errors.As(err, &unknown) {
		body.Valid = unknown.Valid
	}
	writeJSON(w, status, body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON decodes a bounded request body. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// generateOAuthState creates a random state string for OAuth.
func generateOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
