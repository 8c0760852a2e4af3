// Package auth provides Spotify OAuth2 authentication for the command line,
// with the token cached on disk between runs.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// DefaultRedirectURI uses explicit IPv4 loopback as required by Spotify for local development.
	// See: https://developer.spotify.com/documentation/web-api/concepts/redirect-uri
	DefaultRedirectURI = "http://127.0.0.1:8080/callback"
	callbackTimeout    = 2 * time.Minute
)

var (
	// ErrMissingCredentials is returned when the Spotify client ID or secret is not set.
	ErrMissingCredentials = errors.New("missing SPOTIFY_ID or SPOTIFY_SECRET")

	// ErrAuthTimeout is returned when the OAuth callback is not received in time.
	ErrAuthTimeout = errors.New("authentication timed out waiting for callback")

	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = errors.New("OAuth state mismatch")

	// ErrNotLoggedIn is returned by Cached when no usable token is stored.
	ErrNotLoggedIn = errors.New("not logged in to Spotify (run the login command)")
)

// Scopes are requested for every user session: recently played tracks feed
// history, the library scope reads liked songs and the playlist scopes
// publish builds.
var Scopes = []string{
	spotifyauth.ScopeUserReadRecentlyPlayed,
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
}

// NewSpotifyAuthenticator returns the OAuth2 authenticator shared by the CLI
// and the web server.
func NewSpotifyAuthenticator(clientID, clientSecret, redirectURI string) *spotifyauth.Authenticator {
	return spotifyauth.New(
		spotifyauth.WithClientID(clientID),
		spotifyauth.WithClientSecret(clientSecret),
		spotifyauth.WithRedirectURL(redirectURI),
		spotifyauth.WithScopes(Scopes...),
	)
}

// Config holds the Spotify application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string // defaults to DefaultRedirectURI
}

// Authenticator handles Spotify OAuth2 authentication.
type Authenticator struct {
	auth        *spotifyauth.Authenticator
	cache       *TokenCache
	redirectURI string
	log         *zap.Logger
	out         io.Writer
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithTokenCache overrides the default token location.
func WithTokenCache(c *TokenCache) Option {
	return func(a *Authenticator) { a.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Authenticator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithOutput sets where login instructions are printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *Authenticator) { a.out = w }
}

// New creates an Authenticator.
// Returns ErrMissingCredentials if the client ID or secret is empty.
func New(cfg Config, opts ...Option) (*Authenticator, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = DefaultRedirectURI
	}

	a := &Authenticator{
		auth:        NewSpotifyAuthenticator(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI),
		redirectURI: cfg.RedirectURI,
		log:         zap.NewNop(),
		out:         os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.cache == nil {
		cache, err := DefaultTokenCache()
		if err != nil {
			return nil, fmt.Errorf("creating token cache: %w", err)
		}
		a.cache = cache
	}
	return a, nil
}

// Authenticate returns an authenticated Spotify client.
// It first checks for a cached token and uses it if valid/refreshable.
// Otherwise, it runs the full OAuth flow.
func (a *Authenticator) Authenticate(ctx context.Context) (*spotify.Client, error) {
	client, err := a.Cached(ctx)
	if err == nil {
		return client, nil
	}
	if !errors.Is(err, ErrNotLoggedIn) {
		return nil, err
	}
	return a.runOAuthFlow(ctx)
}

// Cached returns a client for the cached token without prompting.
// Returns ErrNotLoggedIn when there is no token or it no longer works.
func (a *Authenticator) Cached(ctx context.Context) (*spotify.Client, error) {
	token, err := a.cache.Load()
	if err != nil {
		return nil, fmt.Errorf("loading cached token: %w", err)
	}
	if token == nil {
		return nil, ErrNotLoggedIn
	}

	// oauth2 refreshes the token transparently if needed.
	client := spotify.New(a.auth.Client(ctx, token), spotify.WithRetry(true))

	// Verify token works by making a simple API call
	if _, err := client.CurrentUser(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.log.Info("cached token rejected", zap.Error(err))
		return nil, ErrNotLoggedIn
	}

	// Keep a refreshed token for the next run.
	newToken, tokenErr := client.Token()
	if tokenErr == nil && newToken.AccessToken != token.AccessToken {
		if err := a.cache.Save(newToken); err != nil {
			a.log.Warn("saving refreshed token", zap.Error(err))
		}
	}
	return client, nil
}

// runOAuthFlow performs the full OAuth authorization code flow.
func (a *Authenticator) runOAuthFlow(ctx context.Context) (*spotify.Client, error) {
	addr, path, err := callbackAddr(a.redirectURI)
	if err != nil {
		return nil, err
	}

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	// Channel to receive the token from callback
	tokenCh := make(chan *oauth2.Token, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		a.handleCallback(w, r, state, tokenCh, errCh)
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("callback server error: %w", err)
		}
	}()

	fmt.Fprintln(a.out, "\nTo authenticate, open this URL in your browser:")
	fmt.Fprintln(a.out, a.auth.AuthURL(state))
	fmt.Fprintln(a.out, "\nWaiting for authentication...")

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}

	var token *oauth2.Token
	select {
	case token = <-tokenCh:
	case err := <-errCh:
		shutdown()
		return nil, err
	case <-time.After(callbackTimeout):
		shutdown()
		return nil, ErrAuthTimeout
	case <-ctx.Done():
		shutdown()
		return nil, ctx.Err()
	}
	shutdown()

	if err := a.cache.Save(token); err != nil {
		// Auth succeeded; the next run just asks again.
		a.log.Warn("failed to cache token", zap.String("path", a.cache.Path()), zap.Error(err))
	}

	return spotify.New(a.auth.Client(ctx, token), spotify.WithRetry(true)), nil
}

// handleCallback processes the OAuth callback from Spotify.
func (a *Authenticator) handleCallback(w http.ResponseWriter, r *http.Request, expectedState string, tokenCh chan<- *oauth2.Token, errCh chan<- error) {
	if r.URL.Query().Get("state") != expectedState {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		errCh <- ErrStateMismatch
		return
	}

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, "Authentication failed: "+errMsg, http.StatusBadRequest)
		errCh <- fmt.Errorf("spotify auth error: %s", errMsg)
		return
	}

	token, err := a.auth.Token(r.Context(), expectedState, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusInternalServerError)
		errCh <- fmt.Errorf("exchanging code for token: %w", err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Authentication successful. You can close this window and return to the terminal.")

	tokenCh <- token
}

// callbackAddr returns the listen address and path of a loopback redirect URI.
func callbackAddr(redirectURI string) (addr, path string, err error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", "", fmt.Errorf("parsing redirect URI: %w", err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("redirect URI %q has no host", redirectURI)
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return u.Host, path, nil
}

// generateState creates a random state string for OAuth.
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// LoggedIn reports whether a token is cached.
func (a *Authenticator) LoggedIn() bool {
	token, err := a.cache.Load()
	return err == nil && token != nil
}

// Logout removes the cached token.
func (a *Authenticator) Logout() error {
	return a.cache.Delete()
}
