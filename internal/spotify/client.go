// Package spotify provides a wrapper around the Spotify Web API.
package spotify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Client wraps the Spotify API client with convenience methods.
type Client struct {
	api *spotify.Client
	log *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for progress and diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a new Spotify client wrapper.
// The underlying client should already be authenticated.
func New(api *spotify.Client, opts ...Option) *Client {
	c := &Client{api: api, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewUserClient creates a client acting for the user whose OAuth token
// authorizes httpClient.
func NewUserClient(httpClient *http.Client, opts ...Option) *Client {
	return New(spotify.New(httpClient, spotify.WithRetry(true)), opts...)
}

// NewAppClient creates an app-level client authenticated with the client
// credentials flow. It can search the catalog and read audio features but
// cannot act on behalf of a user.
func NewAppClient(ctx context.Context, clientID, clientSecret string, opts ...Option) (*Client, error) {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	// Fail fast on bad credentials instead of on the first search.
	if _, err := cfg.Token(ctx); err != nil {
		return nil, fmt.Errorf("getting client credentials token: %w", err)
	}

	api := spotify.New(cfg.Client(context.Background()), spotify.WithRetry(true))
	return New(api, opts...), nil
}

// User identifies the account a client acts for.
type User struct {
	ID          string
	DisplayName string
}

// CurrentUser returns the account the client is authorized for.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return User{}, fmt.Errorf("getting current user: %w", err)
	}
	return User{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// UserID returns the current user's Spotify ID.
func (c *Client) UserID(ctx context.Context) (string, error) {
	user, err := c.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// Token returns the client's current OAuth token, which may have been
// refreshed since the client was created.
func (c *Client) Token() (*oauth2.Token, error) {
	return c.api.Token()
}
