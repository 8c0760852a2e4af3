package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"
)

// ErrInvalidSession is returned when a session expires before it starts.
var ErrInvalidSession = errors.New("session expires before it is created")

// SessionRepository stores web sessions with the Spotify token they carry.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// OAuthToken returns the stored Spotify token.
func (s *Session) OAuthToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		Expiry:       s.TokenExpiry,
		TokenType:    "Bearer",
	}
}

// Create inserts a session for token. The user row is not required to exist.
func (r *SessionRepository) Create(ctx context.Context, s *Session, token *oauth2.Token) error {
	if !s.ExpiresAt.After(s.CreatedAt) {
		return ErrInvalidSession
	}
	s.AccessToken, s.RefreshToken, s.TokenExpiry = token.AccessToken, token.RefreshToken, token.Expiry

	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, access_token, refresh_token, token_expiry, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.UserID, s.AccessToken, s.RefreshToken, s.TokenExpiry, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// Get returns the session unless it is unknown or expired at now. UserName
// comes from the users table and is empty when the user was never recorded.
func (r *SessionRepository) Get(ctx context.Context, id string, now time.Time) (*Session, error) {
	var s Session
	err := r.pool.QueryRow(ctx, `
		SELECT s.id, s.user_id, COALESCE(u.display_name, ''), s.access_token, s.refresh_token,
			s.token_expiry, s.created_at, s.expires_at
		FROM sessions s
		LEFT JOIN users u ON u.id = s.user_id
		WHERE s.id = $1 AND s.expires_at > $2
	`, id, now).Scan(
		&s.ID,
		&s.UserID,
		&s.UserName,
		&s.AccessToken,
		&s.RefreshToken,
		&s.TokenExpiry,
		&s.CreatedAt,
		&s.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &s, nil
}

// Delete removes a session. Deleting an unknown session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteForUser signs a user out everywhere and returns how many sessions
// ended.
func (r *SessionRepository) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting user sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

// UpdateToken stores a refreshed Spotify token. An empty refresh token keeps
// the stored one, since Spotify does not always rotate it.
func (r *SessionRepository) UpdateToken(ctx context.Context, id string, token *oauth2.Token) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET access_token = $2,
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			token_expiry = $4
		WHERE id = $1
	`, id, token.AccessToken, token.RefreshToken, token.Expiry)
	if err != nil {
		return fmt.Errorf("updating session token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired removes the sessions expired at now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return result.RowsAffected(), nil
}
