package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"runstream/internal/store"
)

// expiryBuffer refreshes tokens slightly before Strava expires them
const expiryBuffer = 60 * time.Second

// TokenStore persists the singleton token row
type TokenStore interface {
	GetAuth(ctx context.Context) (*store.Auth, error)
	SaveAuth(ctx context.Context, auth *store.Auth) error
}

// TokenSource is an oauth2.TokenSource backed by the store.
// It refreshes tokens as needed and writes every new token back.
type TokenSource struct {
	ctx    context.Context
	config *oauth2.Config
	store  TokenStore

	mu   sync.Mutex
	auth *store.Auth
}

// NewTokenSource loads the stored tokens. ctx is used for refresh requests.
func NewTokenSource(ctx context.Context, cfg *oauth2.Config, st TokenStore) (*TokenSource, error) {
	a, err := st.GetAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tokens: %w", err)
	}
	return &TokenSource{ctx: ctx, config: cfg, store: st, auth: a}, nil
}

// Token returns a valid token, refreshing if necessary
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.auth.AccessToken != "" && time.Until(ts.auth.ExpiresAt) > expiryBuffer {
		return ts.current(), nil
	}

	// An expired token forces the underlying source to use the refresh token
	stale := &oauth2.Token{RefreshToken: ts.auth.RefreshToken, Expiry: time.Unix(1, 0)}
	fresh, err := ts.config.TokenSource(ts.ctx, stale).Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	next := &store.Auth{
		AthleteID:    ts.auth.AthleteID,
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
		ExpiresAt:    fresh.Expiry,
	}
	if id := ExtractAthleteID(fresh); id != 0 {
		next.AthleteID = id
	}
	if next.RefreshToken == "" {
		next.RefreshToken = ts.auth.RefreshToken
	}
	if err := ts.store.SaveAuth(ts.ctx, next); err != nil {
		return nil, fmt.Errorf("saving refreshed token: %w", err)
	}

	ts.auth = next
	return ts.current(), nil
}

func (ts *TokenSource) current() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  ts.auth.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: ts.auth.RefreshToken,
		Expiry:       ts.auth.ExpiresAt,
	}
}
