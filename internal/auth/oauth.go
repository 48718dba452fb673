package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"runstream/internal/store"
)

const (
	// Strava OAuth endpoints
	AuthURL  = "https://www.strava.com/oauth/authorize"
	TokenURL = "https://www.strava.com/oauth/token"
)

// Scopes required for reading activity streams (Strava uses comma-separated scopes)
var Scopes = []string{
	"read,activity:read_all",
}

// Config holds the OAuth client credentials
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string // seeds the store on first use
	TokenURL     string // defaults to TokenURL
}

// NewOAuthConfig creates an oauth2.Config from our Config
func NewOAuthConfig(cfg Config) *oauth2.Config {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = TokenURL
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   AuthURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: Scopes,
	}
}

// ExtractAthleteID extracts the athlete ID from the token extras
// Strava includes athlete info in the token response
func ExtractAthleteID(token *oauth2.Token) int64 {
	if athlete, ok := token.Extra("athlete").(map[string]interface{}); ok {
		if id, ok := athlete["id"].(float64); ok {
			return int64(id)
		}
	}
	return 0
}

// Seed stores the configured refresh token when no tokens are stored yet.
// The access token is left expired so the first request refreshes it.
func Seed(ctx context.Context, cfg Config, st TokenStore) error {
	_, err := st.GetAuth(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNoAuth) {
		return fmt.Errorf("reading stored auth: %w", err)
	}
	if cfg.RefreshToken == "" {
		return fmt.Errorf("no stored tokens and no strava.refresh_token configured: %w", store.ErrNoAuth)
	}
	return st.SaveAuth(ctx, &store.Auth{
		RefreshToken: cfg.RefreshToken,
		ExpiresAt:    time.Unix(0, 0),
	})
}
