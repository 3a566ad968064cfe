package strava

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

const (
	// Strava OAuth endpoints
	AuthURL  = "https://www.strava.com/oauth/authorize"
	TokenURL = "https://www.strava.com/oauth/token"
)

// Scopes required for our app (Strava uses comma-separated scopes)
var Scopes = []string{
	"read,activity:read_all",
}

// OAuth handles the authorization-code exchange and token refresh flows
// against Strava's token endpoint.
type OAuth struct {
	cfg *oauth2.Config
}

// NewOAuth builds the OAuth helper from app credentials.
func NewOAuth(clientID, clientSecret, redirectURL string) *OAuth {
	return &OAuth{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  AuthURL,
				TokenURL: TokenURL,
			},
			RedirectURL: redirectURL,
			Scopes:      Scopes,
		},
	}
}

// AuthCodeURL returns the Strava consent-screen URL the member is sent to.
// state is echoed back on the callback and must be verified there.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "auto"))
}

// Exchange trades the callback code for a token pair. The returned token's
// Extra("athlete") carries the athlete profile; use ExtractAthlete.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := o.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("strava: exchanging authorization code: %w", err)
	}
	return token, nil
}

// Refresh obtains a fresh token pair from a stored refresh token.
//
// Strava rotates the refresh token on every refresh, so callers must
// persist BOTH returned tokens — the old refresh token may stop working.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.New("strava: no refresh token")
	}

	// Seed the token source with an already-expired token so the oauth2
	// package performs a refresh rather than returning what we gave it.
	seed := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}
	token, err := o.cfg.TokenSource(ctx, seed).Token()
	if err != nil {
		return nil, fmt.Errorf("strava: refreshing token: %w", err)
	}
	return token, nil
}

// AthleteProfile is the athlete summary Strava embeds in token responses.
type AthleteProfile struct {
	ID        string
	Username  string
	FirstName string
	LastName  string
	Picture   string
}

// ExtractAthlete pulls the athlete profile out of a token response's extras.
// Returns a zero profile if the token carried none (e.g. a refresh response).
func ExtractAthlete(token *oauth2.Token) AthleteProfile {
	athlete, ok := token.Extra("athlete").(map[string]any)
	if !ok {
		return AthleteProfile{}
	}

	var p AthleteProfile
	if id, ok := athlete["id"].(float64); ok {
		p.ID = strconv.FormatInt(int64(id), 10)
	}
	if v, ok := athlete["username"].(string); ok {
		p.Username = v
	}
	if v, ok := athlete["firstname"].(string); ok {
		p.FirstName = v
	}
	if v, ok := athlete["lastname"].(string); ok {
		p.LastName = v
	}
	if v, ok := athlete["profile"].(string); ok {
		p.Picture = v
	}
	return p
}
