package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

// Exchanger turns an authorization code into a new credential.
type Exchanger struct {
	config *oauth2.Config
	client *http.Client
	now    func() time.Time
}

// NewExchanger creates an Exchanger for config.
// If client is nil, a client with a 30 second timeout is used.
func NewExchanger(config *oauth2.Config, client *http.Client) *Exchanger {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Exchanger{config: config, client: client, now: time.Now}
}

// AuthCodeURL returns the consent URL for a PKCE login redirecting to redirectURI.
// Offline access and a forced consent prompt make Google issue a refresh token.
func (e *Exchanger) AuthCodeURL(state, verifier, redirectURI string) string {
	cfg := e.withRedirect(redirectURI)
	return cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.S256ChallengeOption(verifier),
	)
}

// Exchange redeems code and returns a credential for identity with a fresh ID.
// Scopes are taken from the token response, falling back to the requested ones.
func (e *Exchanger) Exchange(
	ctx context.Context, identity, code, verifier, redirectURI string,
) (*domain.Credential, error) {
	cfg := e.withRedirect(redirectURI)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode != "" {
			return nil, fmt.Errorf("token exchange: %s - %s", re.ErrorCode, re.ErrorDescription)
		}
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	if tok.RefreshToken == "" {
		return nil, errors.New("token exchange: no refresh token issued; revoke the app's access and log in again")
	}

	scopes := domain.NewScopeSet(cfg.Scopes...)
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		scopes = domain.ParseScopes(scope)
	}

	now := e.now()
	return &domain.Credential{
		ID:           uuid.NewString(),
		Identity:     identity,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		Expiry:       tok.Expiry,
		Scopes:       scopes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (e *Exchanger) withRedirect(redirectURI string) *oauth2.Config {
	cfg := *e.config
	cfg.RedirectURL = redirectURI
	return &cfg
}
