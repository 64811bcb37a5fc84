package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driven"
)

// Ensure OAuthRefresher implements the TokenRefresher interface.
var _ driven.TokenRefresher = (*OAuthRefresher)(nil)

// errInvalidGrant is the token endpoint error for a revoked or expired grant.
const errInvalidGrant = "invalid_grant"

// OAuthRefresher exchanges refresh tokens at the OAuth token endpoint.
type OAuthRefresher struct {
	config *oauth2.Config
	client *http.Client
}

// NewOAuthRefresher creates a refresher for config.
// If client is nil, a client with a 30 second timeout is used.
func NewOAuthRefresher(config *oauth2.Config, client *http.Client) *OAuthRefresher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &OAuthRefresher{config: config, client: client}
}

// Refresh returns a copy of cred carrying a new access token.
// The refresh token is replaced only if the endpoint issued a new one.
func (r *OAuthRefresher) Refresh(ctx context.Context, cred domain.Credential) (*domain.Credential, error) {
	if !cred.HasRefreshToken() {
		return nil, fmt.Errorf("%w: no refresh token", domain.ErrReauthRequired)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	src := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})

	tok, err := src.Token()
	if err != nil {
		return nil, classifyRefreshError(err)
	}

	out := cred
	out.AccessToken = tok.AccessToken
	out.TokenType = tok.Type()
	out.Expiry = tok.Expiry
	if tok.RefreshToken != "" {
		out.RefreshToken = tok.RefreshToken
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		out.Scopes = domain.ParseScopes(scope)
	}
	out.UpdatedAt = time.Now()

	return &out, nil
}

// classifyRefreshError maps a token endpoint failure to a domain error kind.
// Only invalid_grant means the user must authorise again; anything else
// (network, 5xx, misconfigured client) leaves the grant intact.
func classifyRefreshError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorCode == errInvalidGrant || (re.ErrorCode == "" && bytes.Contains(re.Body, []byte(errInvalidGrant))) {
			msg := errInvalidGrant
			if re.ErrorDescription != "" {
				msg += " - " + re.ErrorDescription
			}
			return fmt.Errorf("%w: %s", domain.ErrReauthRequired, msg)
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrRefreshFailed, err)
}
