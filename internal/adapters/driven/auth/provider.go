package auth

import (
	"context"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driven"
)

// Ensure the provider implementations satisfy the TokenProvider interface.
var (
	_ driven.TokenProvider = (*identityProvider)(nil)
	_ driven.TokenProvider = (*StaticTokenProvider)(nil)
)

// identityProvider is a Manager view bound to one identity.
type identityProvider struct {
	manager  *Manager
	identity string
}

func (p *identityProvider) GetToken(ctx context.Context) (domain.AccessToken, error) {
	return p.manager.Token(ctx, p.identity)
}

func (p *identityProvider) ForceRefresh(ctx context.Context, stale string) (domain.AccessToken, error) {
	return p.manager.ForceRefresh(ctx, p.identity, stale)
}

func (p *identityProvider) Identity() string {
	return p.identity
}

// StaticTokenProvider hands out a fixed access token, for example one
// supplied through GPHOTOS_ACCESS_TOKEN. It cannot refresh.
type StaticTokenProvider struct {
	token domain.AccessToken
}

// NewStaticTokenProvider creates a provider for a fixed bearer token.
// An empty scopes set disables the scope pre-check.
func NewStaticTokenProvider(value string, scopes domain.ScopeSet) *StaticTokenProvider {
	return &StaticTokenProvider{token: domain.AccessToken{
		Value:        value,
		TokenType:    "Bearer",
		Scopes:       scopes,
		CredentialID: "static",
	}}
}

// GetToken returns the fixed token.
func (p *StaticTokenProvider) GetToken(_ context.Context) (domain.AccessToken, error) {
	if p.token.Value == "" {
		return domain.AccessToken{}, domain.ErrReauthRequired
	}
	return p.token, nil
}

// ForceRefresh always fails: a rejected static token can only be replaced by the user.
func (p *StaticTokenProvider) ForceRefresh(_ context.Context, _ string) (domain.AccessToken, error) {
	return domain.AccessToken{}, domain.ErrReauthRequired
}

// Identity returns "static".
func (p *StaticTokenProvider) Identity() string {
	return "static"
}
