package driven

import (
	"context"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

// TokenProvider provides access tokens for one identity.
// Implementations handle token refresh transparently.
type TokenProvider interface {
	// GetToken returns an access token that does not expire within the
	// safety margin, refreshing synchronously if needed.
	// Returns domain.ErrReauthRequired if no usable refresh token exists.
	GetToken(ctx context.Context) (domain.AccessToken, error)

	// ForceRefresh refreshes even though the token is not expired, because the
	// remote API rejected stale. If another caller already replaced stale,
	// the current token is returned without a second refresh.
	ForceRefresh(ctx context.Context, stale string) (domain.AccessToken, error)

	// Identity returns the identity the provider is bound to.
	Identity() string
}

// TokenRefresher exchanges a refresh token for a new access token.
type TokenRefresher interface {
	// Refresh returns a credential carrying the new access token and expiry.
	// RefreshToken and Scopes are set only if the endpoint returned new values.
	// Returns domain.ErrReauthRequired on an invalid_grant response.
	Refresh(ctx context.Context, cred domain.Credential) (*domain.Credential, error)
}

// CredentialManager owns the credential lifecycle of every identity.
type CredentialManager interface {
	// Load reads a credential. Returns domain.ErrNotFound or domain.ErrCorruptState.
	Load(ctx context.Context, identity string) (*domain.Credential, error)

	// Token returns an access token valid for at least the safety margin.
	Token(ctx context.Context, identity string) (domain.AccessToken, error)

	// ForceRefresh refreshes unless stale was already replaced.
	ForceRefresh(ctx context.Context, identity, stale string) (domain.AccessToken, error)

	// Persist atomically replaces the stored credential.
	Persist(ctx context.Context, cred domain.Credential) error

	// Invalidate deletes the stored credential.
	Invalidate(ctx context.Context, identity string) error

	// Location describes where identity's credential is stored.
	Location(identity string) string
}
