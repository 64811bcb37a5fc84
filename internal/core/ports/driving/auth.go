package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

// LoginOptions tunes an interactive login.
type LoginOptions struct {
	// Identity to store the new credential under.
	Identity string
	// CallbackPort for the loopback redirect; 0 picks a free port.
	CallbackPort int
	// Timeout bounds the wait for the user to consent.
	Timeout time.Duration
	// NoBrowser skips launching a browser; the URL is only reported.
	NoBrowser bool
	// OnURL receives the consent URL before waiting.
	OnURL func(url string)
}

// CredentialStatus describes the stored credential of one identity.
type CredentialStatus struct {
	Identity        string          `json:"identity"`
	CredentialID    string          `json:"credential_id"`
	Location        string          `json:"location"`
	Scopes          domain.ScopeSet `json:"scopes"`
	MissingScopes   []string        `json:"missing_scopes,omitempty"`
	Expiry          time.Time       `json:"expiry"`
	Expired         bool            `json:"expired"`
	HasRefreshToken bool            `json:"has_refresh_token"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// AuthService runs logins and reports on stored credentials.
type AuthService interface {
	// Login runs the browser consent flow and stores a new credential.
	Login(ctx context.Context, opts LoginOptions) (*domain.Credential, error)

	// Status reports on the credential of identity.
	Status(ctx context.Context, identity string) (*CredentialStatus, error)

	// Token returns a valid access token, refreshing if needed.
	Token(ctx context.Context, identity string) (domain.AccessToken, error)

	// Refresh forces a token refresh.
	Refresh(ctx context.Context, identity string) (domain.AccessToken, error)

	// Logout deletes the credential of identity.
	Logout(ctx context.Context, identity string) error
}
