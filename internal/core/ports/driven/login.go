package driven

import (
	"context"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

// LoginFlow is the OAuth authorization code grant with PKCE.
type LoginFlow interface {
	// AuthCodeURL returns the consent URL.
	AuthCodeURL(state, verifier, redirectURI string) string

	// Exchange redeems code for a new credential stored under identity.
	Exchange(ctx context.Context, identity, code, verifier, redirectURI string) (*domain.Credential, error)
}

// RedirectReceiver receives the authorization redirect on a loopback address.
type RedirectReceiver interface {
	Start() error
	RedirectURI() string
	WaitForCode(ctx context.Context) (string, error)
	Stop() error
}
