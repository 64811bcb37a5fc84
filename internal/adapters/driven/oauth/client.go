// Package oauth loads the installed-app client configuration and exchanges
// authorization codes for credentials.
package oauth

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

// ErrClientSecretsMissing indicates no client secrets file was found.
var ErrClientSecretsMissing = errors.New("oauth: client secrets file not found")

// LoadClientConfig reads a client secrets file downloaded from the Google
// Cloud Console (credentials.json, "installed" or "web" type) and returns
// the OAuth configuration for scopes.
func LoadClientConfig(path string, scopes domain.ScopeSet) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrClientSecretsMissing, path)
		}
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	return ParseClientConfig(data, scopes)
}

// ParseClientConfig parses client secrets JSON.
func ParseClientConfig(data []byte, scopes domain.ScopeSet) (*oauth2.Config, error) {
	cfg, err := googleoauth.ConfigFromJSON(data, scopes.Strings()...)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}
	if cfg.ClientID == "" {
		return nil, errors.New("parse client secrets: client_id is empty")
	}
	return cfg, nil
}
