package domain

import "time"

// DefaultIdentity is the identity used when none is configured.
const DefaultIdentity = "default"

// Credential stores the OAuth state for one identity.
// Exactly one Credential exists per identity in the durable store.
type Credential struct {
	// ID is assigned when the user authorises (UUID).
	// Refreshes keep it; re-authorisation produces a new one, which
	// invalidates page cursors derived from the previous credential.
	ID string `json:"id"`
	// Identity is the store key (e.g. "default", "work").
	Identity string `json:"identity"`

	// AccessToken is the short-lived bearer token.
	AccessToken string `json:"access_token"`
	// RefreshToken is the long-lived token used to obtain new access tokens.
	RefreshToken string `json:"refresh_token,omitempty"`
	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`
	// Expiry is when the access token expires.
	Expiry time.Time `json:"expiry,omitempty"`
	// Scopes are the scopes granted at consent time.
	Scopes ScopeSet `json:"scopes"`

	// CreatedAt is when the credential was first authorised.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the access token was last replaced.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExpired returns true if the access token has expired.
// A zero expiry never expires.
func (c *Credential) IsExpired() bool {
	return c.ExpiresWithin(0)
}

// ExpiresWithin returns true if the access token expires within margin,
// or if there is no access token at all.
func (c *Credential) ExpiresWithin(margin time.Duration) bool {
	if c.AccessToken == "" {
		return true
	}
	if c.Expiry.IsZero() {
		return false
	}
	return time.Until(c.Expiry) <= margin
}

// HasRefreshToken returns true if a refresh token is available.
func (c *Credential) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// AccessTokenValue returns the handoff value for the current access token.
func (c *Credential) AccessTokenValue() AccessToken {
	return AccessToken{
		Value:        c.AccessToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
		Scopes:       c.Scopes,
		CredentialID: c.ID,
	}
}

// AccessToken is the value handed to the dispatcher for one or more calls.
type AccessToken struct {
	Value     string
	TokenType string
	Expiry    time.Time
	Scopes    ScopeSet
	// CredentialID identifies the credential the token belongs to.
	CredentialID string
}

// AuthorizationHeader returns the value for the HTTP Authorization header.
func (t AccessToken) AuthorizationHeader() string {
	typ := t.TokenType
	if typ == "" || typ == "bearer" {
		typ = "Bearer"
	}
	return typ + " " + t.Value
}
