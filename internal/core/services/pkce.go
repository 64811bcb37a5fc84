package services

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/oauth2"
)

// generateCodeVerifier creates a PKCE code verifier (RFC 7636).
func generateCodeVerifier() string {
	return oauth2.GenerateVerifier()
}

// generateState creates a random state parameter for CSRF protection.
func generateState() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
