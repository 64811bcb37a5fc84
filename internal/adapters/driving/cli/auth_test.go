package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driving"
)

func TestAuthCmd_HasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range authCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"login", "status", "logout", "token", "refresh"} {
		assert.True(t, names[want], "missing auth %s", want)
	}
}

func TestAuthLogin_PassesOptionsAndPrintsURL(t *testing.T) {
	ts := setupTestServices(t)

	out, err := execute(t, "auth", "login", "--identity", "work", "--no-browser", "--port", "8085", "--timeout", "1m")
	require.NoError(t, err)

	assert.Equal(t, "work", ts.auth.loginOpts.Identity)
	assert.True(t, ts.auth.loginOpts.NoBrowser)
	assert.Equal(t, 8085, ts.auth.loginOpts.CallbackPort)
	assert.Equal(t, time.Minute, ts.auth.loginOpts.Timeout)
	assert.Contains(t, out, "https://accounts.example.test/auth")
	assert.Contains(t, out, `Credential cred-1 stored for identity "work"`)
}

func TestAuthLogin_MissingClientSecrets(t *testing.T) {
	ts := setupTestServices(t)
	secretsErr = errors.New("oauth: client secrets file not found: /x/credentials.json")

	_, err := execute(t, "auth", "login")
	assert.ErrorContains(t, err, "client secrets file not found")
	assert.Empty(t, ts.auth.loginOpts.Identity, "login must not start")
}

func TestAuthStatus_Table(t *testing.T) {
	ts := setupTestServices(t)
	ts.auth.status = &driving.CredentialStatus{
		Identity:        "default",
		CredentialID:    "cred-1",
		Location:        "/home/u/.gphotos/tokens/google_photos_token.json",
		Scopes:          domain.NewScopeSet(domain.ScopePickerReadonly),
		MissingScopes:   []string{domain.ScopeLibraryReadonlyAppCreated},
		Expiry:          time.Now().Add(time.Hour),
		HasRefreshToken: true,
	}

	out, err := execute(t, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "cred-1")
	assert.Contains(t, out, "google_photos_token.json")
	assert.Contains(t, out, "Refreshable:   yes")
	assert.Contains(t, out, "Missing scopes:")
	assert.Contains(t, out, domain.ScopeLibraryReadonlyAppCreated)
	assert.Contains(t, out, "gphotos auth login")
}

func TestAuthStatus_JSON(t *testing.T) {
	ts := setupTestServices(t)
	ts.auth.status = &driving.CredentialStatus{Identity: "default", CredentialID: "cred-1"}

	out, err := execute(t, "auth", "status", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"credential_id": "cred-1"`)
}

func TestAuthStatus_ReauthRequired(t *testing.T) {
	ts := setupTestServices(t)
	ts.auth.err = domain.ErrReauthRequired

	_, err := execute(t, "auth", "status")
	assert.ErrorIs(t, err, domain.ErrReauthRequired)
}

func TestAuthTokenAndRefresh(t *testing.T) {
	ts := setupTestServices(t)
	ts.auth.token = domain.AccessToken{Value: "ya29.token", TokenType: "Bearer"}

	out, err := execute(t, "auth", "token")
	require.NoError(t, err)
	assert.Equal(t, "ya29.token\n", out)

	out, err = execute(t, "auth", "refresh")
	require.NoError(t, err)
	assert.Contains(t, out, "ya29.token")
	assert.Equal(t, 1, ts.auth.refreshed)
}

func TestAuthLogout(t *testing.T) {
	ts := setupTestServices(t)

	out, err := execute(t, "auth", "logout", "-i", "work")
	require.NoError(t, err)
	assert.Equal(t, []string{"work"}, ts.auth.loggedOut)
	assert.Contains(t, out, `identity "work" deleted`)
}

func TestPrintError_AddsRemediation(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetErr(buf)
	defer rootCmd.SetErr(nil)

	printError(rootCmd, &domain.APIError{Kind: domain.ErrAPINotEnabled, StatusCode: 403})
	assert.Contains(t, buf.String(), "Error: API not enabled for project (HTTP 403)")
	assert.Contains(t, buf.String(), "Google Cloud Console")

	buf.Reset()
	printError(rootCmd, errors.New("boom"))
	assert.Equal(t, "Error: boom\n", buf.String())
}

func TestFormatExpiry(t *testing.T) {
	assert.Equal(t, "never", formatExpiry(time.Time{}, false))
	assert.Contains(t, formatExpiry(time.Now().Add(-time.Minute), true), "(expired)")
	assert.Contains(t, formatExpiry(time.Now().Add(time.Hour), false), "(in ")
}
