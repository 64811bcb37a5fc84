package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driven"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driving"
	"github.com/custodia-labs/gphotos-cli/internal/logger"
)

// Ensure AuthService implements the interface.
var _ driving.AuthService = (*AuthService)(nil)

// DefaultLoginTimeout bounds the wait for the user to consent.
const DefaultLoginTimeout = 5 * time.Minute

// ReceiverFactory creates a redirect receiver on port expecting state.
type ReceiverFactory func(port int, state string) driven.RedirectReceiver

// BrowserOpener opens url in the user's browser.
type BrowserOpener func(url string) error

// AuthService runs logins and reports on stored credentials.
type AuthService struct {
	manager     driven.CredentialManager
	flow        driven.LoginFlow
	newReceiver ReceiverFactory
	openBrowser BrowserOpener
	required    domain.ScopeSet
}

// NewAuthService creates an AuthService. flow and newReceiver may be nil when
// logins are not possible (no client secrets configured); Login then fails.
func NewAuthService(
	manager driven.CredentialManager,
	flow driven.LoginFlow,
	newReceiver ReceiverFactory,
	openBrowser BrowserOpener,
	required domain.ScopeSet,
) *AuthService {
	return &AuthService{
		manager:     manager,
		flow:        flow,
		newReceiver: newReceiver,
		openBrowser: openBrowser,
		required:    required,
	}
}

// Login runs the loopback consent flow and persists a new credential.
// The previous credential of the identity, if any, is replaced; cursors
// derived from it stop being valid.
func (s *AuthService) Login(ctx context.Context, opts driving.LoginOptions) (*domain.Credential, error) {
	if s.flow == nil || s.newReceiver == nil {
		return nil, fmt.Errorf("%w: login is not configured", domain.ErrInvalidInput)
	}
	identity := opts.Identity
	if identity == "" {
		identity = domain.DefaultIdentity
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}
	verifier := generateCodeVerifier()

	receiver := s.newReceiver(opts.CallbackPort, state)
	if err := receiver.Start(); err != nil {
		return nil, fmt.Errorf("start redirect receiver: %w", err)
	}
	defer func() {
		if err := receiver.Stop(); err != nil {
			logger.Debug("stopping redirect receiver: %v", err)
		}
	}()

	redirectURI := receiver.RedirectURI()
	authURL := s.flow.AuthCodeURL(state, verifier, redirectURI)
	if opts.OnURL != nil {
		opts.OnURL(authURL)
	}
	if !opts.NoBrowser && s.openBrowser != nil {
		if err := s.openBrowser(authURL); err != nil {
			logger.Warn("could not open browser: %v", err)
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	code, err := receiver.WaitForCode(waitCtx)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	cred, err := s.flow.Exchange(ctx, identity, code, verifier, redirectURI)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if missing := s.missingScopes(cred.Scopes); len(missing) > 0 {
		logger.Warn("consent did not grant %v; calls needing them will fail", missing)
	}

	if err := s.manager.Persist(ctx, *cred); err != nil {
		return nil, err
	}
	logger.Info("logged in as identity %s (credential %s)", identity, cred.ID)
	return cred, nil
}

// Status reports on the stored credential of identity.
func (s *AuthService) Status(ctx context.Context, identity string) (*driving.CredentialStatus, error) {
	cred, err := s.manager.Load(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no credential stored for %q", domain.ErrReauthRequired, identity)
		}
		return nil, err
	}

	return &driving.CredentialStatus{
		Identity:        cred.Identity,
		CredentialID:    cred.ID,
		Location:        s.manager.Location(cred.Identity),
		Scopes:          cred.Scopes,
		MissingScopes:   s.missingScopes(cred.Scopes),
		Expiry:          cred.Expiry,
		Expired:         cred.IsExpired(),
		HasRefreshToken: cred.HasRefreshToken(),
		CreatedAt:       cred.CreatedAt,
		UpdatedAt:       cred.UpdatedAt,
	}, nil
}

// Token returns a valid access token, refreshing if needed.
func (s *AuthService) Token(ctx context.Context, identity string) (domain.AccessToken, error) {
	return s.manager.Token(ctx, identity)
}

// Refresh forces a refresh of identity's access token.
func (s *AuthService) Refresh(ctx context.Context, identity string) (domain.AccessToken, error) {
	tok, err := s.manager.Token(ctx, identity)
	if err != nil {
		return domain.AccessToken{}, err
	}
	return s.manager.ForceRefresh(ctx, identity, tok.Value)
}

// Logout deletes the stored credential of identity.
func (s *AuthService) Logout(ctx context.Context, identity string) error {
	return s.manager.Invalidate(ctx, identity)
}

// missingScopes lists required scopes not granted. Unknown grants report nothing.
func (s *AuthService) missingScopes(granted domain.ScopeSet) []string {
	if granted.IsEmpty() {
		return nil
	}
	return granted.Missing(s.required.Strings()...)
}
