package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driven"
	"github.com/custodia-labs/gphotos-cli/internal/logger"
	"github.com/custodia-labs/gphotos-cli/internal/obs"
)

// DefaultMargin is how long before expiry an access token stops being handed out.
const DefaultMargin = 60 * time.Second

// Option configures a Manager.
type Option func(*Manager)

// WithMargin sets the expiry safety margin.
func WithMargin(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.margin = d
		}
	}
}

// Manager owns the credential lifecycle for every identity: it loads from the
// durable store, hands out access tokens, refreshes them before they expire
// and persists the result.
//
// At most one refresh per identity is in flight at a time; concurrent callers
// wait for it and receive the same token.
type Manager struct {
	store     driven.CredentialStore
	refresher driven.TokenRefresher
	margin    time.Duration

	mu    sync.RWMutex
	cache map[string]domain.Credential
	// gens counts the times each identity's credential was replaced or
	// removed outside a refresh. A refresh that started under an older
	// generation must not write its result back.
	gens map[string]uint64

	// writeMu orders refresh writes against Persist and Invalidate.
	writeMu sync.Mutex
	group   singleflight.Group
}

// NewManager creates a Manager over store using refresher for token refreshes.
func NewManager(store driven.CredentialStore, refresher driven.TokenRefresher, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		refresher: refresher,
		margin:    DefaultMargin,
		cache:     make(map[string]domain.Credential),
		gens:      make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Margin returns the expiry safety margin.
func (m *Manager) Margin() time.Duration {
	return m.margin
}

// Location describes where identity's credential is persisted.
func (m *Manager) Location(identity string) string {
	return m.store.Location(normaliseIdentity(identity))
}

// Load reads the credential for identity from the durable store.
// Returns domain.ErrNotFound or domain.ErrCorruptState.
func (m *Manager) Load(ctx context.Context, identity string) (*domain.Credential, error) {
	identity = normaliseIdentity(identity)

	gen := m.generation(identity)
	cred, err := m.store.Load(ctx, identity)
	if err != nil {
		return nil, err
	}

	m.rememberAt(*cred, gen)
	return cred, nil
}

// Token returns an access token for identity that is valid for at least the
// safety margin, refreshing it first if needed.
//
// Returns domain.ErrReauthRequired when no credential is stored, it has no
// refresh token, or the grant was revoked; domain.ErrCorruptState when the
// stored credential cannot be read; domain.ErrRefreshFailed for other refresh
// failures.
func (m *Manager) Token(ctx context.Context, identity string) (domain.AccessToken, error) {
	identity = normaliseIdentity(identity)

	if cred, ok := m.cached(identity); ok && !cred.ExpiresWithin(m.margin) {
		return cred.AccessTokenValue(), nil
	}

	gen := m.generation(identity)
	cred, err := m.loadForToken(ctx, identity)
	if err != nil {
		return domain.AccessToken{}, err
	}
	if !cred.ExpiresWithin(m.margin) {
		if !m.rememberAt(*cred, gen) {
			return m.current(identity)
		}
		return cred.AccessTokenValue(), nil
	}

	return m.refresh(ctx, identity, "", false)
}

// ForceRefresh refreshes identity's access token even if it has not expired.
// If the current token already differs from stale, someone else refreshed in
// the meantime and that token is returned without another round trip.
func (m *Manager) ForceRefresh(ctx context.Context, identity, stale string) (domain.AccessToken, error) {
	identity = normaliseIdentity(identity)

	if cred, ok := m.cached(identity); ok && stale != "" && cred.AccessToken != stale && !cred.ExpiresWithin(m.margin) {
		return cred.AccessTokenValue(), nil
	}

	return m.refresh(ctx, identity, stale, true)
}

// Persist atomically replaces identity's durable credential and the cached copy.
func (m *Manager) Persist(ctx context.Context, cred domain.Credential) error {
	cred.Identity = normaliseIdentity(cred.Identity)
	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = time.Now()
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.store.Save(ctx, cred); err != nil {
		return fmt.Errorf("persisting credential: %w", err)
	}

	m.replace(cred.Identity, &cred)
	return nil
}

// Invalidate deletes identity's credential. The next Token call returns
// domain.ErrReauthRequired until the user authorises again, even if a
// refresh was in flight when Invalidate was called.
func (m *Manager) Invalidate(ctx context.Context, identity string) error {
	identity = normaliseIdentity(identity)

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.replace(identity, nil)
	if err := m.store.Delete(ctx, identity); err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}

	logger.Debug("credential invalidated: identity=%s", identity)
	return nil
}

// Provider returns a TokenProvider bound to identity.
func (m *Manager) Provider(identity string) driven.TokenProvider {
	return &identityProvider{manager: m, identity: normaliseIdentity(identity)}
}

// Watch drops cached tokens when their credential disappears from the store,
// for example when the user deletes the token file by hand. It blocks until
// ctx is cancelled. Stores that cannot be watched return immediately.
func (m *Manager) Watch(ctx context.Context) error {
	w, ok := m.store.(driven.CredentialWatcher)
	if !ok {
		return nil
	}
	return w.Watch(ctx, func(identity string) {
		logger.Info("credential for %s removed from store, dropping cached token", identity)
		m.replace(normaliseIdentity(identity), nil)
	})
}

// loadForToken loads a credential, mapping a missing one to ErrReauthRequired.
func (m *Manager) loadForToken(ctx context.Context, identity string) (*domain.Credential, error) {
	cred, err := m.store.Load(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no credential stored for %q", domain.ErrReauthRequired, identity)
		}
		return nil, err
	}
	return cred, nil
}

// refresh coalesces concurrent refreshes of identity into one.
// The shared refresh ignores the cancellation of whichever caller started it
// so the others still get a token; each caller stops waiting on its own ctx.
func (m *Manager) refresh(ctx context.Context, identity, stale string, force bool) (domain.AccessToken, error) {
	ch := m.group.DoChan(identity, func() (any, error) {
		return m.doRefresh(context.WithoutCancel(ctx), identity, stale, force)
	})

	select {
	case <-ctx.Done():
		return domain.AccessToken{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.AccessToken{}, res.Err
		}
		if res.Shared {
			logger.Debug("joined in-flight refresh: identity=%s", identity)
		}
		return res.Val.(domain.AccessToken), nil
	}
}

func (m *Manager) doRefresh(ctx context.Context, identity, stale string, force bool) (domain.AccessToken, error) {
	gen := m.generation(identity)

	// Re-read: another caller or process may have refreshed and persisted already.
	cred, err := m.loadForToken(ctx, identity)
	if err != nil {
		return domain.AccessToken{}, err
	}

	fresh := !cred.ExpiresWithin(m.margin)
	if fresh && (!force || (stale != "" && cred.AccessToken != stale)) {
		if !m.rememberAt(*cred, gen) {
			return m.current(identity)
		}
		return cred.AccessTokenValue(), nil
	}

	if !cred.HasRefreshToken() {
		m.forget(identity)
		return domain.AccessToken{}, fmt.Errorf("%w: credential for %q has no refresh token", domain.ErrReauthRequired, identity)
	}

	logger.Debug("refreshing access token: identity=%s force=%v", identity, force)
	refreshed, err := m.refresher.Refresh(ctx, *cred)
	if err != nil {
		if errors.Is(err, domain.ErrReauthRequired) {
			obs.ObserveRefresh("reauth")
			m.forget(identity)
		} else {
			obs.ObserveRefresh("error")
		}
		return domain.AccessToken{}, err
	}
	obs.ObserveRefresh("ok")

	refreshed.Identity = identity
	if refreshed.UpdatedAt.IsZero() {
		refreshed.UpdatedAt = time.Now()
	}

	m.writeMu.Lock()
	if m.generation(identity) != gen {
		m.writeMu.Unlock()
		logger.Debug("credential for %s replaced or removed during refresh, discarding result", identity)
		return m.current(identity)
	}
	if err := m.store.Save(ctx, *refreshed); err != nil {
		// The token is valid; keep it in memory and try to persist on the next refresh.
		logger.Warn("could not persist refreshed credential for %s: %v", identity, err)
	}
	m.rememberAt(*refreshed, gen)
	m.writeMu.Unlock()

	logger.Debug("access token refreshed: identity=%s expiry=%s", identity, refreshed.Expiry.Format(time.RFC3339))
	return refreshed.AccessTokenValue(), nil
}

func (m *Manager) cached(identity string) (domain.Credential, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.cache[identity]
	return cred, ok
}

func (m *Manager) generation(identity string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gens[identity]
}

// rememberAt caches cred unless its identity was replaced or removed since
// gen was read.
func (m *Manager) rememberAt(cred domain.Credential, gen uint64) bool {
	identity := normaliseIdentity(cred.Identity)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[identity] != gen {
		return false
	}
	m.cache[identity] = cred
	return true
}

// replace starts a new generation for identity, caching cred or dropping
// the cached copy when cred is nil.
func (m *Manager) replace(identity string, cred *domain.Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[identity]++
	if cred == nil {
		delete(m.cache, identity)
		return
	}
	m.cache[identity] = *cred
}

// current is the outcome of a token read that lost a race with Persist or
// Invalidate: the newly persisted token, or domain.ErrReauthRequired.
func (m *Manager) current(identity string) (domain.AccessToken, error) {
	if cred, ok := m.cached(identity); ok && !cred.ExpiresWithin(m.margin) {
		return cred.AccessTokenValue(), nil
	}
	return domain.AccessToken{}, fmt.Errorf("%w: credential for %q was removed", domain.ErrReauthRequired, identity)
}

func (m *Manager) forget(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, identity)
}

func normaliseIdentity(identity string) string {
	if identity == "" {
		return domain.DefaultIdentity
	}
	return identity
}
