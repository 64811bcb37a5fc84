package photos

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gphotos-cli/internal/connectors/google"
	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

// stubProvider hands out "token-N"; a forced refresh of the current token bumps N.
type stubProvider struct {
	mu        sync.Mutex
	version   int
	refreshes int
}

func (p *stubProvider) GetToken(_ context.Context) (domain.AccessToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token(), nil
}

func (p *stubProvider) ForceRefresh(_ context.Context, stale string) (domain.AccessToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshes++
	if stale == p.token().Value {
		p.version++
	}
	return p.token(), nil
}

func (p *stubProvider) Identity() string { return "test" }

func (p *stubProvider) token() domain.AccessToken {
	return domain.AccessToken{
		Value:        fmt.Sprintf("token-%d", p.version+1),
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
		CredentialID: "cred-1",
	}
}

func newDispatcher(t *testing.T, baseURL string, service google.ServiceType) *google.Dispatcher {
	t.Helper()
	cfg := google.DefaultConfig(service, baseURL)
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = time.Millisecond
	cfg.RateLimit = &google.RateLimitConfig{}

	d, err := google.NewDispatcher(&stubProvider{}, cfg)
	require.NoError(t, err)
	return d
}

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}
