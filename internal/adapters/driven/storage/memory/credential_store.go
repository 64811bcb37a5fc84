package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driven"
)

// Ensure CredentialStore implements the interface.
var _ driven.CredentialStore = (*CredentialStore)(nil)

// CredentialStore is an in-memory implementation of driven.CredentialStore.
// Nothing survives the process.
type CredentialStore struct {
	mu          sync.RWMutex
	credentials map[string]domain.Credential
	saves       int
}

// NewCredentialStore creates a new in-memory credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		credentials: make(map[string]domain.Credential),
	}
}

// Load retrieves a copy of the credential for identity.
func (s *CredentialStore) Load(_ context.Context, identity string) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.credentials[normaliseIdentity(identity)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &cred, nil
}

// Save stores or replaces the credential.
func (s *CredentialStore) Save(_ context.Context, cred domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred.Identity = normaliseIdentity(cred.Identity)
	s.credentials[cred.Identity] = cred
	s.saves++
	return nil
}

// Delete removes the credential. Deleting a missing identity is not an error.
func (s *CredentialStore) Delete(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.credentials, normaliseIdentity(identity))
	return nil
}

// Location returns a description of where identity is stored.
func (s *CredentialStore) Location(identity string) string {
	return ":memory:/" + normaliseIdentity(identity)
}

// Saves returns how many times Save was called.
func (s *CredentialStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func normaliseIdentity(identity string) string {
	if identity == "" {
		return domain.DefaultIdentity
	}
	return identity
}
