package driven

import (
	"context"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

// CredentialStore persists one credential per identity.
//
// Implementations must make Save atomic: a crash mid-write never leaves a
// half-written credential behind.
type CredentialStore interface {
	// Load returns the credential for identity.
	// Returns domain.ErrNotFound if none exists and domain.ErrCorruptState
	// if the persisted form cannot be parsed.
	Load(ctx context.Context, identity string) (*domain.Credential, error)

	// Save overwrites the credential for cred.Identity.
	Save(ctx context.Context, cred domain.Credential) error

	// Delete removes the credential. Deleting a missing credential is not an error.
	Delete(ctx context.Context, identity string) error

	// Location describes where the credential for identity lives,
	// so a user can inspect or delete it by hand.
	Location(identity string) string
}

// CredentialWatcher is implemented by stores that can report external changes.
type CredentialWatcher interface {
	// Watch calls onRemove with the identity whenever its credential is removed
	// outside this process. It blocks until ctx is cancelled.
	Watch(ctx context.Context, onRemove func(identity string)) error
}
