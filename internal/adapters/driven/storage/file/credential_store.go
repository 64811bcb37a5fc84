package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driven"
)

// Ensure CredentialStore implements the interfaces.
var (
	_ driven.CredentialStore   = (*CredentialStore)(nil)
	_ driven.CredentialWatcher = (*CredentialStore)(nil)
)

// DefaultTokenFile is the file name used for the default identity.
const DefaultTokenFile = "google_photos_token.json"

// tokenSuffix is appended to non-default identities.
const tokenSuffix = "_token.json"

// identityPattern restricts identities to safe file name characters.
var identityPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]*$`)

// CredentialStore stores one JSON file per identity.
type CredentialStore struct {
	dir string
}

// NewCredentialStore creates a store rooted at dir.
// If dir is empty, defaults to ~/.gphotos/tokens.
func NewCredentialStore(dir string) (*CredentialStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".gphotos", "tokens")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating token directory: %w", err)
	}

	return &CredentialStore{dir: dir}, nil
}

// Dir returns the token directory.
func (s *CredentialStore) Dir() string {
	return s.dir
}

// Location returns the file path for identity.
func (s *CredentialStore) Location(identity string) string {
	return filepath.Join(s.dir, fileName(identity))
}

func fileName(identity string) string {
	if identity == "" || identity == domain.DefaultIdentity {
		return DefaultTokenFile
	}
	return identity + tokenSuffix
}

// identityFromFile reverses fileName. Returns false for unrelated files.
func identityFromFile(name string) (string, bool) {
	if name == DefaultTokenFile {
		return domain.DefaultIdentity, true
	}
	if id, ok := strings.CutSuffix(name, tokenSuffix); ok && identityPattern.MatchString(id) {
		return id, true
	}
	return "", false
}

func validateIdentity(identity string) error {
	if identity == "" || identity == domain.DefaultIdentity {
		return nil
	}
	if !identityPattern.MatchString(identity) {
		return fmt.Errorf("%w: identity %q", domain.ErrInvalidInput, identity)
	}
	return nil
}

// Load reads the credential for identity.
func (s *CredentialStore) Load(_ context.Context, identity string) (*domain.Credential, error) {
	if err := validateIdentity(identity); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Location(identity))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("reading credential: %w", err)
	}

	var cred domain.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptState, s.Location(identity), err)
	}
	if cred.AccessToken == "" && cred.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %s: no tokens", domain.ErrCorruptState, s.Location(identity))
	}
	if cred.Identity == "" {
		cred.Identity = normaliseIdentity(identity)
	}

	return &cred, nil
}

// Save atomically replaces the credential file.
func (s *CredentialStore) Save(_ context.Context, cred domain.Credential) error {
	if err := validateIdentity(cred.Identity); err != nil {
		return err
	}
	cred.Identity = normaliseIdentity(cred.Identity)

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credential: %w", err)
	}

	return writeFileAtomic(s.Location(cred.Identity), data, 0600)
}

// Delete removes the credential file.
func (s *CredentialStore) Delete(_ context.Context, identity string) error {
	if err := validateIdentity(identity); err != nil {
		return err
	}
	if err := os.Remove(s.Location(identity)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}

func normaliseIdentity(identity string) string {
	if identity == "" {
		return domain.DefaultIdentity
	}
	return identity
}

// writeFileAtomic writes data to a unique temp file next to path and renames it
// into place. Each writer gets its own temp file so concurrent processes never
// share one.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err = tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
