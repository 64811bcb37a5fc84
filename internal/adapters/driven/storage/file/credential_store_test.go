package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

func testCredential(identity, access string) domain.Credential {
	return domain.Credential{
		ID:           "cred-1",
		Identity:     identity,
		AccessToken:  access,
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Scopes:       domain.NewScopeSet(domain.ScopePickerReadonly),
	}
}

func TestNewCredentialStore_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "tokens")

	store, err := NewCredentialStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCredentialStore_Location(t *testing.T) {
	store, err := NewCredentialStore(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		identity string
		want     string
	}{
		{"", DefaultTokenFile},
		{domain.DefaultIdentity, DefaultTokenFile},
		{"work", "work_token.json"},
		{"me@example.com", "me@example.com_token.json"},
	}

	for _, tt := range tests {
		t.Run(tt.identity, func(t *testing.T) {
			assert.Equal(t, filepath.Join(store.Dir(), tt.want), store.Location(tt.identity))
		})
	}
}

func TestIdentityFromFile(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		ok       bool
	}{
		{DefaultTokenFile, domain.DefaultIdentity, true},
		{"work_token.json", "work", true},
		{".google_photos_token.json.123.tmp", "", false},
		{"notes.txt", "", false},
		{"_token.json", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, ok := identityFromFile(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.identity, identity)
		})
	}
}

func TestCredentialStore_SaveAndLoad(t *testing.T) {
	store, err := NewCredentialStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	cred := testCredential(domain.DefaultIdentity, "access-1")
	require.NoError(t, store.Save(ctx, cred))

	loaded, err := store.Load(ctx, domain.DefaultIdentity)
	require.NoError(t, err)
	assert.Equal(t, "access-1", loaded.AccessToken)
	assert.Equal(t, "refresh-1", loaded.RefreshToken)
	assert.Equal(t, "cred-1", loaded.ID)
	assert.True(t, cred.Expiry.Equal(loaded.Expiry))
	assert.True(t, loaded.Scopes.Contains(domain.ScopePickerReadonly))

	info, err := os.Stat(store.Location(domain.DefaultIdentity))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestCredentialStore_Save_ReplacesWithoutTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewCredentialStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testCredential("work", "access-1")))
	require.NoError(t, store.Save(ctx, testCredential("work", "access-2")))

	loaded, err := store.Load(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, "access-2", loaded.AccessToken)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "work_token.json", entries[0].Name())
}

func TestCredentialStore_Save_ConcurrentWritersLeaveValidFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewCredentialStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Save(ctx, testCredential(domain.DefaultIdentity, "access"))
		}()
	}
	wg.Wait()

	loaded, err := store.Load(ctx, domain.DefaultIdentity)
	require.NoError(t, err)
	assert.Equal(t, "access", loaded.AccessToken)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCredentialStore_Load_NotFound(t *testing.T) {
	store, err := NewCredentialStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCredentialStore_Load_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated json", `{"access_token": "abc`},
		{"not json", "hello"},
		{"no tokens", `{"token_type": "Bearer"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewCredentialStore(t.TempDir())
			require.NoError(t, err)
			path := store.Location(domain.DefaultIdentity)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			_, err = store.Load(context.Background(), domain.DefaultIdentity)
			assert.ErrorIs(t, err, domain.ErrCorruptState)
		})
	}
}

func TestCredentialStore_Load_FillsIdentity(t *testing.T) {
	store, err := NewCredentialStore(t.TempDir())
	require.NoError(t, err)
	path := store.Location("work")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"a","refresh_token":"r"}`), 0600))

	loaded, err := store.Load(context.Background(), "work")
	require.NoError(t, err)
	assert.Equal(t, "work", loaded.Identity)
}

func TestCredentialStore_Load_ScopesAsString(t *testing.T) {
	store, err := NewCredentialStore(t.TempDir())
	require.NoError(t, err)
	path := store.Location(domain.DefaultIdentity)
	content := `{"access_token":"a","refresh_token":"r","scopes":"` + domain.ScopePickerReadonly + `"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	loaded, err := store.Load(context.Background(), domain.DefaultIdentity)
	require.NoError(t, err)
	assert.True(t, loaded.Scopes.Contains(domain.ScopePickerReadonly))
}

func TestCredentialStore_Delete(t *testing.T) {
	store, err := NewCredentialStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testCredential(domain.DefaultIdentity, "access")))
	require.NoError(t, store.Delete(ctx, domain.DefaultIdentity))

	_, err = store.Load(ctx, domain.DefaultIdentity)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Deleting again is not an error.
	assert.NoError(t, store.Delete(ctx, domain.DefaultIdentity))
}

func TestCredentialStore_InvalidIdentity(t *testing.T) {
	store, err := NewCredentialStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, identity := range []string{"../escape", "a/b", ".hidden"} {
		t.Run(identity, func(t *testing.T) {
			_, err := store.Load(ctx, identity)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)

			err = store.Save(ctx, testCredential(identity, "x"))
			assert.ErrorIs(t, err, domain.ErrInvalidInput)

			err = store.Delete(ctx, identity)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestCredentialStore_Watch_ReportsRemoval(t *testing.T) {
	store, err := NewCredentialStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, store.Save(ctx, testCredential("work", "access")))

	removed := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- store.Watch(ctx, func(identity string) {
			select {
			case removed <- identity:
			default:
			}
		})
	}()

	// Give the watcher time to register before removing the file.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.Remove(store.Location("work")))

	select {
	case identity := <-removed:
		assert.Equal(t, "work", identity)
	case <-time.After(5 * time.Second):
		t.Fatal("removal not reported")
	}

	cancel()
	assert.NoError(t, <-done)
}
