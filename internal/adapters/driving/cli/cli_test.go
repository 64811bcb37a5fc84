package cli

import (
	"bytes"
	"context"
	"io"
	"iter"
	"testing"

	"github.com/custodia-labs/gphotos-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/gphotos-cli/internal/connectors/google/photos"
	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driving"
	"github.com/custodia-labs/gphotos-cli/internal/core/services"
)

type fakeAuth struct {
	loginOpts driving.LoginOptions
	status    *driving.CredentialStatus
	token     domain.AccessToken
	err       error
	refreshed int
	loggedOut []string
}

func (f *fakeAuth) Login(_ context.Context, opts driving.LoginOptions) (*domain.Credential, error) {
	f.loginOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	if opts.OnURL != nil {
		opts.OnURL("https://accounts.example.test/auth")
	}
	return &domain.Credential{ID: "cred-1", Identity: opts.Identity}, nil
}

func (f *fakeAuth) Status(_ context.Context, _ string) (*driving.CredentialStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

func (f *fakeAuth) Token(_ context.Context, _ string) (domain.AccessToken, error) {
	return f.token, f.err
}

func (f *fakeAuth) Refresh(_ context.Context, _ string) (domain.AccessToken, error) {
	f.refreshed++
	return f.token, f.err
}

func (f *fakeAuth) Logout(_ context.Context, id string) error {
	f.loggedOut = append(f.loggedOut, id)
	return f.err
}

type fakePicker struct {
	opts   driving.PickOptions
	result *driving.PickResult
	err    error
}

func (f *fakePicker) Pick(_ context.Context, opts driving.PickOptions) (*driving.PickResult, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	if opts.OnURL != nil {
		opts.OnURL("https://photos.example.test/pick/s1")
	}
	return f.result, nil
}

type fakeLibrary struct {
	albums []domain.Album
	items  []domain.MediaItem
	err    error
	filter photos.SearchFilter
}

func seqOf[T any](items []T, err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, it := range items {
			if !yield(it, nil) {
				return
			}
		}
		if err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

func (f *fakeLibrary) Albums(context.Context) iter.Seq2[domain.Album, error] {
	return seqOf(f.albums, f.err)
}

func (f *fakeLibrary) Search(_ context.Context, filter photos.SearchFilter) iter.Seq2[domain.MediaItem, error] {
	f.filter = filter
	return seqOf(f.items, f.err)
}

func (f *fakeLibrary) GetMediaItem(_ context.Context, id string) (*domain.MediaItem, error) {
	for i := range f.items {
		if f.items[i].ID == id {
			return &f.items[i], nil
		}
	}
	return nil, &domain.APIError{Kind: domain.ErrBadRequest, StatusCode: 404, Message: "not found"}
}

type fakeDownloader struct {
	urls []string
	err  error
}

func (f *fakeDownloader) Download(_ context.Context, baseURL string, w io.Writer, opts photos.DownloadOptions) (int64, error) {
	f.urls = append(f.urls, baseURL+opts.Suffix())
	if f.err != nil {
		return 0, f.err
	}
	n, err := io.WriteString(w, "bytes of "+baseURL+opts.Suffix())
	return int64(n), err
}

type testServices struct {
	auth       *fakeAuth
	picker     *fakePicker
	library    *fakeLibrary
	downloader *fakeDownloader
}

// setupTestServices injects fakes and restores the package state afterwards.
// Output defaults to tables.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()
	ts := &testServices{
		auth:       &fakeAuth{},
		picker:     &fakePicker{result: &driving.PickResult{SessionID: "s1"}},
		library:    &fakeLibrary{},
		downloader: &fakeDownloader{},
	}
	authService = ts.auth
	pickerService = ts.picker
	library = ts.library
	downloader = ts.downloader
	settingsService = services.NewSettingsService(memory.NewConfigStore())

	origTerminal := isTerminal
	isTerminal = func() bool { return true }

	t.Cleanup(func() {
		authService, pickerService, settingsService = nil, nil, nil
		library, downloader = nil, nil
		isTerminal = origTerminal
		secretsErr = nil
		loaded = nil
		resetFlags()
		rootCmd.SetArgs(nil)
	})
	return ts
}

// resetFlags restores flag variables, which cobra keeps between executions.
func resetFlags() {
	verbose, configPath, identity, metricsAddr, jsonOutput = false, "", "", "", false
	loginPort, loginTimeout, loginNoBrowser = 0, 0, false
	pickMediaTypes, pickFeatures = nil, nil
	pickTimeout, pickPollInterval = 0, 0
	pickNoBrowser, pickKeepSession, pickOut = false, false, ""
	searchAlbum, searchFrom, searchTo, searchMediaType = "", "", "", ""
	searchOn, searchInclude, searchExclude, searchFeatures = nil, nil, nil, nil
	searchArchived, searchOldestFirst, searchLimit = false, false, 50
	albumsLimit = 0
	downloadOut, downloadVideo, downloadWidth, downloadHeight = "", false, 0, 0
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}
