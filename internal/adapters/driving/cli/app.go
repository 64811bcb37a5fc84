package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gphotos-cli/internal/adapters/driven/auth"
	configfile "github.com/custodia-labs/gphotos-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/gphotos-cli/internal/adapters/driven/oauth"
	"github.com/custodia-labs/gphotos-cli/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/gphotos-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/gphotos-cli/internal/adapters/driven/storage/sqlite"
	callback "github.com/custodia-labs/gphotos-cli/internal/adapters/driving/oauth"
	"github.com/custodia-labs/gphotos-cli/internal/config"
	"github.com/custodia-labs/gphotos-cli/internal/connectors/google"
	"github.com/custodia-labs/gphotos-cli/internal/connectors/google/photos"
	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driven"
	"github.com/custodia-labs/gphotos-cli/internal/core/services"
	"github.com/custodia-labs/gphotos-cli/internal/logger"
	"github.com/custodia-labs/gphotos-cli/internal/obs"
)

var (
	// loaded is the configuration read by setup, nil for config-only commands.
	loaded *config.Config
	// secretsErr is set when no usable client secrets file exists.
	secretsErr error
	cleanups   []func()
)

// setup wires the services a command needs from the configuration.
// Services already set (by tests) are kept.
func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if hasAnnotation(cmd, annotationNoSetup) {
		return nil
	}
	if hasAnnotation(cmd, annotationConfigOnly) {
		return setupSettings()
	}
	if authService != nil && pickerService != nil && library != nil && downloader != nil {
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	loaded = cfg
	if err := logger.SetFile(cfg.LogFile); err != nil {
		logger.Warn("cannot open log file %s: %v", cfg.LogFile, err)
	}
	if cfg.Path != "" {
		logger.Debug("config: %s", cfg.Path)
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	cleanups = append(cleanups, cancel)

	if err := startMetrics(ctx, cfg); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	scopes := cfg.ScopeSet()
	var (
		refresher   driven.TokenRefresher
		flow        driven.LoginFlow
		newReceiver services.ReceiverFactory
	)
	oauthConfig, err := oauth.LoadClientConfig(cfg.ClientSecrets, scopes)
	switch {
	case errors.Is(err, oauth.ErrClientSecretsMissing):
		secretsErr = err
		refresher = missingSecrets{err: err}
		logger.Debug("%v", err)
	case err != nil:
		return err
	default:
		refresher = auth.NewOAuthRefresher(oauthConfig, nil)
		flow = oauth.NewExchanger(oauthConfig, nil)
		newReceiver = func(port int, state string) driven.RedirectReceiver {
			return callback.NewCallbackServer(port, state)
		}
	}

	manager := auth.NewManager(store, refresher, auth.WithMargin(cfg.Token.Margin))
	if cfg.Token.Watch {
		go func() {
			if err := manager.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Debug("credential watch stopped: %v", err)
			}
		}()
	}

	provider := manager.Provider(currentIdentity())
	pickerDispatcher, err := google.NewDispatcher(provider, cfg.DispatcherFor(google.ServicePicker, google.PickerBaseURL))
	if err != nil {
		return err
	}
	libraryDispatcher, err := google.NewDispatcher(provider, cfg.DispatcherFor(google.ServiceLibrary, google.LibraryBaseURL))
	if err != nil {
		return err
	}

	if authService == nil {
		authService = services.NewAuthService(manager, flow, newReceiver, callback.OpenBrowser, scopes)
	}
	if pickerService == nil {
		pickerService = services.NewPickerService(photos.NewPicker(pickerDispatcher), callback.OpenBrowser)
	}
	if library == nil {
		library = photos.NewLibrary(libraryDispatcher)
	}
	if downloader == nil {
		downloader = photos.NewDownloader(provider, nil, photos.WithDownloadRateLimit(cfg.RateLimit.Media))
	}
	return setupSettings()
}

// setupSettings opens the config file store next to the config file.
func setupSettings() error {
	if settingsService != nil {
		return nil
	}
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	if configPath != "" {
		dir = filepath.Dir(configPath)
	}
	store, err := configfile.NewConfigStore(dir)
	if err != nil {
		return err
	}
	settingsService = services.NewSettingsService(store)
	return nil
}

func openStore(cfg *config.Config) (driven.CredentialStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		store, err := sqlite.NewStore(cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("open credential database: %w", err)
		}
		cleanups = append(cleanups, func() { _ = store.Close() })
		return store, nil
	case config.BackendMemory:
		logger.Warn("credentials are kept in memory and discarded when the command exits")
		return memory.NewCredentialStore(), nil
	default:
		store, err := file.NewCredentialStore(cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("open credential store: %w", err)
		}
		return store, nil
	}
}

func startMetrics(ctx context.Context, cfg *config.Config) error {
	addr := metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr == "" {
		return nil
	}
	bound, err := obs.Serve(ctx, addr)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	logger.Info("metrics on http://%s/metrics", bound)
	return nil
}

// teardown releases what setup opened, in reverse order.
func teardown() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
	_ = logger.SetFile("")
}

// hasAnnotation looks for key on cmd and its parents.
func hasAnnotation(cmd *cobra.Command, key string) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[key]; ok {
			return true
		}
	}
	return false
}

// missingSecrets refuses refreshes when no client secrets are configured.
type missingSecrets struct {
	err error
}

func (m missingSecrets) Refresh(context.Context, domain.Credential) (*domain.Credential, error) {
	return nil, fmt.Errorf("%w: %v", domain.ErrReauthRequired, m.err)
}
