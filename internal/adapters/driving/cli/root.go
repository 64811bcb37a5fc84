// Package cli implements the gphotos command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driving"
	"github.com/custodia-labs/gphotos-cli/internal/logger"
)

// version is set by the build.
var version = "dev"

// Persistent flags.
var (
	verbose     bool
	configPath  string
	identity    string
	metricsAddr string
	jsonOutput  bool
)

// Services used by commands. setup fills the ones still nil.
var (
	authService     driving.AuthService
	pickerService   driving.PickerService
	settingsService driving.SettingsService
	library         libraryClient
	downloader      mediaDownloader
)

// annotationConfigOnly marks commands that only need the config file.
// They keep working when the configuration does not validate.
const annotationConfigOnly = "config-only"

// annotationNoSetup marks commands that need nothing wired.
const annotationNoSetup = "no-setup"

var rootCmd = &cobra.Command{
	Use:   "gphotos",
	Short: "Pick, list and download Google Photos media",
	Long: `gphotos talks to the Google Photos Picker and Library APIs with a
stored OAuth credential. Tokens are refreshed before they expire and
transient API failures are retried.

Get started:
  1. Create an OAuth client (Desktop app) in the Google Cloud Console and
     save it as ~/.gphotos/credentials.json
  2. gphotos auth login
  3. gphotos pick --out ./photos`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) { teardown() },
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "print debug logs to stderr")
	flags.StringVar(&configPath, "config", "", "config file (default ~/.gphotos/config.toml)")
	flags.StringVarP(&identity, "identity", "i", "", "credential identity (default from config)")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	flags.BoolVar(&jsonOutput, "json", false, "print JSON even on a terminal")
}

// SetVersion sets the version printed by 'gphotos version'.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command and returns the process exit code.
// Errors are printed with a remediation hint when one applies.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	// PersistentPostRun is skipped when a command fails.
	logger.Debug("command failed: %v", err)
	teardown()
	printError(rootCmd, err)
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 1
}

func printError(cmd *cobra.Command, err error) {
	cmd.PrintErrln("Error:", err)
	if hint := domain.Remediation(err); hint != "" {
		cmd.PrintErrln()
		cmd.PrintErrln(hint)
	}
}

// commandContext returns the command's context, never nil.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// currentIdentity is the --identity flag or the configured identity.
func currentIdentity() string {
	if identity != "" {
		return identity
	}
	if loaded != nil && loaded.Identity != "" {
		return loaded.Identity
	}
	return domain.DefaultIdentity
}

func notConfigured(what string) error {
	return fmt.Errorf("%s not configured", what)
}
