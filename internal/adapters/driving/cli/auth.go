package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driving"
)

var (
	loginPort      int
	loginTimeout   time.Duration
	loginNoBrowser bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the stored Google credential",
	Long: `Log in, inspect and remove the OAuth credential used for API calls.

Each identity has one credential. Logging in again replaces it, which also
invalidates saved page cursors.

Examples:
  gphotos auth login
  gphotos auth login --identity work --no-browser
  gphotos auth status
  gphotos auth logout`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorise access to Google Photos",
	Long: `Opens the Google consent page and waits for the redirect on a loopback
address. The resulting credential is stored for the identity.

Requires an OAuth client secrets file (Desktop app) from the Google Cloud
Console, by default at ~/.gphotos/credentials.json.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored credential",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete the stored credential",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

var authTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a valid access token",
	Long:  `Prints an access token valid for at least the configured margin, refreshing it first if needed.`,
	Args:  cobra.NoArgs,
	RunE:  runAuthToken,
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the access token now",
	Args:  cobra.NoArgs,
	RunE:  runAuthRefresh,
}

func init() {
	authLoginCmd.Flags().IntVar(&loginPort, "port", 0, "loopback port for the redirect (default from config, 0 = any)")
	authLoginCmd.Flags().DurationVar(&loginTimeout, "timeout", 0, "how long to wait for consent (default from config)")
	authLoginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "print the consent URL instead of opening a browser")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authTokenCmd)
	authCmd.AddCommand(authRefreshCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, _ []string) error {
	if authService == nil {
		return notConfigured("auth service")
	}
	if secretsErr != nil {
		return secretsErr
	}

	opts := driving.LoginOptions{
		Identity:     currentIdentity(),
		CallbackPort: loginPort,
		Timeout:      loginTimeout,
		NoBrowser:    loginNoBrowser,
		OnURL: func(url string) {
			cmd.Println("Open this URL to authorise gphotos:")
			cmd.Println()
			cmd.Println("  " + url)
			cmd.Println()
		},
	}
	if loaded != nil {
		if !cmd.Flags().Changed("port") {
			opts.CallbackPort = loaded.Login.CallbackPort
		}
		if !cmd.Flags().Changed("timeout") {
			opts.Timeout = loaded.Login.Timeout
		}
	}

	cred, err := authService.Login(commandContext(cmd), opts)
	if err != nil {
		return err
	}
	cmd.Printf("Logged in. Credential %s stored for identity %q.\n", cred.ID, cred.Identity)
	return nil
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	if authService == nil {
		return notConfigured("auth service")
	}

	status, err := authService.Status(commandContext(cmd), currentIdentity())
	if err != nil {
		return err
	}
	if wantJSON() {
		return printJSON(cmd, status)
	}

	cmd.Printf("Identity:      %s\n", status.Identity)
	cmd.Printf("Credential:    %s\n", status.CredentialID)
	cmd.Printf("Stored at:     %s\n", status.Location)
	cmd.Printf("Expires:       %s\n", formatExpiry(status.Expiry, status.Expired))
	cmd.Printf("Refreshable:   %s\n", yesNo(status.HasRefreshToken))
	if status.Scopes.IsEmpty() {
		cmd.Println("Scopes:        (unknown)")
	} else {
		cmd.Println("Scopes:")
		for _, s := range status.Scopes.Strings() {
			cmd.Printf("  %s\n", s)
		}
	}
	if len(status.MissingScopes) > 0 {
		cmd.Println("Missing scopes:")
		for _, s := range status.MissingScopes {
			cmd.Printf("  %s\n", s)
		}
		cmd.Println()
		cmd.Println(domain.Remediation(domain.ErrScopeMissing))
	}
	return nil
}

func runAuthLogout(cmd *cobra.Command, _ []string) error {
	if authService == nil {
		return notConfigured("auth service")
	}
	id := currentIdentity()
	if err := authService.Logout(commandContext(cmd), id); err != nil {
		return err
	}
	cmd.Printf("Credential for identity %q deleted.\n", id)
	return nil
}

func runAuthToken(cmd *cobra.Command, _ []string) error {
	if authService == nil {
		return notConfigured("auth service")
	}
	tok, err := authService.Token(commandContext(cmd), currentIdentity())
	if err != nil {
		return err
	}
	return printToken(cmd, tok)
}

func runAuthRefresh(cmd *cobra.Command, _ []string) error {
	if authService == nil {
		return notConfigured("auth service")
	}
	tok, err := authService.Refresh(commandContext(cmd), currentIdentity())
	if err != nil {
		return err
	}
	return printToken(cmd, tok)
}

func printToken(cmd *cobra.Command, tok domain.AccessToken) error {
	if wantJSON() {
		return printJSON(cmd, map[string]any{
			"access_token":  tok.Value,
			"token_type":    tok.TokenType,
			"expiry":        tok.Expiry,
			"credential_id": tok.CredentialID,
		})
	}
	cmd.Println(tok.Value)
	return nil
}

func formatExpiry(expiry time.Time, expired bool) string {
	switch {
	case expiry.IsZero():
		return "never"
	case expired:
		return expiry.Local().Format(time.RFC3339) + " (expired)"
	default:
		return expiry.Local().Format(time.RFC3339) + " (in " + time.Until(expiry).Round(time.Second).String() + ")"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
