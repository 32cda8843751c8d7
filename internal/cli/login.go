package cli

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

// newLoginCmd creates and returns a new login command
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store the token",
		Long: `Login to the API to obtain a bearer token. The token is stored and sent
with every following request.

Example:
  apikit login --username Bret --password secret
  apikit login --token eyJhbGciOi...  # store an existing token`,
		RunE: runLogin,
	}

	cmd.Flags().String("username", "", "Username")
	cmd.Flags().String("password", "", "Password")
	cmd.Flags().String("token", "", "Store this token instead of logging in")
	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	token, _ := cmd.Flags().GetString("token")
	if token != "" {
		current.client.SetAuthToken(ctx, token)
		return printLogin(cmd, "", tokenExpiry(token))
	}

	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	if username == "" || password == "" {
		return fmt.Errorf("no credentials provided. Use --username and --password, or --token")
	}

	result, err := current.users.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	return printLogin(cmd, result.User.Username, tokenExpiry(result.Token))
}

func printLogin(cmd *cobra.Command, username string, expiry time.Time) error {
	if jsonOutput {
		kv := map[string]any{
			"status":  "success",
			"message": "Login successful",
		}
		if username != "" {
			kv["username"] = username
		}
		if !expiry.IsZero() {
			kv["expires_at"] = expiry.Format(time.RFC3339)
		}
		printJSON(cmd.OutOrStdout(), kv)
		return nil
	}
	okLabel.Fprintln(cmd.OutOrStdout(), "✓ Login successful")
	if !expiry.IsZero() {
		fmt.Fprintf(cmd.OutOrStdout(), "Token expires at: %s\n", expiry.Format(time.RFC3339))
	}
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature. Tokens
// that are not JWTs have no known expiry.
func tokenExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := current.users.Logout(cmd.Context()); err != nil {
				// the token is cleared even when the server call fails
				warnLabel.Fprintf(cmd.ErrOrStderr(), "Warning: logout request failed: %v\n", err)
			}
			if jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]string{"status": "success", "message": "Logged out"})
			} else {
				okLabel.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
			}
			return nil
		},
	}
}

// newStatusCmd reports the configured API and the stored token.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the configured API and login state",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := current.client.AuthToken(cmd.Context())
			expiry := tokenExpiry(token)
			loggedIn := token != "" && (expiry.IsZero() || time.Now().Before(expiry))

			if jsonOutput {
				kv := map[string]any{
					"version_cli": getCLIVersion(),
					"base_url":    current.client.BaseURL(),
					"platform":    current.cfg.Platform,
					"logged_in":   loggedIn,
				}
				if !expiry.IsZero() {
					kv["expires_at"] = expiry.Format(time.RFC3339)
				}
				printJSON(cmd.OutOrStdout(), kv)
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "apikit %s\n", getCLIVersion())
			fmt.Fprintf(out, "API:      %s\n", current.client.BaseURL())
			fmt.Fprintf(out, "Platform: %s\n", current.cfg.Platform)
			switch {
			case token == "":
				fmt.Fprintln(out, "Not logged in")
			case !loggedIn:
				warnLabel.Fprintf(out, "Token expired at %s\n", expiry.Format(time.RFC3339))
			case expiry.IsZero():
				okLabel.Fprintln(out, "Logged in")
			default:
				okLabel.Fprintf(out, "Logged in until %s\n", expiry.Format(time.RFC3339))
			}
			return nil
		},
	}
}
