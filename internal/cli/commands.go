// Package cli is the apikit command line: auth, users and raw requests
// against the configured API, plus a local mock server.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	jsonOutput bool
	baseURL    string
	timeout    time.Duration
)

var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var warnLabel = color.New(color.FgYellow)
var errorLabel = color.New(color.FgRed)

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "apikit [command] [flags]",
		Short: "apikit - a client for the users API",
		Long: `apikit talks to a JSON users API with bearer authentication.
Reads are cached and writes invalidate the cached users queries.

Configuration comes from APIKIT_* environment variables or a .env file.

Examples:
  # Start a local mock API
  apikit mock --addr :8080

  # Log in and list users
  apikit login --username Bret --password secret
  apikit users list --page 1 --per-page 5

  # Send any request and pick a field from the response
  apikit request GET /users/1 --field address.city`,
		PersistentPreRunE: preRunSetup,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "API base URL (overrides APIKIT_BASE_URL)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Request timeout (overrides APIKIT_TIMEOUT)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newUsersCmd())
	rootCmd.AddCommand(newRequestCmd())
	rootCmd.AddCommand(newMockCmd())
	return rootCmd
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	rootCmd := newRootCmd()
	rootCmd.SilenceErrors = true // Prevent Cobra from printing the error
	rootCmd.SilenceUsage = true  // Prevent Cobra from printing usage on error

	err := execute(rootCmd)
	if err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(os.Stdout, errorOutput(err))
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", describeError(err))
		}
		os.Exit(1)
	}
}

// execute runs cmd and releases whatever preRunSetup opened, also when the
// command failed.
func execute(cmd *cobra.Command) error {
	err := cmd.Execute()
	if cerr := closeApp(); err == nil {
		err = cerr
	}
	return err
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version number of apikit",
		Annotations: map[string]string{skipSetup: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]string{"version": getCLIVersion()})
			} else {
				cmd.Printf("apikit %s\n", getCLIVersion())
			}
		},
	}
}

// printJSON prints data as indented JSON to w
func printJSON(w io.Writer, data any) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintln(w, string(jsonData))
}

func getCLIVersion() string {
	return "v0.1.0"
}
