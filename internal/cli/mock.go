package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/samhoque/apikit/internal/mockapi"
)

func newMockCmd() *cobra.Command {
	var (
		addr   string
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve the in-memory users API",
		Long: `Serve an in-memory users API for local development. Point apikit at it
with --base-url or APIKIT_BASE_URL. Any password logs in a seeded user.

Example:
  apikit mock --addr :8080
  APIKIT_BASE_URL=http://localhost:8080 apikit users list`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := []mockapi.Option{mockapi.WithLogger(log.Logger), mockapi.WithTokenTTL(ttl)}
			if secret != "" {
				opts = append(opts, mockapi.WithSecret([]byte(secret)))
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           mockapi.New(opts...),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()
			okLabel.Fprintf(cmd.OutOrStdout(), "✓ Mock API listening on %s\n", addr)

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("mock server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("mock server shutdown: %w", err)
			}
			log.Info().Msg("mock server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&secret, "secret", "", "Token signing secret (random when empty)")
	cmd.Flags().DurationVar(&ttl, "token-ttl", mockapi.DefaultTokenTTL, "Token lifetime")
	return cmd
}
