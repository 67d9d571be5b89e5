package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	hubapi "github.com/iudanet/packsync/internal/client/api"
	"github.com/iudanet/packsync/internal/client/auth"
	"github.com/iudanet/packsync/internal/client/storage"
)

// EnvToken задает токен для login без интерактивного ввода
const EnvToken = "PACKSYNC_TOKEN"

// NewLoginCommand creates the login command.
func NewLoginCommand(opts *RootOptions) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save an access token issued by the hub operator",
		Long: `Saves the access token for the hub. The token is read from --token,
then from the PACKSYNC_TOKEN environment variable, then interactively.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, logger, store, err := openLocal(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if opts.ServerURL != "" {
				cfg.ServerURL = opts.ServerURL
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if token == "" {
				token = os.Getenv(EnvToken)
			}
			if token == "" {
				token, err = opts.IO.ReadSecret("Access token: ")
				if err != nil {
					return fmt.Errorf("failed to read token: %w", err)
				}
			}

			data, err := auth.NewSession(store).Login(ctx, cfg.ServerURL, token)
			if err != nil {
				return err
			}

			if !opts.Offline {
				if err := hubapi.NewClient(cfg.ServerURL).Health(ctx); err != nil {
					logger.Warn("Hub unreachable, session saved anyway", "server", cfg.ServerURL, "error", err)
				}
			}

			opts.IO.Printf("Logged in as user %d on %s\n", data.UserID, data.ServerURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "access token (prefer PACKSYNC_TOKEN or the prompt)")
	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session; local changes are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, store, err := openLocal(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := auth.NewSession(store).Logout(cmd.Context()); err != nil {
				return err
			}

			if n := store.CountPending(cmd.Context(), storage.AllLists); n > 0 {
				opts.IO.Printf("Logged out. %d unsynced change(s) stay queued.\n", n)
				return nil
			}
			opts.IO.Println("Logged out.")
			return nil
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session, connectivity and pending changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			a.io.Printf("Server:      %s\n", a.cfg.ServerURL)

			expiresAt, err := a.session.ExpiresAt(ctx)
			switch {
			case errors.Is(err, auth.ErrNotAuthenticated):
				a.io.Println("Session:     not logged in")
			case errors.Is(err, auth.ErrTokenExpired):
				a.io.Printf("Session:     token expired at %s\n", expiresAt.Format(time.RFC3339))
			case err != nil:
				a.io.Printf("Session:     invalid (%v)\n", err)
			case expiresAt.IsZero():
				a.io.Printf("Session:     user %d\n", a.auth.UserID)
			default:
				a.io.Printf("Session:     user %d, token expires %s\n", a.auth.UserID, expiresAt.Format(time.RFC3339))
			}

			hub := "offline"
			if a.network.IsOnline() {
				hub = "online"
			}
			a.io.Printf("Hub:         %s\n", hub)

			if a.store.Degraded() {
				a.io.Printf("Local store: in memory (%s unavailable)\n", a.cfg.DBPath)
			} else {
				a.io.Printf("Local store: %s\n", a.cfg.DBPath)
			}

			a.io.Printf("Pending:     %d change(s)\n", a.engine.PendingCount(ctx, storage.AllLists))
			for _, listID := range a.pendingLists(ctx) {
				a.io.Printf("  list %d:   %d\n", listID, a.engine.PendingCount(ctx, listID))
			}

			if last := a.engine.LastSyncTime(); last.IsZero() {
				a.io.Println("Last sync:   never")
			} else {
				a.io.Printf("Last sync:   %s\n", last.Format(time.RFC3339))
			}
			return nil
		},
	}
}
