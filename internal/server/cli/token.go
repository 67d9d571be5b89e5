package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/packsync/internal/config"
	"github.com/iudanet/packsync/internal/server/jwt"
)

// NewTokenCommand creates the token command. Аутентификация пользователей вне
// hub: оператор выпускает токен и передает его клиенту для login.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		userID int64
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			if len(cfg.JWTSecret) < 16 {
				return fmt.Errorf("jwt secret is not configured (set %s)", config.EnvJWTSecret)
			}
			if userID <= 0 {
				return errors.New("--user must be a positive id")
			}
			if ttl <= 0 {
				ttl = cfg.TokenTTL
			}

			token, expiresAt, err := jwt.NewService(cfg.JWTSecret, ttl).GenerateAccessToken(userID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", token)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
			return err
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to config token_ttl)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
