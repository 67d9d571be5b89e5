package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iudanet/packsync/internal/server/storage"
	"github.com/iudanet/packsync/internal/server/storage/sqlite"
)

// NewListCommand creates the list administration commands.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Manage packing lists and their members",
	}

	cmd.AddCommand(newListCreateCommand(rootOpts))
	cmd.AddCommand(newListGrantCommand(rootOpts))
	cmd.AddCommand(newListMembersCommand(rootOpts))
	return cmd
}

func newListCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		name    string
		ownerID int64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a list owned by a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd.Context(), rootOpts, func(s *sqlite.Storage) error {
				list, err := s.CreateList(cmd.Context(), name, ownerID)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created list %d %q (owner %d)\n", list.ID, list.Name, list.OwnerID)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "list name")
	cmd.Flags().Int64Var(&ownerID, "owner", 0, "owner user id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newListGrantCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		listID int64
		userID int64
		role   string
	)

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Give a user access to a list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd.Context(), rootOpts, func(s *sqlite.Storage) error {
				err := s.AddMember(cmd.Context(), listID, userID, role)
				switch {
				case errors.Is(err, storage.ErrMemberExists):
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "User %d already has access to list %d\n", userID, listID)
					return err
				case err != nil:
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Granted %s access to list %d for user %d\n", role, listID, userID)
				return err
			})
		},
	}

	cmd.Flags().Int64Var(&listID, "list", 0, "list id")
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&role, "role", "editor", "member role")
	_ = cmd.MarkFlagRequired("list")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newListMembersCommand(rootOpts *RootOptions) *cobra.Command {
	var listID int64

	cmd := &cobra.Command{
		Use:   "members",
		Short: "Show who can access a list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd.Context(), rootOpts, func(s *sqlite.Storage) error {
				members, err := s.ListMembers(cmd.Context(), listID)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "USER\tROLE")
				for _, m := range members {
					_, _ = fmt.Fprintf(w, "%d\t%s\n", m.UserID, m.Role)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().Int64Var(&listID, "list", 0, "list id")
	_ = cmd.MarkFlagRequired("list")
	return cmd
}

func withStorage(ctx context.Context, rootOpts *RootOptions, fn func(s *sqlite.Storage) error) error {
	cfg, err := rootOpts.load()
	if err != nil {
		return err
	}
	s, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = s.Close() }()
	return fn(s)
}
