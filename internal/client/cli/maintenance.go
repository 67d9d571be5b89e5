package cli

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	var (
		listID  int64
		hydrate bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Deliver queued changes to the hub",
		Long: `Replays unsynced changes list by list in the order they were made.
Without --list every list with pending changes is synced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(cmd, opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			lists := a.pendingLists(ctx)
			if listID > 0 && !slices.Contains(lists, listID) {
				lists = append(lists, listID)
			}
			if len(lists) == 0 {
				a.io.Println("Nothing to sync.")
				return nil
			}
			if !a.network.IsOnline() {
				return fmt.Errorf("hub %s unreachable, %d list(s) still have queued changes", a.cfg.ServerURL, len(lists))
			}

			var denied []int64
			for _, id := range lists {
				report, err := a.deliver(ctx, id)
				if errors.Is(err, errAccessDenied) {
					a.io.Printf("List %d: access denied, changes stay queued\n", id)
					denied = append(denied, id)
					continue
				}
				if err != nil {
					return err
				}
				a.printReport(report)

				if hydrate {
					n, err := a.engine.Hydrate(ctx, id)
					if err != nil {
						return err
					}
					a.io.Printf("List %d: %d entities refreshed\n", id, n)
				}
			}

			if len(denied) > 0 {
				return fmt.Errorf("%w: %v", errAccessDenied, denied)
			}
			return nil
		},
	}

	cmd.Flags().Int64VarP(&listID, "list", "l", 0, "sync only this list (joins it even without pending changes)")
	cmd.Flags().BoolVar(&hydrate, "hydrate", false, "refresh the local copy from the hub afterwards")
	return cmd
}

// NewHydrateCommand creates the hydrate command.
func NewHydrateCommand(opts *RootOptions) *cobra.Command {
	var listID int64

	cmd := &cobra.Command{
		Use:   "hydrate",
		Short: "Refresh the local copy of a list from the hub snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.network.IsOnline() {
				return fmt.Errorf("hub %s unreachable", a.cfg.ServerURL)
			}

			n, err := a.engine.Hydrate(cmd.Context(), listID)
			if err != nil {
				return err
			}
			a.io.Printf("List %d: %d entities refreshed\n", listID, n)
			return nil
		},
	}

	cmd.Flags().Int64VarP(&listID, "list", "l", 0, "packing list id")
	_ = cmd.MarkFlagRequired("list")
	return cmd
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(opts *RootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete delivered changes from the local log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, store, err := openLocal(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := store.PruneSynced(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			opts.IO.Printf("Pruned %d synced change(s)\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "keep changes synced more recently than this")
	return cmd
}
