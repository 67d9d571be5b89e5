// Package cli implements the packsync client command line.
package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/packsync/internal/client/iocli"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	IO         iocli.IO
	ConfigPath string
	DBPath     string
	ServerURL  string
	Timeout    time.Duration
	Offline    bool
}

// NewRootCommand creates the root command for the packsync client.
func NewRootCommand(version string, console iocli.IO) *cobra.Command {
	opts := &RootOptions{IO: console}

	cmd := &cobra.Command{
		Use:   "packsync",
		Short: "Offline-first client for shared packing lists",
		Long: `packsync records every change locally first and delivers it to the hub
when the hub is reachable. Commands work offline; pending changes are
replayed in order on the next sync.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to local database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.ServerURL, "server", "", "hub URL (overrides config and session)")
	cmd.PersistentFlags().BoolVar(&opts.Offline, "offline", false, "do not contact the hub")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "how long to wait for the hub")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewHydrateCommand(opts))
	cmd.AddCommand(NewPruneCommand(opts))

	return cmd
}
