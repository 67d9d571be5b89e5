// Package cli implements the packsync-server command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/iudanet/packsync/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DBPath     string
}

// NewRootCommand creates the root command for the hub server.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "packsync-server",
		Short:         "packsync hub: realtime fan-out for shared packing lists",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to SQLite database (overrides config)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// load reads the config file and applies global flag overrides.
func (o *RootOptions) load() (*config.ServerConfig, error) {
	cfg, err := config.LoadServerConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.DBPath != "" {
		cfg.DBPath = o.DBPath
	}
	return cfg, nil
}
