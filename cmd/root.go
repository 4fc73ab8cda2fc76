// Package cmd defines and implements the CLI commands for the listings-crawler
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hkpdata/listings-crawler/internal/config"
	"github.com/hkpdata/listings-crawler/internal/logging"
)

var cfgFile string

// configKey stores the loaded configuration in the command context so
// subcommands never re-read it from disk.
type configKey struct{}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listings-crawler",
		Short: "Crawls Hong Kong property listing sites into flat files.",
		Long: `listings-crawler walks the list pages of the supported Hong Kong
property portals, fetches each discovered listing, extracts structured fields
(price, area, location hierarchy, attributes), and exports the accepted
records as timestamped JSON and CSV files.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if _, err := logging.Init(cfg.Logging.Development); err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},

		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logging.L.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default searches ., $HOME/.listings-crawler, /etc/listings-crawler)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newSitesCmd())
	return cmd
}

func resolveConfig(ctx context.Context) (config.Config, error) {
	cfg, ok := ctx.Value(configKey{}).(config.Config)
	if !ok {
		return config.Config{}, errors.New("configuration not initialized")
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("command execution failed", zap.Error(err))
	}
}
