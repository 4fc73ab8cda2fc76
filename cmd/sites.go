package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newSitesCmd creates the 'sites' subcommand, which lists the site profiles
// the crawler knows about after config overrides are applied.
func newSitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "Lists the configured listing sites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Context())
			if err != nil {
				return err
			}
			registry, err := buildRegistry(cfg)
			if err != nil {
				return fmt.Errorf("build site registry: %w", err)
			}
			for _, p := range registry.All() {
				mode := "static"
				if p.RequiresRender {
					mode = "rendered"
				}
				cmd.Printf("%-10s %-20s %s (%s, every %s, %d workers)\n",
					p.ID, p.Name, p.BaseURL, mode, p.RateLimit, p.MaxConcurrency)
			}
			return nil
		},
	}
}
