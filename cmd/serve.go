package cmd

import (
	"github.com/spf13/cobra"

	"github.com/leadpop/funnelrelay/pkg/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay server",
		Long: "Run the relay server that accepts funnel events on /api/track, fans them out to every " +
			"configured provider, and enriches CRM contacts from booking webhooks.",
		Example: "  funnelrelay serve --config config.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return server.RunConfig(configPath)
		},
	}
	return cmd
}
