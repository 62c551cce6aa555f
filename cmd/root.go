package cmd

import "github.com/spf13/cobra"

// NewRootCmd returns the Cobra entrypoint for the CLI/server.
func NewRootCmd() *cobra.Command {
	apiBaseURL = "http://localhost:3001"
	configPath = "config.yaml"
	root := &cobra.Command{
		Use:   "funnelrelay",
		Short: "Funnel event relay for ad, analytics and CRM providers",
		Long: "funnelrelay accepts funnel events from the browser and relays them to the Meta Conversions API, " +
			"GA4 Measurement Protocol and GoHighLevel, reporting a per-provider outcome for every event.",
		Example: "  funnelrelay serve --config config.yaml\n" +
			"  funnelrelay --endpoint http://localhost:3001 send --event quiz_started --step 1\n" +
			"  funnelrelay crm setup-fields --config config.yaml",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&apiBaseURL, "endpoint", apiBaseURL, "Relay server base URL")
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "Path to config file")
	root.AddCommand(newServeCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newSendCmd())
	root.AddCommand(newCrmCmd())
	root.AddCommand(newOutcomesCmd())
	return root
}

var apiBaseURL string
var configPath string
