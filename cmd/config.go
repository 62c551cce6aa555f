package cmd

import (
	"github.com/spf13/cobra"

	"github.com/leadpop/funnelrelay/pkg/core"
)

type configReport struct {
	Config       string          `json:"config"`
	Port         int             `json:"port"`
	Origins      []string        `json:"allowed_origins"`
	SetupSecret  bool            `json:"setup_secret"`
	Integrations map[string]bool `json:"integrations"`
	Telemetry    []string        `json:"telemetry_drivers"`
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the relay configuration",
	}
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the config and report which providers are enabled",
		Long: "Load the config file and environment overlay the way serve does, validate the telemetry " +
			"drivers without connecting, and print the provider gate state.",
		Example: "  funnelrelay config validate --config config.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := validateConfig(configPath)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
}

func validateConfig(path string) (configReport, error) {
	cfg, err := core.LoadConfigOptional(path)
	if err != nil {
		return configReport{}, err
	}
	if err := core.ValidatePublisherConfig(cfg.Telemetry); err != nil {
		return configReport{}, err
	}
	return configReport{
		Config:       path,
		Port:         cfg.Server.Port,
		Origins:      cfg.Server.AllowedOrigins,
		SetupSecret:  cfg.Server.SetupSecret != "",
		Integrations: cfg.Providers.Integrations(),
		Telemetry:    cfg.Telemetry.ActiveDrivers(),
	}, nil
}
