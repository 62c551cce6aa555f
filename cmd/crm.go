package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/leadpop/funnelrelay/pkg/core"
	"github.com/leadpop/funnelrelay/pkg/providers"
)

func newCrmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crm",
		Short: "Manage the GoHighLevel integration",
	}
	cmd.AddCommand(newCrmSetupFieldsCmd())
	return cmd
}

func newCrmSetupFieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup-fields",
		Short: "Create the funnel custom fields in GoHighLevel",
		Long: "Create the funnel answer custom fields on the configured GoHighLevel location. " +
			"Fields that already exist are reported and left untouched.",
		Example: "  funnelrelay crm setup-fields --config config.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := core.LoadConfigOptional(configPath)
			if err != nil {
				return err
			}
			crmCfg := cfg.Providers.ActiveCrmContact()
			if crmCfg == nil {
				return errors.New("ghl api_key and location_id are required")
			}
			sender := providers.NewHTTPSender(time.Duration(cfg.Providers.RequestTimeoutMS) * time.Millisecond)
			fields, err := providers.NewCrmContact(crmCfg).SetupCustomFields(cmd.Context(), sender)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{"ok": true, "fields": fields})
		},
	}
}
