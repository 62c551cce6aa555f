package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leadpop/funnelrelay/pkg/core"
	"github.com/leadpop/funnelrelay/pkg/telemetry"
)

func newOutcomesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "Inspect published dispatch outcomes",
	}
	cmd.AddCommand(newOutcomesTailCmd())
	return cmd
}

func newOutcomesTailCmd() *cobra.Command {
	var driver string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Stream dispatch records from the telemetry broker",
		Long: "Subscribe to the telemetry topic on the configured broker and print every dispatch record " +
			"as JSON until interrupted.",
		Example: "  funnelrelay outcomes tail --config config.yaml\n" +
			"  funnelrelay outcomes tail --driver kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := core.LoadConfigOptional(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sub, err := telemetry.BuildSubscriber(ctx, cfg.Telemetry, driver)
			if err != nil {
				return err
			}
			defer sub.Close()
			return telemetry.Tail(ctx, sub, cfg.Telemetry.Topic, func(_ context.Context, record core.DispatchRecord) error {
				return printJSON(record)
			}, core.NewLogger("outcomes"))
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "", "Telemetry driver to read from (amqp|kafka|nats|sql)")
	return cmd
}
