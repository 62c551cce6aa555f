package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const initConfigTemplate = `server:
  port: 3001
  allowed_origins:
    - http://localhost:5173
  setup_secret: ${SETUP_SECRET}
  debug_events: false

providers:
  request_timeout_ms: 10000
  meta:
    pixel_id: ${META_PIXEL_ID}
    access_token: ${META_ACCESS_TOKEN}
    test_event_code: ${META_TEST_EVENT_CODE}
  ga4:
    measurement_id: ${GA4_MEASUREMENT_ID}
    api_secret: ${GA4_API_SECRET}
  ghl:
    api_key: ${GHL_API_KEY}
    location_id: ${GHL_LOCATION_ID}

telemetry:
  driver: ""
  topic: funnel.dispatch
`

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Create a starter config file",
		Example: "  funnelrelay init --config config.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := strings.TrimSpace(configPath)
			if err := requireNonEmpty("config path", path); err != nil {
				return err
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config already exists: %s", path)
				}
			}
			if err := checkConfigTemplate(initConfigTemplate); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(initConfigTemplate), 0o600); err != nil {
				return err
			}
			return printStdoutf("wrote config to %s\n", path)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config")
	return cmd
}

func checkConfigTemplate(template string) error {
	var payload map[string]interface{}
	if err := yaml.Unmarshal([]byte(template), &payload); err != nil {
		return fmt.Errorf("parse config template: %w", err)
	}
	for _, section := range []string{"server", "providers", "telemetry"} {
		if _, ok := payload[section]; !ok {
			return fmt.Errorf("config template missing %s section", section)
		}
	}
	return nil
}
