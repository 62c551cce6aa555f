package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leadpop/funnelrelay/pkg/providers"
)

type sendOptions struct {
	event   string
	step    int
	session string
	email   string
	file    string
	timeout time.Duration
}

func newSendCmd() *cobra.Command {
	opts := sendOptions{timeout: 15 * time.Second}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Post a test event to a running relay",
		Long: "Build a funnel event from flags (optionally starting from a YAML/JSON event file) and post it " +
			"to /api/track on the relay endpoint, printing the per-provider results.",
		Example: "  funnelrelay --endpoint http://localhost:3001 send --event quiz_started --step 1\n" +
			"  funnelrelay send --file quiz_completed.yaml --email lead@example.com",
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := buildSendPayload(opts)
			if err != nil {
				return err
			}
			resp, err := postTrack(cmd.Context(), apiBaseURL, body, opts.timeout)
			if err != nil {
				return err
			}
			if resp.Body == nil {
				return printStdoutf("status %d\n", resp.Status)
			}
			if err := printJSON(resp.Body); err != nil {
				return err
			}
			if !resp.OK() {
				return fmt.Errorf("relay returned status %d", resp.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.event, "event", "", "Event name (page_view|quiz_started|quiz_answer|quiz_completed|calendar_view|booking_created|quiz_rejected)")
	cmd.Flags().IntVar(&opts.step, "step", 0, "Funnel step 1-9 (optional)")
	cmd.Flags().StringVar(&opts.session, "session", "", "Session ID (default random)")
	cmd.Flags().StringVar(&opts.email, "email", "", "Identity email (optional)")
	cmd.Flags().StringVar(&opts.file, "file", "", "YAML/JSON event file used as the base payload")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", opts.timeout, "Request timeout")
	return cmd
}

func buildSendPayload(opts sendOptions) (map[string]interface{}, error) {
	payload := map[string]interface{}{}
	if strings.TrimSpace(opts.file) != "" {
		loaded, err := loadEventPayload(opts.file)
		if err != nil {
			return nil, err
		}
		payload = loaded
	}
	if event := strings.TrimSpace(opts.event); event != "" {
		payload["event_name"] = event
	}
	name, _ := payload["event_name"].(string)
	if err := requireNonEmpty("event", name); err != nil {
		return nil, err
	}
	if opts.step != 0 {
		payload["step"] = opts.step
	}
	if session := strings.TrimSpace(opts.session); session != "" {
		payload["session_id"] = session
	} else if _, ok := payload["session_id"]; !ok {
		payload["session_id"] = uuid.NewString()
	}
	if email := strings.TrimSpace(opts.email); email != "" {
		payload["email"] = email
	}
	return payload, nil
}

func postTrack(ctx context.Context, endpoint string, body map[string]interface{}, timeout time.Duration) (providers.Response, error) {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if err := requireNonEmpty("endpoint", base); err != nil {
		return providers.Response{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sender := providers.NewHTTPSender(timeout)
	return sender.Send(ctx, providers.Request{
		URL:     base + "/api/track",
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	})
}
