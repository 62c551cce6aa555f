package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/leadpop/funnelrelay/pkg/core"
)

const (
	anonymousClientID  = "anonymous"
	engagementTimeMsec = "1"
)

// WebAnalytics reports funnel events to the GA4 Measurement Protocol. It
// never receives identity fields.
type WebAnalytics struct {
	cfg *core.WebAnalyticsConfig
}

// WebAnalyticsPayload is the Measurement Protocol request body.
type WebAnalyticsPayload struct {
	ClientID           string              `json:"client_id"`
	UserID             string              `json:"user_id,omitempty"`
	NonPersonalizedAds bool                `json:"non_personalized_ads"`
	Events             []WebAnalyticsEvent `json:"events"`
}

// WebAnalyticsEvent is one Measurement Protocol event.
type WebAnalyticsEvent struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params"`
}

// NewWebAnalytics builds the adapter. A nil config leaves it unconfigured.
func NewWebAnalytics(cfg *core.WebAnalyticsConfig) *WebAnalytics {
	return &WebAnalytics{cfg: cfg}
}

// Key implements Provider.
func (w *WebAnalytics) Key() core.ProviderKey {
	return core.ProviderWebAnalytics
}

// Configured implements Provider.
func (w *WebAnalytics) Configured() bool {
	return w != nil && w.cfg != nil && w.cfg.Configured()
}

// WebAnalyticsEventName maps a funnel event onto the GA4 vocabulary. Unknown
// names pass through unchanged.
func WebAnalyticsEventName(name core.EventName) string {
	switch name {
	case core.EventPageView:
		return "page_view"
	case core.EventQuizStarted:
		return "begin_checkout"
	case core.EventQuizAnswer:
		return "quiz_answer"
	case core.EventQuizCompleted:
		return "generate_lead"
	case core.EventCalendarView:
		return "calendar_view"
	case core.EventBookingCreated:
		return "purchase"
	case core.EventQuizRejected:
		return "quiz_disqualified"
	default:
		return string(name)
	}
}

// ClientID picks the analytics client id, then the session id, then "anonymous".
func ClientID(event core.NormalizedEvent) string {
	switch {
	case event.GAClientID != "":
		return event.GAClientID
	case event.SessionID != "":
		return event.SessionID
	default:
		return anonymousClientID
	}
}

// BuildRequest maps event to a Measurement Protocol request.
func (w *WebAnalytics) BuildRequest(event core.NormalizedEvent) (*Request, core.SkipReason) {
	if !w.Configured() {
		return nil, core.SkipNotConfigured
	}
	name := WebAnalyticsEventName(event.EventName)
	if name == "" {
		return nil, core.SkipNotApplicable
	}

	params := map[string]interface{}{
		"engagement_time_msec": engagementTimeMsec,
	}
	if event.Step != nil {
		params["funnel_step"] = *event.Step
	}
	if answers := event.Answers; answers != nil {
		if joined := answers.LoanTypesJoined(); joined != "" {
			params["loan_types"] = joined
		}
		if answers.MonthlyVolume != "" {
			params["monthly_volume"] = answers.MonthlyVolume
		}
		if answers.CurrentSource != "" {
			params["current_source"] = answers.CurrentSource
		}
	}
	if event.Question != "" {
		params["question"] = event.Question
	}
	if event.AnswerValue != "" {
		params["answer_value"] = event.AnswerValue
	}

	return &Request{
		URL:     w.endpoint(),
		Method:  http.MethodPost,
		Headers: jsonHeaders(),
		Body: WebAnalyticsPayload{
			ClientID:           ClientID(event),
			UserID:             event.UserID,
			NonPersonalizedAds: false,
			Events:             []WebAnalyticsEvent{{Name: name, Params: params}},
		},
	}, core.SkipNone
}

func (w *WebAnalytics) endpoint() string {
	endpoint := strings.TrimSpace(w.cfg.Endpoint)
	if endpoint == "" {
		endpoint = core.DefaultGA4Endpoint
	}
	query := url.Values{}
	query.Set("measurement_id", w.cfg.MeasurementID)
	query.Set("api_secret", w.cfg.APISecret)
	return endpoint + "?" + query.Encode()
}

// InterpretResponse treats 204 and any other 2xx as delivered.
func (w *WebAnalytics) InterpretResponse(resp Response) *core.Outcome {
	if resp.Status == http.StatusNoContent || resp.OK() {
		return core.Succeeded(map[string]interface{}{"status": resp.Status})
	}
	return core.Failed(failureText(resp))
}

// Deliver implements Provider.
func (w *WebAnalytics) Deliver(ctx context.Context, event core.NormalizedEvent, sender Sender) (*core.Outcome, core.SkipReason) {
	req, skip := w.BuildRequest(event)
	if req == nil {
		return nil, skip
	}
	resp, err := sender.Send(ctx, *req)
	if err != nil {
		return transportFailure(err), core.SkipNone
	}
	return w.InterpretResponse(resp), core.SkipNone
}
