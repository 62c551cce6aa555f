package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/leadpop/funnelrelay/pkg/core"
	"github.com/leadpop/funnelrelay/pkg/pii"
)

const adConversionActionSource = "website"

// AdConversion reports funnel events to the Meta Conversions API.
type AdConversion struct {
	cfg *core.AdConversionConfig
	now func() time.Time
}

// AdConversionPayload is the outer Conversions API request body.
type AdConversionPayload struct {
	Data          []AdConversionEvent `json:"data"`
	TestEventCode string              `json:"test_event_code,omitempty"`
}

// AdConversionEvent is one server event.
type AdConversionEvent struct {
	EventName      string                 `json:"event_name"`
	EventTime      int64                  `json:"event_time"`
	ActionSource   string                 `json:"action_source"`
	EventSourceURL string                 `json:"event_source_url,omitempty"`
	EventID        string                 `json:"event_id,omitempty"`
	UserData       AdConversionUserData   `json:"user_data"`
	CustomData     AdConversionCustomData `json:"custom_data"`
}

// AdConversionUserData carries click ids, client context and hashed identity.
type AdConversionUserData struct {
	FBP             string   `json:"fbp,omitempty"`
	FBC             string   `json:"fbc,omitempty"`
	ClientIPAddress string   `json:"client_ip_address,omitempty"`
	ClientUserAgent string   `json:"client_user_agent,omitempty"`
	Email           []string `json:"em,omitempty"`
	Phone           []string `json:"ph,omitempty"`
	FirstName       []string `json:"fn,omitempty"`
	LastName        []string `json:"ln,omitempty"`
}

// AdConversionCustomData carries funnel context. Answer fields are pointers so
// an answered-but-empty field is still sent.
type AdConversionCustomData struct {
	LoanTypes     *string `json:"loan_types,omitempty"`
	MonthlyVolume *string `json:"monthly_volume,omitempty"`
	CurrentSource *string `json:"current_source,omitempty"`
	FunnelStep    *int    `json:"funnel_step,omitempty"`
	Value         int     `json:"value,omitempty"`
	Currency      string  `json:"currency,omitempty"`
}

// NewAdConversion builds the adapter. A nil config leaves it unconfigured.
func NewAdConversion(cfg *core.AdConversionConfig) *AdConversion {
	return &AdConversion{cfg: cfg, now: time.Now}
}

// Key implements Provider.
func (a *AdConversion) Key() core.ProviderKey {
	return core.ProviderAdConversion
}

// Configured implements Provider.
func (a *AdConversion) Configured() bool {
	return a != nil && a.cfg != nil && a.cfg.Configured()
}

// AdConversionEventName maps a funnel event onto the Conversions API
// vocabulary. Unknown events have no mapping.
func AdConversionEventName(name core.EventName) (string, bool) {
	switch name {
	case core.EventPageView, core.EventQuizRejected:
		return "ViewContent", true
	case core.EventQuizStarted:
		return "InitiateCheckout", true
	case core.EventQuizAnswer:
		return "CustomizeProduct", true
	case core.EventQuizCompleted:
		return "Lead", true
	case core.EventCalendarView:
		return "Contact", true
	case core.EventBookingCreated:
		return "Purchase", true
	default:
		return "", false
	}
}

// BuildRequest maps event to a Conversions API request.
func (a *AdConversion) BuildRequest(event core.NormalizedEvent) (*Request, core.SkipReason) {
	if !a.Configured() {
		return nil, core.SkipNotConfigured
	}
	targetName, ok := AdConversionEventName(event.EventName)
	if !ok {
		return nil, core.SkipNotApplicable
	}

	serverEvent := AdConversionEvent{
		EventName:      targetName,
		EventTime:      a.now().Unix(),
		ActionSource:   adConversionActionSource,
		EventSourceURL: event.SourceURL,
		EventID:        event.EventID,
		UserData:       adConversionUserData(event),
	}
	if event.Answers != nil {
		loanTypes := event.Answers.LoanTypesJoined()
		volume := event.Answers.MonthlyVolume
		source := event.Answers.CurrentSource
		serverEvent.CustomData.LoanTypes = &loanTypes
		serverEvent.CustomData.MonthlyVolume = &volume
		serverEvent.CustomData.CurrentSource = &source
	}
	if event.Step != nil {
		step := *event.Step
		serverEvent.CustomData.FunnelStep = &step
	}
	if event.EventName == core.EventQuizCompleted {
		serverEvent.CustomData.Value = 1
		serverEvent.CustomData.Currency = "USD"
	}

	return &Request{
		URL:     a.endpoint(),
		Method:  http.MethodPost,
		Headers: jsonHeaders(),
		Body: AdConversionPayload{
			Data:          []AdConversionEvent{serverEvent},
			TestEventCode: strings.TrimSpace(a.cfg.TestEventCode),
		},
	}, core.SkipNone
}

func adConversionUserData(event core.NormalizedEvent) AdConversionUserData {
	data := AdConversionUserData{
		FBP:             event.FBP,
		FBC:             event.FBC,
		ClientIPAddress: event.ClientIP,
		ClientUserAgent: event.ClientUserAgent,
	}
	if event.Identity != nil {
		data.Email = pii.HashAll(event.Identity.Email)
		data.Phone = pii.HashAll(event.Identity.Phone)
		data.FirstName = pii.HashAll(event.Identity.FirstName)
		data.LastName = pii.HashAll(event.Identity.LastName)
	}
	return data
}

func (a *AdConversion) endpoint() string {
	base := strings.TrimRight(a.cfg.BaseURL, "/")
	if base == "" {
		base = core.DefaultMetaBaseURL
	}
	version := a.cfg.APIVersion
	if version == "" {
		version = core.DefaultMetaAPIVersion
	}
	return fmt.Sprintf("%s/%s/%s/events?access_token=%s",
		base, version, url.PathEscape(a.cfg.PixelID), url.QueryEscape(a.cfg.AccessToken))
}

// InterpretResponse treats any 2xx as delivered. Other statuses fail with the
// raw reply as diagnostic text.
func (a *AdConversion) InterpretResponse(resp Response) *core.Outcome {
	if resp.OK() {
		return core.Succeeded(resp.Body)
	}
	return core.Failed(failureText(resp))
}

// Deliver implements Provider.
func (a *AdConversion) Deliver(ctx context.Context, event core.NormalizedEvent, sender Sender) (*core.Outcome, core.SkipReason) {
	req, skip := a.BuildRequest(event)
	if req == nil {
		return nil, skip
	}
	resp, err := sender.Send(ctx, *req)
	if err != nil {
		return transportFailure(err), core.SkipNone
	}
	return a.InterpretResponse(resp), core.SkipNone
}

func failureText(resp Response) string {
	if text := strings.TrimSpace(resp.Text()); text != "" {
		return text
	}
	return fmt.Sprintf("unexpected status %d", resp.Status)
}
