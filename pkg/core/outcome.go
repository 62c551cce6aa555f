package core

import "time"

// ProviderKey identifies a downstream provider in a DispatchResult.
type ProviderKey string

const (
	ProviderAdConversion ProviderKey = "adConversion"
	ProviderWebAnalytics ProviderKey = "webAnalytics"
	ProviderCrmContact   ProviderKey = "crmContact"
)

// SkipReason explains why a provider produced no outcome.
type SkipReason string

const (
	SkipNone          SkipReason = ""
	SkipNotConfigured SkipReason = "not_configured"
	SkipNotApplicable SkipReason = "not_applicable"
)

// Outcome is the result of one provider delivery.
type Outcome struct {
	Success  bool        `json:"success"`
	Response interface{} `json:"response,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Succeeded builds a success outcome carrying the provider response.
func Succeeded(response interface{}) *Outcome {
	return &Outcome{Success: true, Response: response}
}

// Failed builds a failure outcome carrying diagnostic text.
func Failed(message string) *Outcome {
	return &Outcome{Success: false, Error: message}
}

// DispatchResult maps each registered provider to its outcome. A nil outcome
// means the provider was not configured or the event did not apply to it.
type DispatchResult map[ProviderKey]*Outcome

// Dispatch record statuses.
const (
	RecordStatusDelivered     = "delivered"
	RecordStatusFailed        = "failed"
	RecordStatusNotConfigured = "not_configured"
	RecordStatusNotApplicable = "not_applicable"
)

// ProviderRecord is the telemetry view of a single provider outcome.
type ProviderRecord struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// DispatchRecord summarises one dispatch for the outcome publisher. It never
// carries identity fields or answers.
type DispatchRecord struct {
	ID         string                         `json:"id"`
	RequestID  string                         `json:"request_id,omitempty"`
	EventName  EventName                      `json:"event_name"`
	EventID    string                         `json:"event_id,omitempty"`
	SessionID  string                         `json:"session_id,omitempty"`
	Step       *int                           `json:"step,omitempty"`
	OccurredAt time.Time                      `json:"occurred_at"`
	Providers  map[ProviderKey]ProviderRecord `json:"providers"`
}

// RecordFor derives the telemetry status from an outcome and skip reason.
func RecordFor(outcome *Outcome, skip SkipReason) ProviderRecord {
	switch {
	case skip == SkipNotConfigured:
		return ProviderRecord{Status: RecordStatusNotConfigured}
	case skip == SkipNotApplicable || outcome == nil:
		return ProviderRecord{Status: RecordStatusNotApplicable}
	case outcome.Success:
		return ProviderRecord{Status: RecordStatusDelivered}
	default:
		return ProviderRecord{Status: RecordStatusFailed, Error: outcome.Error}
	}
}
