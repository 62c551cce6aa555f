package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	if err := (NormalizedEvent{}).Validate(); !errors.Is(err, ErrMissingEventName) {
		t.Fatalf("expected missing event name, got %v", err)
	}
	if err := (NormalizedEvent{EventName: "   "}).Validate(); !errors.Is(err, ErrMissingEventName) {
		t.Fatalf("expected blank event name rejected, got %v", err)
	}
	if err := (NormalizedEvent{EventName: EventQuizAnswer, Step: IntPtr(10)}).Validate(); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("expected invalid step, got %v", err)
	}
	if err := (NormalizedEvent{EventName: "custom_event"}).Validate(); err != nil {
		t.Fatalf("expected unknown names to pass validation, got %v", err)
	}
	if err := (NormalizedEvent{EventName: EventQuizCompleted, Step: IntPtr(9)}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEventNameKnown(t *testing.T) {
	for _, name := range EventNames {
		if !name.Known() {
			t.Fatalf("expected %s to be known", name)
		}
	}
	if EventName("scroll").Known() {
		t.Fatalf("expected scroll to be unknown")
	}
}

func TestNormalizeFoldsFlatIdentity(t *testing.T) {
	var event NormalizedEvent
	raw := `{"event_name":" quiz_completed ","step":9,"session_id":" abc ","email":" Jane@Example.com ","first_name":"Jane",` +
		`"identity":{"phone":"555"},"answers":{"loanTypes":["MCA"],"monthlyVolume":"500+"}}`
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		t.Fatalf("decode: %v", err)
	}

	normalized := event.Normalize()
	if normalized.EventName != EventQuizCompleted || normalized.SessionID != "abc" {
		t.Fatalf("expected trimmed fields, got %+v", normalized)
	}
	if normalized.Identity == nil || normalized.Identity.Email != "Jane@Example.com" ||
		normalized.Identity.Phone != "555" || normalized.Identity.FirstName != "Jane" {
		t.Fatalf("unexpected identity: %+v", normalized.Identity)
	}
	if normalized.Email != "" || normalized.FirstName != "" {
		t.Fatalf("expected flat identity cleared")
	}

	normalized.Answers.LoanTypes[0] = "SBA"
	*normalized.Step = 1
	if event.Answers.LoanTypes[0] != "MCA" || *event.Step != 9 {
		t.Fatalf("expected normalized event to share no state with the input")
	}
}

func TestNormalizeWithoutIdentity(t *testing.T) {
	normalized := NormalizedEvent{EventName: EventPageView, Identity: &Identity{}}.Normalize()
	if normalized.Identity != nil {
		t.Fatalf("expected empty identity dropped, got %+v", normalized.Identity)
	}
	if normalized.IdentityEmail() != "" {
		t.Fatalf("expected no email")
	}
}

func TestSessionPrefix(t *testing.T) {
	if got := (NormalizedEvent{SessionID: "0123456789"}).SessionPrefix(); got != "01234567" {
		t.Fatalf("unexpected prefix %q", got)
	}
	if got := (NormalizedEvent{SessionID: "abc"}).SessionPrefix(); got != "abc" {
		t.Fatalf("unexpected prefix %q", got)
	}
}

func TestDispatchResultJSON(t *testing.T) {
	result := DispatchResult{
		ProviderAdConversion: Succeeded(map[string]interface{}{"events_received": 1}),
		ProviderWebAnalytics: Failed("bad request"),
		ProviderCrmContact:   nil,
	}
	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(decoded["crmContact"]) != "null" {
		t.Fatalf("expected null crm entry, got %s", decoded["crmContact"])
	}
	if string(decoded["webAnalytics"]) != `{"success":false,"error":"bad request"}` {
		t.Fatalf("unexpected failure entry: %s", decoded["webAnalytics"])
	}
	if string(decoded["adConversion"]) != `{"success":true,"response":{"events_received":1}}` {
		t.Fatalf("unexpected success entry: %s", decoded["adConversion"])
	}
}

func TestLoanTypesJoined(t *testing.T) {
	var nilAnswers *Answers
	if nilAnswers.LoanTypesJoined() != "" {
		t.Fatalf("expected empty join for nil answers")
	}
	answers := &Answers{LoanTypes: []string{"MCA", "SBA Loan"}}
	if got := answers.LoanTypesJoined(); got != "MCA, SBA Loan" {
		t.Fatalf("unexpected join %q", got)
	}
}
