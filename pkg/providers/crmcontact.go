package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/leadpop/funnelrelay/pkg/core"
	"github.com/leadpop/funnelrelay/pkg/enrichment"
)

// ErrContactTargetRequired is returned when neither a contact id nor an email is supplied.
var ErrContactTargetRequired = errors.New("contact_id or email is required")

const defaultStepReached = 9

// CrmContact enriches GoHighLevel contacts with quiz answers.
type CrmContact struct {
	cfg *core.CrmContactConfig
	now func() time.Time
}

// EnrichRequest identifies the contact to enrich and the answers to attach.
type EnrichRequest struct {
	ContactID string        `json:"contact_id,omitempty"`
	Email     string        `json:"email,omitempty"`
	Answers   *core.Answers `json:"answers,omitempty"`
	Step      *int          `json:"step,omitempty"`
}

// EnrichResult reports each sub-request independently. TagSet is the tag
// list that was generated for the contact.
type EnrichResult struct {
	Note    *core.Outcome `json:"note,omitempty"`
	Tags    *core.Outcome `json:"tags,omitempty"`
	Contact *core.Outcome `json:"contact,omitempty"`
	TagSet  []string      `json:"tag_set,omitempty"`
}

// CustomField is a contact custom field value.
type CustomField struct {
	Key        string `json:"key"`
	FieldValue string `json:"field_value"`
}

type upsertPayload struct {
	LocationID   string        `json:"locationId"`
	Email        string        `json:"email"`
	CustomFields []CustomField `json:"customFields"`
	Tags         []string      `json:"tags"`
}

// NewCrmContact builds the adapter. A nil config leaves it unconfigured.
func NewCrmContact(cfg *core.CrmContactConfig) *CrmContact {
	return &CrmContact{cfg: cfg, now: time.Now}
}

// Key implements Provider.
func (c *CrmContact) Key() core.ProviderKey {
	return core.ProviderCrmContact
}

// Configured implements Provider.
func (c *CrmContact) Configured() bool {
	return c != nil && c.cfg != nil && c.cfg.Configured()
}

// Applicable reports whether the event should enrich a contact: a completed
// quiz or a booking that carries answers.
func (c *CrmContact) Applicable(event core.NormalizedEvent) bool {
	if event.Answers == nil {
		return false
	}
	switch event.EventName {
	case core.EventQuizCompleted, core.EventBookingCreated:
		return true
	default:
		return false
	}
}

// Deliver implements Provider.
func (c *CrmContact) Deliver(ctx context.Context, event core.NormalizedEvent, sender Sender) (*core.Outcome, core.SkipReason) {
	if !c.Configured() {
		return nil, core.SkipNotConfigured
	}
	if !c.Applicable(event) {
		return nil, core.SkipNotApplicable
	}
	result, err := c.Enrich(ctx, EnrichRequest{
		ContactID: event.ContactID,
		Email:     event.IdentityEmail(),
		Answers:   event.Answers,
		Step:      event.Step,
	}, sender)
	if err != nil {
		return &core.Outcome{Success: false, Response: result, Error: err.Error()}, core.SkipNone
	}
	return result.Outcome(), core.SkipNone
}

// Enrich attaches a note and tags to an existing contact when ContactID is
// set and upserts a contact by email when Email is set. All sub-requests run
// concurrently. Without answers nothing is sent.
func (c *CrmContact) Enrich(ctx context.Context, req EnrichRequest, sender Sender) (EnrichResult, error) {
	req.ContactID = strings.TrimSpace(req.ContactID)
	req.Email = strings.TrimSpace(req.Email)
	var result EnrichResult
	if req.Answers != nil {
		result.TagSet = enrichment.BuildTags(req.Answers)
	}
	if req.ContactID == "" && req.Email == "" {
		return result, ErrContactTargetRequired
	}
	if !c.Configured() {
		return result, errors.New("crm contact provider is not configured")
	}
	if req.Answers == nil {
		return result, nil
	}

	var wg sync.WaitGroup
	run := func(slot **core.Outcome, r Request) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			*slot = c.call(ctx, sender, r)
		}()
	}
	if req.ContactID != "" {
		note := enrichment.BuildNote(req.Answers, req.Step, c.now())
		contactPath := "/contacts/" + url.PathEscape(req.ContactID)
		run(&result.Note, c.request(http.MethodPost, contactPath+"/notes", map[string]string{"body": note}))
		run(&result.Tags, c.request(http.MethodPost, contactPath+"/tags", map[string][]string{"tags": result.TagSet}))
	}
	if req.Email != "" {
		run(&result.Contact, c.request(http.MethodPost, "/contacts/upsert", upsertPayload{
			LocationID:   c.cfg.LocationID,
			Email:        req.Email,
			CustomFields: ContactCustomFields(req.Answers, req.Step),
			Tags:         result.TagSet,
		}))
	}
	wg.Wait()
	return result, nil
}

// Outcome folds the sub-request results into one provider outcome that
// succeeds only when every attempted sub-request succeeded.
func (r EnrichResult) Outcome() *core.Outcome {
	var failures []string
	for _, sub := range []struct {
		name    string
		outcome *core.Outcome
	}{{"note", r.Note}, {"tags", r.Tags}, {"contact", r.Contact}} {
		if sub.outcome != nil && !sub.outcome.Success {
			failures = append(failures, sub.name+": "+sub.outcome.Error)
		}
	}
	if len(failures) > 0 {
		return &core.Outcome{Success: false, Response: r, Error: strings.Join(failures, "; ")}
	}
	return core.Succeeded(r)
}

// ContactCustomFields renders the upsert custom fields. Empty values are omitted.
func ContactCustomFields(answers *core.Answers, step *int) []CustomField {
	if answers == nil {
		return nil
	}
	stepReached := defaultStepReached
	if step != nil && *step != 0 {
		stepReached = *step
	}
	encoded, err := json.Marshal(answers)
	if err != nil {
		encoded = nil
	}
	candidates := []CustomField{
		{Key: "loan_types", FieldValue: answers.LoanTypesJoined()},
		{Key: "monthly_volume", FieldValue: answers.MonthlyVolume},
		{Key: "current_source", FieldValue: answers.CurrentSource},
		{Key: "funnel_answers", FieldValue: string(encoded)},
		{Key: "funnel_step_reached", FieldValue: strconv.Itoa(stepReached)},
	}
	fields := make([]CustomField, 0, len(candidates))
	for _, field := range candidates {
		if field.FieldValue != "" {
			fields = append(fields, field)
		}
	}
	return fields
}

func (c *CrmContact) request(method, path string, body interface{}) Request {
	return Request{
		URL:     c.baseURL() + path,
		Method:  method,
		Headers: c.headers(),
		Body:    body,
	}
}

func (c *CrmContact) call(ctx context.Context, sender Sender, req Request) *core.Outcome {
	resp, err := sender.Send(ctx, req)
	if err != nil {
		return transportFailure(err)
	}
	if resp.OK() {
		return core.Succeeded(resp.Body)
	}
	return core.Failed(failureText(resp))
}

func (c *CrmContact) baseURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.cfg.BaseURL), "/")
	if base == "" {
		return core.DefaultGHLBaseURL
	}
	return base
}

func (c *CrmContact) headers() map[string]string {
	version := c.cfg.APIVersion
	if version == "" {
		version = core.DefaultGHLAPIVersion
	}
	return map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"Content-Type":  "application/json",
		"Version":       version,
	}
}
