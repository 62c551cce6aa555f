package providers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// Custom field setup statuses.
const (
	FieldStatusAlreadyExists = "already_exists"
	FieldStatusCreated       = "created"
	FieldStatusError         = "error"
)

// FieldDefinition describes a contact custom field the funnel writes to.
type FieldDefinition struct {
	Name     string `json:"name"`
	DataType string `json:"dataType"`
	FieldKey string `json:"fieldKey"`
}

// FieldSetupResult reports what happened to one custom field.
type FieldSetupResult struct {
	Field  string      `json:"field"`
	Status string      `json:"status"`
	ID     string      `json:"id,omitempty"`
	Error  interface{} `json:"error,omitempty"`
}

// FunnelCustomFields are the contact fields populated by the upsert.
var FunnelCustomFields = []FieldDefinition{
	{Name: "Loan Types", DataType: "TEXT", FieldKey: "loan_types"},
	{Name: "Monthly Volume", DataType: "TEXT", FieldKey: "monthly_volume"},
	{Name: "Current Source", DataType: "TEXT", FieldKey: "current_source"},
	{Name: "Funnel Answers", DataType: "TEXT", FieldKey: "funnel_answers"},
	{Name: "Funnel Step Reached", DataType: "TEXT", FieldKey: "funnel_step_reached"},
}

type customFieldList struct {
	CustomFields []struct {
		ID       string `json:"id"`
		FieldKey string `json:"fieldKey"`
	} `json:"customFields"`
}

type customFieldCreated struct {
	CustomField struct {
		ID string `json:"id"`
	} `json:"customField"`
}

// SetupCustomFields creates each funnel custom field missing from the
// location. Fields are created one at a time and failures are reported per
// field. A failed listing is treated as an empty location.
func (c *CrmContact) SetupCustomFields(ctx context.Context, sender Sender) ([]FieldSetupResult, error) {
	if c == nil || c.cfg == nil || strings.TrimSpace(c.cfg.LocationID) == "" {
		return nil, errors.New("crm location id is not set")
	}
	path := "/locations/" + url.PathEscape(c.cfg.LocationID) + "/customFields"
	existing := c.existingFieldKeys(ctx, sender, path)

	results := make([]FieldSetupResult, 0, len(FunnelCustomFields))
	for _, field := range FunnelCustomFields {
		if existing["contact."+field.FieldKey] {
			results = append(results, FieldSetupResult{Field: field.Name, Status: FieldStatusAlreadyExists})
			continue
		}
		resp, err := sender.Send(ctx, c.request(http.MethodPost, path, field))
		if err != nil {
			results = append(results, FieldSetupResult{Field: field.Name, Status: FieldStatusError, Error: err.Error()})
			continue
		}
		if !resp.OK() {
			results = append(results, FieldSetupResult{Field: field.Name, Status: FieldStatusError, Error: resp.Body})
			continue
		}
		var created customFieldCreated
		_ = resp.Decode(&created)
		results = append(results, FieldSetupResult{Field: field.Name, Status: FieldStatusCreated, ID: created.CustomField.ID})
	}
	return results, nil
}

func (c *CrmContact) existingFieldKeys(ctx context.Context, sender Sender, path string) map[string]bool {
	keys := make(map[string]bool)
	resp, err := sender.Send(ctx, c.request(http.MethodGet, path, nil))
	if err != nil || !resp.OK() {
		return keys
	}
	var list customFieldList
	if err := resp.Decode(&list); err != nil {
		return keys
	}
	for _, field := range list.CustomFields {
		keys[field.FieldKey] = true
	}
	return keys
}
