package providers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpop/funnelrelay/pkg/core"
)

func TestSetupCustomFields(t *testing.T) {
	created := 0
	sender := newRecordingSender(func(req Request) (Response, error) {
		if req.Method == http.MethodGet {
			return jsonResponse(200, `{"customFields":[{"id":"f1","fieldKey":"contact.loan_types"}]}`), nil
		}
		field := req.Body.(FieldDefinition)
		if field.FieldKey == "funnel_answers" {
			return jsonResponse(400, `{"message":"limit reached"}`), nil
		}
		created++
		return jsonResponse(201, `{"customField":{"id":"new-`+field.FieldKey+`"}}`), nil
	})

	results, err := testCrmContact().SetupCustomFields(context.Background(), sender)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, FieldSetupResult{Field: "Loan Types", Status: FieldStatusAlreadyExists}, results[0])
	assert.Equal(t, FieldSetupResult{Field: "Monthly Volume", Status: FieldStatusCreated, ID: "new-monthly_volume"}, results[1])
	assert.Equal(t, FieldStatusError, results[3].Status)
	assert.Equal(t, map[string]interface{}{"message": "limit reached"}, results[3].Error)
	assert.Equal(t, 3, created)

	list := sender.find(t, "/locations/loc-1/customFields")
	assert.Equal(t, http.MethodGet, list.Method)
	assert.Nil(t, list.Body)
}

func TestSetupCustomFieldsListFailure(t *testing.T) {
	sender := newRecordingSender(func(req Request) (Response, error) {
		if req.Method == http.MethodGet {
			return jsonResponse(500, `oops`), nil
		}
		if strings.Contains(req.Body.(FieldDefinition).FieldKey, "step") {
			return Response{}, errNetwork
		}
		return jsonResponse(200, `{}`), nil
	})
	results, err := testCrmContact().SetupCustomFields(context.Background(), sender)
	require.NoError(t, err)
	for _, result := range results[:4] {
		assert.Equal(t, FieldStatusCreated, result.Status)
	}
	assert.Equal(t, FieldSetupResult{Field: "Funnel Step Reached", Status: FieldStatusError, Error: errNetwork.Error()}, results[4])
}

func TestSetupCustomFieldsRequiresLocation(t *testing.T) {
	_, err := NewCrmContact(&core.CrmContactConfig{APIKey: "k"}).SetupCustomFields(context.Background(), newRecordingSender(nil))
	assert.Error(t, err)
	_, err = NewCrmContact(nil).SetupCustomFields(context.Background(), newRecordingSender(nil))
	assert.Error(t, err)
}
