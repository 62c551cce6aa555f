package dispatch

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpop/funnelrelay/pkg/core"
	"github.com/leadpop/funnelrelay/pkg/providers"
)

type scenarioSender struct {
	mu       sync.Mutex
	requests map[string]providers.Request
}

func (s *scenarioSender) Send(_ context.Context, req providers.Request) (providers.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	host := strings.SplitN(strings.TrimPrefix(req.URL, "https://"), "/", 2)[0]
	s.requests[host] = req
	raw := []byte(`{"events_received":1}`)
	if host == "ga.test" {
		return providers.Response{Status: 204}, nil
	}
	var body interface{}
	_ = json.Unmarshal(raw, &body)
	return providers.Response{Status: 200, Body: body, Raw: raw}, nil
}

func scenarioConfig() core.ProvidersConfig {
	return core.ProvidersConfig{
		Meta: core.AdConversionConfig{PixelID: "px", AccessToken: "tok", BaseURL: "https://meta.test", APIVersion: "v21.0"},
		GA4:  core.WebAnalyticsConfig{MeasurementID: "G-1", APISecret: "sec", Endpoint: "https://ga.test/mp/collect"},
		GHL:  core.CrmContactConfig{APIKey: "key", LocationID: "loc", BaseURL: "https://ghl.test"},
	}
}

func encode(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestCompletedQuizScenario(t *testing.T) {
	sender := &scenarioSender{requests: map[string]providers.Request{}}
	d := New(providers.DefaultRegistry(scenarioConfig()), sender, WithLogger(nopLogger{}))

	result, err := d.Dispatch(context.Background(), core.NormalizedEvent{
		EventName: core.EventQuizCompleted,
		Step:      core.IntPtr(9),
		Answers:   &core.Answers{LoanTypes: []string{"MCA"}, MonthlyVolume: "500+", CurrentSource: "Referral"},
	})
	require.NoError(t, err)
	require.Len(t, result, 3)
	for _, key := range allKeys {
		require.NotNil(t, result[key], key)
	}
	assert.True(t, result[core.ProviderAdConversion].Success)
	assert.True(t, result[core.ProviderWebAnalytics].Success)

	meta := encode(t, sender.requests["meta.test"].Body)
	custom := meta["data"].([]interface{})[0].(map[string]interface{})["custom_data"].(map[string]interface{})
	assert.Equal(t, float64(1), custom["value"])
	assert.Equal(t, "USD", custom["currency"])

	ga := encode(t, sender.requests["ga.test"].Body)
	assert.Equal(t, "generate_lead", ga["events"].([]interface{})[0].(map[string]interface{})["name"])

	crm := result[core.ProviderCrmContact].Response.(providers.EnrichResult)
	assert.Contains(t, crm.TagSet, "high-volume")
	assert.Contains(t, crm.TagSet, "mca")
}

func TestCompletedQuizScenarioWithEmail(t *testing.T) {
	sender := &scenarioSender{requests: map[string]providers.Request{}}
	d := New(providers.DefaultRegistry(scenarioConfig()), sender, WithLogger(nopLogger{}))

	result, err := d.Dispatch(context.Background(), core.NormalizedEvent{
		EventName: core.EventQuizCompleted,
		Step:      core.IntPtr(9),
		Email:     "lead@example.com",
		Answers:   &core.Answers{LoanTypes: []string{"MCA"}, MonthlyVolume: "500+", CurrentSource: "Referral"},
	})
	require.NoError(t, err)
	crm := result[core.ProviderCrmContact]
	require.NotNil(t, crm)
	assert.True(t, crm.Success)
	upsert := encode(t, sender.requests["ghl.test"].Body)
	assert.Equal(t, []interface{}{"funnel-source", "high-volume", "mca"}, upsert["tags"])

	meta := encode(t, sender.requests["meta.test"].Body)
	userData := meta["data"].([]interface{})[0].(map[string]interface{})["user_data"].(map[string]interface{})
	assert.Len(t, userData["em"], 1)
	assert.NotEqual(t, "lead@example.com", userData["em"].([]interface{})[0])
}

func TestUnconfiguredProvidersAreNull(t *testing.T) {
	sender := &scenarioSender{requests: map[string]providers.Request{}}
	cfg := scenarioConfig()
	cfg.GHL = core.CrmContactConfig{}
	cfg.Meta.AccessToken = ""
	d := New(providers.DefaultRegistry(cfg), sender, WithLogger(nopLogger{}))

	result, err := d.Dispatch(context.Background(), core.NormalizedEvent{EventName: core.EventCalendarView})
	require.NoError(t, err)
	assert.Nil(t, result[core.ProviderAdConversion])
	assert.Nil(t, result[core.ProviderCrmContact])
	assert.True(t, result[core.ProviderWebAnalytics].Success)
	assert.Len(t, sender.requests, 1)
}
