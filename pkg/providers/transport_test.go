package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSenderRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "v1", r.Header.Get("Version"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"echo":"` + body["name"] + `"}`))
	}))
	defer server.Close()

	sender := NewHTTPSender(time.Second)
	resp, err := sender.Send(context.Background(), Request{
		URL:     server.URL,
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Type": "application/json", "Version": "v1"},
		Body:    map[string]string{"name": "funnel"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.True(t, resp.OK())
	assert.Equal(t, map[string]interface{}{"echo": "funnel"}, resp.Body)
}

func TestHTTPSenderTextBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid measurement id"))
	}))
	defer server.Close()

	resp, err := NewHTTPSender(0).Send(context.Background(), Request{URL: server.URL, Method: http.MethodGet})
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, "invalid measurement id", resp.Body)
	assert.Equal(t, "invalid measurement id", resp.Text())
}

func TestHTTPSenderTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := NewHTTPSender(50*time.Millisecond).Send(context.Background(), Request{URL: server.URL})
	assert.Error(t, err)
}
