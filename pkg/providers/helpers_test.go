package providers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recordingSender captures requests and replies with a status chosen per URL suffix.
type recordingSender struct {
	mu       sync.Mutex
	requests []Request
	reply    func(req Request) (Response, error)
}

func newRecordingSender(reply func(req Request) (Response, error)) *recordingSender {
	if reply == nil {
		reply = func(Request) (Response, error) { return jsonResponse(200, `{"ok":true}`), nil }
	}
	return &recordingSender{reply: reply}
}

func (s *recordingSender) Send(_ context.Context, req Request) (Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.reply(req)
}

func (s *recordingSender) find(t *testing.T, suffix string) Request {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		if strings.HasSuffix(strings.SplitN(req.URL, "?", 2)[0], suffix) {
			return req
		}
	}
	t.Fatalf("no request to %s in %d requests", suffix, len(s.requests))
	return Request{}
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func jsonResponse(status int, raw string) Response {
	return Response{Status: status, Body: parseBody([]byte(raw)), Raw: []byte(raw)}
}

var errNetwork = errors.New("dial tcp: connection refused")

func bodyMap(t *testing.T, req Request) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(req.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func fixedClock() time.Time {
	return time.Date(2025, time.March, 4, 18, 5, 9, 0, time.UTC)
}
