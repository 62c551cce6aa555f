package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const maxResponseBytes = 1 << 20

// Request is a provider call ready for the network.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	// Body is JSON encoded; nil sends no body.
	Body interface{}
}

// Response is the provider reply. Body holds parsed JSON when the reply is
// valid JSON and the raw text otherwise.
type Response struct {
	Status int
	Body   interface{}
	Raw    []byte
}

// OK reports a 2xx status.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Text returns the raw reply as a string.
func (r Response) Text() string {
	return string(r.Raw)
}

// Decode unmarshals the raw reply into v.
func (r Response) Decode(v interface{}) error {
	return json.Unmarshal(r.Raw, v)
}

// Sender performs provider calls.
type Sender interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, req Request) (Response, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// HTTPSender sends requests over a pooled HTTP client. Timeout bounds each
// call; zero means no limit beyond the context.
type HTTPSender struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPSender returns a sender backed by a pooled client.
func NewHTTPSender(timeout time.Duration) *HTTPSender {
	return &HTTPSender{Client: cleanhttp.DefaultPooledClient(), Timeout: timeout}
}

// Send encodes req.Body as JSON, performs the call and parses the reply.
func (s *HTTPSender) Send(ctx context.Context, req Request) (Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return Response{}, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return Response{}, err
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	client := s.Client
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read response body: %w", err)
	}
	return Response{Status: resp.StatusCode, Body: parseBody(raw), Raw: raw}, nil
}

func parseBody(raw []byte) interface{} {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return string(raw)
	}
	return parsed
}

func jsonHeaders() map[string]string {
	return map[string]string{"Content-Type": "application/json"}
}
