package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBuildSendPayloadFromFlags(t *testing.T) {
	payload, err := buildSendPayload(sendOptions{event: "quiz_answer", step: 3, session: "sess-1", email: "lead@example.com"})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	if payload["event_name"] != "quiz_answer" || payload["step"] != 3 || payload["session_id"] != "sess-1" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["email"] != "lead@example.com" {
		t.Fatalf("expected email, got %v", payload["email"])
	}
}

func TestBuildSendPayloadRequiresEvent(t *testing.T) {
	if _, err := buildSendPayload(sendOptions{}); err == nil {
		t.Fatalf("expected error without event")
	}
}

func TestBuildSendPayloadGeneratesSession(t *testing.T) {
	payload, err := buildSendPayload(sendOptions{event: "page_view"})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	if session, _ := payload["session_id"].(string); session == "" {
		t.Fatalf("expected generated session id")
	}
	if _, ok := payload["step"]; ok {
		t.Fatalf("expected step omitted")
	}
}

func TestBuildSendPayloadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event.yaml")
	content := "event_name: quiz_completed\nstep: 9\nsession_id: from-file\nanswers:\n  monthlyVolume: 500+\n  loanTypes: [MCA]\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write event file: %v", err)
	}
	payload, err := buildSendPayload(sendOptions{file: path, email: "lead@example.com"})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	if payload["event_name"] != "quiz_completed" || payload["session_id"] != "from-file" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	answers, ok := payload["answers"].(map[string]interface{})
	if !ok || answers["monthlyVolume"] != "500+" {
		t.Fatalf("expected answers from file, got %v", payload["answers"])
	}

	override, err := buildSendPayload(sendOptions{file: path, event: "booking_created", session: "flag"})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	if override["event_name"] != "booking_created" || override["session_id"] != "flag" {
		t.Fatalf("expected flags to win, got %v", override)
	}
}

func TestLoadEventPayloadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("  \n"), 0o600); err != nil {
		t.Fatalf("write event file: %v", err)
	}
	if _, err := loadEventPayload(path); err == nil {
		t.Fatalf("expected error for empty file")
	}
}

func TestPostTrack(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/track" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"results":{"adConversion":null}}`))
	}))
	defer srv.Close()

	resp, err := postTrack(context.Background(), srv.URL+"/", map[string]interface{}{"event_name": "page_view"}, time.Second)
	if err != nil {
		t.Fatalf("post track: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("expected 2xx, got %d", resp.Status)
	}
	if got["event_name"] != "page_view" {
		t.Fatalf("unexpected request body: %v", got)
	}
	body, ok := resp.Body.(map[string]interface{})
	if !ok || body["ok"] != true {
		t.Fatalf("unexpected response body: %v", resp.Body)
	}

	if _, err := postTrack(context.Background(), " ", nil, time.Second); err == nil {
		t.Fatalf("expected endpoint required")
	}
}
