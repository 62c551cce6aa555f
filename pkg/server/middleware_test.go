package server

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestApplyMiddlewares(t *testing.T) {
	if got := applyMiddlewares(nil, nil); got != nil {
		t.Fatalf("expected nil handler for nil input")
	}

	order := make([]string, 0, 4)
	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusNoContent)
	})

	m1 := Middleware(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "m1-before")
			next.ServeHTTP(w, r)
			order = append(order, "m1-after")
		})
	})
	m2 := Middleware(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "m2-before")
			next.ServeHTTP(w, r)
			order = append(order, "m2-after")
		})
	})

	wrapped := applyMiddlewares(base, []Middleware{m1, nil, m2})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()
	wrapped.ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", res.Code)
	}
	got := order
	want := []string{"m1-before", "m2-before", "handler", "m2-after", "m1-after"}
	if len(got) != len(want) {
		t.Fatalf("unexpected middleware order: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected middleware order: %v", got)
		}
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	h := recoveryMiddleware(log.New(&buf, "", 0))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/track", nil)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if got := strings.TrimSpace(res.Body.String()); got != `{"error":"Internal server error"}` {
		t.Fatalf("unexpected body: %s", got)
	}
	if !strings.Contains(buf.String(), "panic method=POST path=/api/track err=boom") {
		t.Fatalf("expected panic log, got %q", buf.String())
	}
}
