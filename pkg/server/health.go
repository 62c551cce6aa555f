package server

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status       string          `json:"status"`
	Uptime       int64           `json:"uptime"`
	Integrations map[string]bool `json:"integrations"`
}

func (a *API) healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", http.MethodGet+", "+http.MethodHead)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{
			Status:       "ok",
			Uptime:       int64(time.Since(a.StartedAt) / time.Second),
			Integrations: a.Integrations,
		})
	})
}
