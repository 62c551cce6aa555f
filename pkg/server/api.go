package server

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/leadpop/funnelrelay/pkg/core"
	"github.com/leadpop/funnelrelay/pkg/dispatch"
	"github.com/leadpop/funnelrelay/pkg/providers"
)

const setupSecretHeader = "X-Setup-Secret"

// API serves the funnel tracking and CRM routes.
type API struct {
	Dispatcher   *dispatch.Dispatcher
	Crm          *providers.CrmContact
	Sender       providers.Sender
	Integrations map[string]bool
	SetupSecret  string
	MaxBodyBytes int64
	DebugEvents  bool
	Logger       *log.Logger
	StartedAt    time.Time
}

type errorResponse struct {
	Error string `json:"error"`
}

type trackResponse struct {
	OK      bool                `json:"ok"`
	Results core.DispatchResult `json:"results"`
}

type bookingResults struct {
	Note    *core.Outcome `json:"note,omitempty"`
	Tags    *core.Outcome `json:"tags,omitempty"`
	Contact *core.Outcome `json:"contact,omitempty"`
}

type bookingResponse struct {
	OK      bool           `json:"ok"`
	Results bookingResults `json:"results"`
}

type setupFieldsResponse struct {
	OK     bool                         `json:"ok"`
	Fields []providers.FieldSetupResult `json:"fields"`
}

func (a *API) trackHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowPost(w, r) {
			return
		}
		reqID := requestID(r)
		w.Header().Set("X-Request-Id", reqID)
		logger := core.WithRequestID(a.Logger, reqID)

		raw, ok := a.readBody(w, r)
		if !ok {
			return
		}
		if a.DebugEvents {
			logDebugEvent(logger, "track", raw)
		}
		var event core.NormalizedEvent
		if !decodeJSON(w, raw, &event) {
			return
		}
		event.ClientIP = clientIP(r)
		event.ClientUserAgent = r.UserAgent()

		ctx := core.ContextWithRequestID(r.Context(), reqID)
		results, err := a.Dispatcher.Dispatch(ctx, event)
		if err != nil {
			if errors.Is(err, core.ErrMissingEventName) || errors.Is(err, core.ErrInvalidStep) {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
			logger.Printf("track dispatch failed err=%v", err)
			writeInternalError(w)
			return
		}
		step := "-"
		if event.Step != nil {
			step = strconv.Itoa(*event.Step)
		}
		logger.Printf("track event=%s step=%s session=%s", event.EventName, step, event.SessionPrefix())
		writeJSON(w, http.StatusOK, trackResponse{OK: true, Results: results})
	})
}

func (a *API) bookingWebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowPost(w, r) {
			return
		}
		reqID := requestID(r)
		w.Header().Set("X-Request-Id", reqID)
		logger := core.WithRequestID(a.Logger, reqID)

		raw, ok := a.readBody(w, r)
		if !ok {
			return
		}
		if a.DebugEvents {
			logDebugEvent(logger, "booking-webhook", raw)
		}
		var req providers.EnrichRequest
		if !decodeJSON(w, raw, &req) {
			return
		}
		if req.Step != nil && (*req.Step < 1 || *req.Step > 9) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: core.ErrInvalidStep.Error()})
			return
		}
		if !a.Crm.Configured() {
			if req.ContactID == "" && req.Email == "" {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: providers.ErrContactTargetRequired.Error()})
				return
			}
			logger.Printf("booking webhook provider=%s skipped reason=%s", core.ProviderCrmContact, core.SkipNotConfigured)
			writeJSON(w, http.StatusOK, bookingResponse{OK: true})
			return
		}

		result, err := a.Crm.Enrich(r.Context(), req, a.Sender)
		if errors.Is(err, providers.ErrContactTargetRequired) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		if err != nil {
			logger.Printf("booking webhook failed err=%v", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		outcome := result.Outcome()
		if outcome.Success {
			logger.Printf("booking webhook enriched contact_id=%s tags=%d", req.ContactID, len(result.TagSet))
		} else {
			logger.Printf("booking webhook partial failure contact_id=%s err=%s", req.ContactID, outcome.Error)
		}
		writeJSON(w, http.StatusOK, bookingResponse{OK: true, Results: bookingResults{
			Note:    result.Note,
			Tags:    result.Tags,
			Contact: result.Contact,
		}})
	})
}

func (a *API) setupFieldsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowPost(w, r) {
			return
		}
		reqID := requestID(r)
		w.Header().Set("X-Request-Id", reqID)
		logger := core.WithRequestID(a.Logger, reqID)

		if !validSetupSecret(a.SetupSecret, r.Header.Get(setupSecretHeader)) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Invalid setup secret"})
			return
		}
		fields, err := a.Crm.SetupCustomFields(r.Context(), a.Sender)
		if err != nil {
			logger.Printf("crm setup fields failed err=%v", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		for _, field := range fields {
			logger.Printf("crm custom field=%q status=%s", field.Field, field.Status)
		}
		writeJSON(w, http.StatusOK, setupFieldsResponse{OK: true, Fields: fields})
	})
}

func validSetupSecret(expected, got string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

func allowPost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodPost {
		return true
	}
	w.Header().Set("Allow", http.MethodPost)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: http.StatusText(http.StatusMethodNotAllowed)})
	return false
}

func (a *API) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if a.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.MaxBodyBytes)
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return nil, false
	}
	return raw, true
}

// decodeJSON treats an empty body as an empty object so that validation
// reports the missing field rather than a parse error.
func decodeJSON(w http.ResponseWriter, raw []byte, v interface{}) bool {
	if len(bytes.TrimSpace(raw)) == 0 {
		return true
	}
	if err := json.Unmarshal(raw, v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}
