package core

import (
	"errors"
	"strings"
)

var (
	// ErrMissingEventName is returned when an inbound event has no event_name.
	ErrMissingEventName = errors.New("event_name is required")
	// ErrInvalidStep is returned when step falls outside the funnel's 1-9 range.
	ErrInvalidStep = errors.New("step must be between 1 and 9")
)

const (
	minStep = 1
	maxStep = 9
)

// EventName is a funnel event emitted by the browser client.
type EventName string

const (
	EventPageView       EventName = "page_view"
	EventQuizStarted    EventName = "quiz_started"
	EventQuizAnswer     EventName = "quiz_answer"
	EventQuizCompleted  EventName = "quiz_completed"
	EventCalendarView   EventName = "calendar_view"
	EventBookingCreated EventName = "booking_created"
	EventQuizRejected   EventName = "quiz_rejected"
)

// EventNames lists the funnel vocabulary in funnel order.
var EventNames = []EventName{
	EventPageView,
	EventQuizStarted,
	EventQuizAnswer,
	EventQuizCompleted,
	EventCalendarView,
	EventBookingCreated,
	EventQuizRejected,
}

// Known reports whether the name belongs to the funnel vocabulary.
func (n EventName) Known() bool {
	switch n {
	case EventPageView, EventQuizStarted, EventQuizAnswer, EventQuizCompleted,
		EventCalendarView, EventBookingCreated, EventQuizRejected:
		return true
	default:
		return false
	}
}

func (n EventName) String() string {
	return string(n)
}

// Answers holds the structured quiz answers collected by the funnel.
type Answers struct {
	LoanTypes     []string `json:"loanTypes,omitempty"`
	MonthlyVolume string   `json:"monthlyVolume,omitempty"`
	CurrentSource string   `json:"currentSource,omitempty"`
}

// LoanTypesJoined renders the loan types as a comma separated list.
func (a *Answers) LoanTypesJoined() string {
	if a == nil || len(a.LoanTypes) == 0 {
		return ""
	}
	return strings.Join(a.LoanTypes, ", ")
}

// Identity is raw PII supplied by the client. It is only ever hashed, never stored.
type Identity struct {
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

func (i *Identity) empty() bool {
	return i == nil || (i.Email == "" && i.Phone == "" && i.FirstName == "" && i.LastName == "")
}

// NormalizedEvent is the canonical inbound funnel event.
type NormalizedEvent struct {
	EventName       EventName `json:"event_name"`
	Step            *int      `json:"step,omitempty"`
	EventID         string    `json:"event_id,omitempty"`
	SessionID       string    `json:"session_id,omitempty"`
	SourceURL       string    `json:"source_url,omitempty"`
	ClientIP        string    `json:"client_ip,omitempty"`
	ClientUserAgent string    `json:"client_user_agent,omitempty"`
	FBP             string    `json:"fbp,omitempty"`
	FBC             string    `json:"fbc,omitempty"`
	GAClientID      string    `json:"ga_client_id,omitempty"`
	UserID          string    `json:"user_id,omitempty"`
	Answers         *Answers  `json:"answers,omitempty"`
	Question        string    `json:"question,omitempty"`
	AnswerValue     string    `json:"answer_value,omitempty"`
	Identity        *Identity `json:"identity,omitempty"`
	ContactID       string    `json:"contact_id,omitempty"`

	// Flat identity keys sent by older clients; folded into Identity by Normalize.
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Validate rejects events that must not reach any provider.
func (e NormalizedEvent) Validate() error {
	if strings.TrimSpace(string(e.EventName)) == "" {
		return ErrMissingEventName
	}
	if e.Step != nil && (*e.Step < minStep || *e.Step > maxStep) {
		return ErrInvalidStep
	}
	return nil
}

// Normalize trims context strings and folds flat identity keys into Identity.
// The returned value shares no mutable state with the receiver.
func (e NormalizedEvent) Normalize() NormalizedEvent {
	out := e
	out.EventName = EventName(strings.TrimSpace(string(e.EventName)))
	out.EventID = strings.TrimSpace(e.EventID)
	out.SessionID = strings.TrimSpace(e.SessionID)
	out.SourceURL = strings.TrimSpace(e.SourceURL)
	out.ClientIP = strings.TrimSpace(e.ClientIP)
	out.ClientUserAgent = strings.TrimSpace(e.ClientUserAgent)
	out.FBP = strings.TrimSpace(e.FBP)
	out.FBC = strings.TrimSpace(e.FBC)
	out.GAClientID = strings.TrimSpace(e.GAClientID)
	out.UserID = strings.TrimSpace(e.UserID)
	out.ContactID = strings.TrimSpace(e.ContactID)
	if e.Step != nil {
		step := *e.Step
		out.Step = &step
	}
	if e.Answers != nil {
		answers := *e.Answers
		answers.LoanTypes = append([]string(nil), e.Answers.LoanTypes...)
		out.Answers = &answers
	}

	identity := Identity{}
	if e.Identity != nil {
		identity = *e.Identity
	}
	if identity.Email == "" {
		identity.Email = e.Email
	}
	if identity.Phone == "" {
		identity.Phone = e.Phone
	}
	if identity.FirstName == "" {
		identity.FirstName = e.FirstName
	}
	if identity.LastName == "" {
		identity.LastName = e.LastName
	}
	identity.Email = strings.TrimSpace(identity.Email)
	if identity.empty() {
		out.Identity = nil
	} else {
		out.Identity = &identity
	}
	out.Email, out.Phone, out.FirstName, out.LastName = "", "", "", ""
	return out
}

// IdentityEmail returns the identity email, if any.
func (e NormalizedEvent) IdentityEmail() string {
	if e.Identity == nil {
		return ""
	}
	return e.Identity.Email
}

// SessionPrefix returns the first eight characters of the session id for log lines.
func (e NormalizedEvent) SessionPrefix() string {
	if len(e.SessionID) <= 8 {
		return e.SessionID
	}
	return e.SessionID[:8]
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
