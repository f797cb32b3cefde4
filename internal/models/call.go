// Package models defines the data structures shared across the call pipeline:
// tenant configuration, per-call session state, and the payloads exchanged
// with the workflow collaborators.
package models

import (
	"sync"
	"time"
)

// Defaults applied when a call ends before the agent collected the
// corresponding detail.
const (
	DefaultCallerName  = "Valued Customer"
	DefaultCallSummary = "Call completed via AI Voice Receptionist."
	DefaultTimezone    = "America/New_York"
)

// TenantConfig is the per-number configuration resolved at call start. It
// drives the agent persona and the booking target for the whole call.
type TenantConfig struct {
	CompanyName    string `json:"companyName"`
	CalendarID     string `json:"calendarId"`
	Timezone       string `json:"timezone"`
	SystemPrompt   string `json:"systemPrompt"`
	ClientRecordID string `json:"clientRecordId"`
}

// LookupRequest is the body posted to the tenant lookup collaborator when a
// call arrives.
type LookupRequest struct {
	CallerPhone  string `json:"callerPhone"`
	CalledNumber string `json:"calledNumber"`
	CallSid      string `json:"callSid"`
}

// BookingPayload is the body posted to the booking collaborator when the
// agent requests an appointment.
type BookingPayload struct {
	CallerName      string `json:"callerName"`
	CallerEmail     string `json:"callerEmail"`
	CallerPhone     string `json:"callerPhone"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Reason          string `json:"reason"`
	DurationMinutes int    `json:"durationMinutes"`
	CalendarID      string `json:"calendarId"`
	Timezone        string `json:"timezone"`
	CompanyName     string `json:"companyName"`
	ClientRecordID  string `json:"clientRecordId"`
}

// HandoffPayload is the body posted to the post-call collaborator exactly
// once per call, after the call has fully ended.
type HandoffPayload struct {
	CallerName        string `json:"callerName"`
	CallerEmail       string `json:"callerEmail"`
	CallerPhone       string `json:"callerPhone"`
	CompanyName       string `json:"companyName"`
	AppointmentTime   string `json:"appointmentTime"`
	Reason            string `json:"reason"`
	CallSummary       string `json:"callSummary"`
	ClientTwilioPhone string `json:"clientTwilioPhone"`
	AppointmentBooked bool   `json:"appointmentBooked"`
}

// CallSession tracks one phone call from webhook arrival through post-call
// handoff. Identity fields are immutable after creation; outcome fields are
// written by the relay as the conversation progresses and read once at
// finalization.
type CallSession struct {
	CallSid      string
	CallerPhone  string
	CalledNumber string
	Tenant       TenantConfig
	StartedAt    time.Time

	mu      sync.Mutex
	claimed bool

	callerName    string
	callerEmail   string
	appointmentAt string
	reason        string
	summary       string
	booked        bool
}

// NewCallSession builds a session for a freshly looked-up call.
func NewCallSession(callSid, callerPhone, calledNumber string, tenant TenantConfig) *CallSession {
	if tenant.Timezone == "" {
		tenant.Timezone = DefaultTimezone
	}
	return &CallSession{
		CallSid:      callSid,
		CallerPhone:  callerPhone,
		CalledNumber: calledNumber,
		Tenant:       tenant,
		StartedAt:    time.Now().UTC(),
	}
}

// Claim marks the session as owned by a media stream. It succeeds exactly
// once; any later caller gets false and must treat the stream as a duplicate.
func (s *CallSession) Claim() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed {
		return false
	}
	s.claimed = true
	return true
}

// RecordBooking stores the confirmed appointment on the session.
func (s *CallSession) RecordBooking(name, email, appointmentAt, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callerName = name
	s.callerEmail = email
	s.appointmentAt = appointmentAt
	s.reason = reason
	s.booked = true
}

// RecordSummary stores the agent's closing summary of the call.
func (s *CallSession) RecordSummary(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summary
}

// Booked reports whether an appointment was confirmed during the call.
func (s *CallSession) Booked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.booked
}

// HandoffPayload assembles the post-call payload, substituting defaults for
// details the agent never collected.
func (s *CallSession) HandoffPayload() HandoffPayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := s.callerName
	if name == "" {
		name = DefaultCallerName
	}
	summary := s.summary
	if summary == "" {
		summary = DefaultCallSummary
	}
	return HandoffPayload{
		CallerName:        name,
		CallerEmail:       s.callerEmail,
		CallerPhone:       s.CallerPhone,
		CompanyName:       s.Tenant.CompanyName,
		AppointmentTime:   s.appointmentAt,
		Reason:            s.reason,
		CallSummary:       summary,
		ClientTwilioPhone: s.CalledNumber,
		AppointmentBooked: s.booked,
	}
}
