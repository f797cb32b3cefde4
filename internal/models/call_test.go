package models

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestNewCallSession_TimezoneDefault(t *testing.T) {
	s := NewCallSession("CA1", "+15550001111", "+15553334444", TenantConfig{CompanyName: "Acme Dental"})
	if s.Tenant.Timezone != DefaultTimezone {
		t.Errorf("Timezone = %q, want %q", s.Tenant.Timezone, DefaultTimezone)
	}

	s2 := NewCallSession("CA2", "+15550001111", "+15553334444", TenantConfig{Timezone: "Europe/Berlin"})
	if s2.Tenant.Timezone != "Europe/Berlin" {
		t.Errorf("Timezone = %q, want explicit value preserved", s2.Tenant.Timezone)
	}
}

func TestCallSession_ClaimOnce(t *testing.T) {
	s := NewCallSession("CA1", "+1", "+2", TenantConfig{})
	if !s.Claim() {
		t.Fatal("first Claim = false, want true")
	}
	if s.Claim() {
		t.Fatal("second Claim = true, want false")
	}
}

func TestCallSession_ClaimConcurrent(t *testing.T) {
	s := NewCallSession("CA1", "+1", "+2", TenantConfig{})

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Claim() {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Errorf("Claim succeeded %d times, want exactly 1", count)
	}
}

func TestHandoffPayload_Defaults(t *testing.T) {
	s := NewCallSession("CA1", "+15550001111", "+15553334444", TenantConfig{CompanyName: "Acme Dental"})

	p := s.HandoffPayload()
	if p.CallerName != DefaultCallerName {
		t.Errorf("CallerName = %q, want default", p.CallerName)
	}
	if p.CallSummary != DefaultCallSummary {
		t.Errorf("CallSummary = %q, want default", p.CallSummary)
	}
	if p.CallerPhone != "+15550001111" {
		t.Errorf("CallerPhone = %q", p.CallerPhone)
	}
	if p.ClientTwilioPhone != "+15553334444" {
		t.Errorf("ClientTwilioPhone = %q, want called number", p.ClientTwilioPhone)
	}
	if p.CompanyName != "Acme Dental" {
		t.Errorf("CompanyName = %q", p.CompanyName)
	}
	if p.AppointmentBooked {
		t.Error("AppointmentBooked = true, want false before any booking")
	}
}

func TestHandoffPayload_AfterBooking(t *testing.T) {
	s := NewCallSession("CA1", "+15550001111", "+15553334444", TenantConfig{CompanyName: "Acme Dental"})
	s.RecordBooking("Ava", "a@b.com", "2025-03-01 14:00", "consult")
	s.RecordSummary("Booked a consult for Ava.")

	if !s.Booked() {
		t.Fatal("Booked = false after RecordBooking")
	}
	p := s.HandoffPayload()
	if p.CallerName != "Ava" || p.CallerEmail != "a@b.com" {
		t.Errorf("caller = %q %q", p.CallerName, p.CallerEmail)
	}
	if p.AppointmentTime != "2025-03-01 14:00" {
		t.Errorf("AppointmentTime = %q", p.AppointmentTime)
	}
	if p.Reason != "consult" {
		t.Errorf("Reason = %q", p.Reason)
	}
	if p.CallSummary != "Booked a consult for Ava." {
		t.Errorf("CallSummary = %q", p.CallSummary)
	}
	if !p.AppointmentBooked {
		t.Error("AppointmentBooked = false after booking")
	}
}

func TestHandoffPayload_WireFormat(t *testing.T) {
	s := NewCallSession("CA1", "+15550001111", "+15553334444", TenantConfig{CompanyName: "Acme Dental"})
	s.RecordBooking("Ava", "a@b.com", "2025-03-01 14:00", "consult")

	raw, err := json.Marshal(s.HandoffPayload())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{
		"callerName", "callerEmail", "callerPhone", "companyName",
		"appointmentTime", "reason", "callSummary", "clientTwilioPhone",
		"appointmentBooked",
	} {
		if _, ok := m[key]; !ok {
			t.Errorf("handoff payload missing field %q", key)
		}
	}
}
