package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"ai-voice-receptionist/internal/models"
	"ai-voice-receptionist/internal/schema"
)

// capture records the last JSON body a test server received.
type capture struct {
	mu   sync.Mutex
	body map[string]any
}

func (c *capture) set(m map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.body = m
}

func (c *capture) get() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.body
}

func jsonServer(t *testing.T, cap *capture, status int, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m map[string]any
		if err := json.NewDecoder(r.Body).Decode(&m); err == nil && cap != nil {
			cap.set(m)
		}
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
}

func testSession() *models.CallSession {
	return models.NewCallSession("CA123", "+15550001111", "+15553334444", models.TenantConfig{
		CompanyName:    "Acme Dental",
		CalendarID:     "cal-1",
		Timezone:       "UTC",
		ClientRecordID: "rec-1",
	})
}

func testArgs() schema.BookingArgs {
	return schema.BookingArgs{
		CallerName:      "Ava",
		CallerEmail:     "a@b.com",
		Date:            "2025-03-01",
		Time:            "14:00",
		Reason:          "consult",
		DurationMinutes: 60,
	}
}

func TestLookupTenant_Success(t *testing.T) {
	cap := &capture{}
	srv := jsonServer(t, cap, http.StatusOK, `{
		"success": true,
		"companyName": "Acme Dental",
		"calendarId": "cal-1",
		"timezone": "UTC",
		"systemPrompt": "You are the receptionist for Acme Dental.",
		"clientRecordId": "rec-1"
	}`)
	defer srv.Close()

	c := New(Config{LookupURL: srv.URL})
	tenant, err := c.LookupTenant(context.Background(), "+15550001111", "+15553334444", "CA123")
	if err != nil {
		t.Fatalf("LookupTenant: %v", err)
	}
	if tenant.CompanyName != "Acme Dental" || tenant.CalendarID != "cal-1" {
		t.Errorf("tenant = %+v", tenant)
	}
	if tenant.SystemPrompt == "" {
		t.Error("SystemPrompt empty")
	}

	body := cap.get()
	if body["callerPhone"] != "+15550001111" {
		t.Errorf("callerPhone = %v", body["callerPhone"])
	}
	if body["calledNumber"] != "+15553334444" {
		t.Errorf("calledNumber = %v", body["calledNumber"])
	}
	if body["callSid"] != "CA123" {
		t.Errorf("callSid = %v", body["callSid"])
	}
}

func TestLookupTenant_SuccessFalse(t *testing.T) {
	srv := jsonServer(t, nil, http.StatusOK, `{"success": false}`)
	defer srv.Close()

	c := New(Config{LookupURL: srv.URL})
	if _, err := c.LookupTenant(context.Background(), "+1", "+2", "CA123"); err == nil {
		t.Fatal("expected error for success=false")
	}
}

func TestLookupTenant_Non200(t *testing.T) {
	srv := jsonServer(t, nil, http.StatusInternalServerError, `{}`)
	defer srv.Close()

	c := New(Config{LookupURL: srv.URL})
	if _, err := c.LookupTenant(context.Background(), "+1", "+2", "CA123"); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestLookupTenant_TransportError(t *testing.T) {
	srv := jsonServer(t, nil, http.StatusOK, `{}`)
	srv.Close() // refuse connections

	c := New(Config{LookupURL: srv.URL})
	if _, err := c.LookupTenant(context.Background(), "+1", "+2", "CA123"); err == nil {
		t.Fatal("expected error for unreachable collaborator")
	}
}

func TestLookupTenant_NoURL(t *testing.T) {
	c := New(Config{})
	if _, err := c.LookupTenant(context.Background(), "+1", "+2", "CA123"); err == nil {
		t.Fatal("expected error when no lookup URL is configured")
	}
}

func TestBookAppointment_Success(t *testing.T) {
	cap := &capture{}
	srv := jsonServer(t, cap, http.StatusOK, `{"success": true, "message": "Booked!"}`)
	defer srv.Close()

	c := New(Config{BookingURL: srv.URL})
	sess := testSession()

	result := c.BookAppointment(context.Background(), sess, testArgs())
	if result["success"] != true {
		t.Errorf("success = %v", result["success"])
	}
	if result["message"] != "Booked!" {
		t.Errorf("message = %v, want collaborator response passed through", result["message"])
	}
	if !sess.Booked() {
		t.Error("session not marked booked")
	}

	p := sess.HandoffPayload()
	if p.AppointmentTime != "2025-03-01 14:00" {
		t.Errorf("AppointmentTime = %q", p.AppointmentTime)
	}
	if p.CallerName != "Ava" || p.CallerEmail != "a@b.com" {
		t.Errorf("caller = %q %q", p.CallerName, p.CallerEmail)
	}

	body := cap.get()
	for _, key := range []string{
		"callerName", "callerEmail", "callerPhone", "date", "time", "reason",
		"durationMinutes", "calendarId", "timezone", "companyName", "clientRecordId",
	} {
		if _, ok := body[key]; !ok {
			t.Errorf("booking payload missing field %q", key)
		}
	}
	if body["callerPhone"] != "+15550001111" {
		t.Errorf("callerPhone = %v, want session caller", body["callerPhone"])
	}
	if body["calendarId"] != "cal-1" {
		t.Errorf("calendarId = %v, want tenant calendar", body["calendarId"])
	}
	if body["durationMinutes"] != float64(60) {
		t.Errorf("durationMinutes = %v", body["durationMinutes"])
	}
}

func TestBookAppointment_CollaboratorError(t *testing.T) {
	srv := jsonServer(t, nil, http.StatusInternalServerError, `oops`)
	defer srv.Close()

	c := New(Config{BookingURL: srv.URL})
	sess := testSession()

	result := c.BookAppointment(context.Background(), sess, testArgs())
	if result["success"] != false {
		t.Errorf("success = %v, want false", result["success"])
	}
	if result["message"] != BookingUnavailableMessage {
		t.Errorf("message = %v, want fallback", result["message"])
	}
	if sess.Booked() {
		t.Error("session marked booked after failed request")
	}
}

func TestBookAppointment_SuccessFalsePassedThrough(t *testing.T) {
	srv := jsonServer(t, nil, http.StatusOK, `{"success": false, "message": "That slot is taken."}`)
	defer srv.Close()

	c := New(Config{BookingURL: srv.URL})
	sess := testSession()

	result := c.BookAppointment(context.Background(), sess, testArgs())
	if result["message"] != "That slot is taken." {
		t.Errorf("message = %v, want collaborator message verbatim", result["message"])
	}
	if sess.Booked() {
		t.Error("session marked booked on success=false")
	}
}

func TestBookAppointment_NoURL(t *testing.T) {
	c := New(Config{})
	sess := testSession()

	result := c.BookAppointment(context.Background(), sess, testArgs())
	if result["success"] != false {
		t.Errorf("success = %v, want false", result["success"])
	}
	if sess.Booked() {
		t.Error("session marked booked with no booking URL")
	}
}

func TestPostCall_Success(t *testing.T) {
	cap := &capture{}
	srv := jsonServer(t, cap, http.StatusOK, `{}`)
	defer srv.Close()

	c := New(Config{PostCallURL: srv.URL})
	sess := testSession()
	sess.RecordBooking("Ava", "a@b.com", "2025-03-01 14:00", "consult")

	if err := c.PostCall(context.Background(), sess.CallSid, sess.HandoffPayload()); err != nil {
		t.Fatalf("PostCall: %v", err)
	}

	body := cap.get()
	for _, key := range []string{
		"callerName", "callerEmail", "callerPhone", "companyName",
		"appointmentTime", "reason", "callSummary", "clientTwilioPhone",
		"appointmentBooked",
	} {
		if _, ok := body[key]; !ok {
			t.Errorf("handoff payload missing field %q", key)
		}
	}
	if body["appointmentBooked"] != true {
		t.Errorf("appointmentBooked = %v", body["appointmentBooked"])
	}
	if body["clientTwilioPhone"] != "+15553334444" {
		t.Errorf("clientTwilioPhone = %v, want called number", body["clientTwilioPhone"])
	}
}

func TestPostCall_Failure(t *testing.T) {
	srv := jsonServer(t, nil, http.StatusBadGateway, ``)
	defer srv.Close()

	c := New(Config{PostCallURL: srv.URL})
	if err := c.PostCall(context.Background(), "CA123", models.HandoffPayload{}); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestPostCall_NoURL(t *testing.T) {
	c := New(Config{})
	if err := c.PostCall(context.Background(), "CA123", models.HandoffPayload{}); err != nil {
		t.Fatalf("expected nil error when unconfigured, got %v", err)
	}
}
