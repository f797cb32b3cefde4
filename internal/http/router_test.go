package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"ai-voice-receptionist/internal/api/stream"
	"ai-voice-receptionist/internal/api/voice"
	"ai-voice-receptionist/internal/events"
	"ai-voice-receptionist/internal/service/agent/mock"
	"ai-voice-receptionist/internal/service/call"
	"ai-voice-receptionist/internal/service/relay"
	"ai-voice-receptionist/internal/webhooks"
)

func newTestRouter() http.Handler {
	registry := call.NewRegistry()
	coordinator := call.NewCoordinator(registry, webhooks.New(webhooks.Config{}), events.New(&events.Config{Enabled: false}))
	voiceHandler := voice.New(coordinator, "")
	streamHandler := stream.New(relay.Deps{
		Sessions: registry,
		Agents:   mock.New(24000),
		Calls:    coordinator,
	}, relay.Config{Provider: "mock", AgentRate: 24000})
	return NewRouter(voiceHandler, streamHandler)
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		path     string
		wantBody string
	}{
		{"/v1/liveness", "ok"},
		{"/v1/readiness", "ready"},
		{"/health", `{"status":"ok"}`},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", tt.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", tt.path, w.Code)
		}
		if w.Body.String() != tt.wantBody {
			t.Errorf("GET %s body = %q, want %q", tt.path, w.Body.String(), tt.wantBody)
		}
	}
}

func TestRouter_Root(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if !strings.Contains(w.Body.String(), "AI Voice Receptionist is running!") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestRouter_IncomingCallRouted(t *testing.T) {
	router := newTestRouter()

	form := url.Values{
		"From":    {"+15550001111"},
		"To":      {"+15550002222"},
		"CallSid": {"CA1"},
	}
	req := httptest.NewRequest("POST", "/incoming-call", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// No lookup collaborator configured, so the stack speaks the apology.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/xml" {
		t.Errorf("Content-Type = %q, want text/xml", ct)
	}
	if !strings.Contains(w.Body.String(), "<Hangup/>") {
		t.Errorf("body = %s, want apology TwiML", w.Body.String())
	}
}

func TestRouter_StreamRequiresUpgrade(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/ws", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a plain GET", w.Code)
	}
}
