// Package voice serves the telephony webhook that answers an incoming call.
// The response is TwiML: either connect-stream instructions pointing at the
// media WebSocket, or a spoken apology when the called number cannot be
// served.
package voice

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"

	"ai-voice-receptionist/internal/models"
	"ai-voice-receptionist/internal/observability/logging"
)

// apologyTwiML ends the call politely when no tenant answers for the number.
const apologyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response><Say>Sorry, this number is not configured. Goodbye.</Say><Hangup/></Response>`

// CallStarter begins a call: tenant lookup plus session registration.
type CallStarter interface {
	Begin(ctx context.Context, callerPhone, calledNumber, callSid string) (*models.CallSession, error)
}

// Handler answers the provider's incoming-call webhook.
type Handler struct {
	calls      CallStarter
	publicHost string
}

// New creates the incoming-call handler. publicHost overrides the request's
// Host header when building the stream URL; leave it empty to trust Host.
func New(calls CallStarter, publicHost string) *Handler {
	return &Handler{calls: calls, publicHost: publicHost}
}

// IncomingCall handles POST /incoming-call.
func (h *Handler) IncomingCall(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		logging.WithComponent("voice-webhook").Warn().Err(err).Msg("Unparseable incoming-call form")
		writeTwiML(w, apologyTwiML)
		return
	}

	callerPhone := r.PostFormValue("From")
	calledNumber := r.PostFormValue("To")
	callSid := r.PostFormValue("CallSid")
	log := logging.WithCall(callSid)

	sess, err := h.calls.Begin(r.Context(), callerPhone, calledNumber, callSid)
	if err != nil {
		log.Warn().Err(err).Str("calledNumber", calledNumber).Msg("Turning call away")
		writeTwiML(w, apologyTwiML)
		return
	}

	host := h.publicHost
	if host == "" {
		host = r.Host
	}
	log.Info().Str("company", sess.Tenant.CompanyName).Str("host", host).Msg("Answering call with stream instructions")
	writeTwiML(w, connectStreamTwiML(host, callSid))
}

// connectStreamTwiML points the provider at the media WebSocket and threads
// the callSid through as a custom parameter so the stream can identify its
// call.
func connectStreamTwiML(host, callSid string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?><Response><Connect><Stream url="wss://%s/ws"><Parameter name="callSid" value="%s"/></Stream></Connect></Response>`,
		xmlEscape(host), xmlEscape(callSid))
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func writeTwiML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
