// Package mock provides a scripted agent adapter for local runs and tests
// without cloud credentials. It simulates a receptionist conversation: tone
// audio replies at a steady cadence, transcripts for both sides, and exactly
// one booking action once enough caller audio has arrived.
package mock

import (
	"context"
	"fmt"
	"math"
	"sync"

	"ai-voice-receptionist/internal/schema"
	"ai-voice-receptionist/internal/service/agent"
)

const (
	// framesPerReply is how many caller frames trigger one spoken reply,
	// roughly half a second of audio at 20ms framing.
	framesPerReply = 25

	// actionAfterFrames is when the scripted booking request fires.
	actionAfterFrames = 60

	replyToneHz  = 440
	replyToneMs  = 400
	replyToneAmp = 8000
)

// CannedArgs is the booking request the scripted agent eventually makes.
var CannedArgs = schema.BookingArgs{
	CallerName:      "Ava Thompson",
	CallerEmail:     "ava.thompson@example.com",
	Date:            "2025-03-01",
	Time:            "14:00",
	Reason:          "consultation",
	DurationMinutes: 60,
}

// scriptedReplies are cycled through, one per reply.
var scriptedReplies = []string{
	"Thanks for calling! How can I help you today?",
	"Of course. What day and time work best for you?",
	"Got it. And what's the best email for the confirmation?",
	"Perfect, let me get that booked for you.",
}

// ActionResponse records one answer the relay sent back for an action.
type ActionResponse struct {
	ID     string
	Name   string
	Result map[string]any
}

// Dialer opens scripted sessions.
type Dialer struct {
	sampleRateHz int
}

// New creates a mock dialer emitting PCM at the given sample rate.
func New(sampleRateHz int) *Dialer {
	if sampleRateHz <= 0 {
		sampleRateHz = 24000
	}
	return &Dialer{sampleRateHz: sampleRateHz}
}

// Dial opens a new scripted session.
func (d *Dialer) Dial(ctx context.Context, params agent.SessionParams) (agent.Session, error) {
	return &Session{
		rate:   d.sampleRateHz,
		events: make(chan agent.Event, 64),
	}, nil
}

// Session implements agent.Session with scripted behavior. Events are emitted
// synchronously from Send calls, best-effort: when the buffer is full the
// event is dropped rather than blocking the caller's audio path.
type Session struct {
	rate int

	mu         sync.Mutex
	frames     int
	replyIndex int
	actionSent bool
	texts      []string
	responses  []ActionResponse
	closed     bool

	events chan agent.Event
}

// Events yields the scripted event stream.
func (s *Session) Events() <-chan agent.Event {
	return s.events
}

// SendAudio counts caller frames and emits scripted replies and, once, the
// booking action.
func (s *Session) SendAudio(ctx context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return agent.ErrSessionClosed
	}

	s.frames++

	if s.frames%framesPerReply == 0 {
		s.speakLocked(s.nextReplyLocked())
	}

	if !s.actionSent && s.frames >= actionAfterFrames {
		s.actionSent = true
		s.emitLocked(agent.Event{Action: &agent.ActionRequest{
			ID:   fmt.Sprintf("mock-action-%d", s.frames),
			Name: schema.ActionBookAppointment,
			Args: CannedArgs,
		}})
	}
	return nil
}

// SendText records the injected text and speaks a greeting in response.
func (s *Session) SendText(ctx context.Context, text string, endOfTurn bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return agent.ErrSessionClosed
	}
	s.texts = append(s.texts, text)
	s.speakLocked(scriptedReplies[0])
	return nil
}

// SendActionResponse records the relay's answer and speaks a confirmation.
func (s *Session) SendActionResponse(ctx context.Context, id, name string, result map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return agent.ErrSessionClosed
	}
	s.responses = append(s.responses, ActionResponse{ID: id, Name: name, Result: result})

	if success, _ := result["success"].(bool); success {
		s.speakLocked("You're all set. Anything else I can help with?")
	} else if msg, ok := result["message"].(string); ok && msg != "" {
		s.speakLocked(msg)
	} else {
		s.speakLocked("I'm sorry, I couldn't complete that.")
	}
	return nil
}

// Close ends the session and closes the event stream. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}

// Texts returns the text turns injected so far.
func (s *Session) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// ActionResponses returns the recorded action answers.
func (s *Session) ActionResponses() []ActionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ActionResponse(nil), s.responses...)
}

// Frames returns how many caller audio frames were received.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Session) nextReplyLocked() string {
	line := scriptedReplies[s.replyIndex%len(scriptedReplies)]
	s.replyIndex++
	return line
}

// speakLocked emits one spoken turn: agent transcript, tone audio, turn end.
func (s *Session) speakLocked(line string) {
	s.emitLocked(agent.Event{Transcript: &agent.Transcript{
		Role:  agent.RoleAgent,
		Text:  line,
		Final: true,
	}})
	s.emitLocked(agent.Event{Audio: s.tone()})
	s.emitLocked(agent.Event{TurnComplete: true})
}

func (s *Session) emitLocked(ev agent.Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// tone renders replyToneMs of sine audio as little-endian PCM.
func (s *Session) tone() []byte {
	samples := s.rate * replyToneMs / 1000
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(replyToneAmp * math.Sin(2*math.Pi*replyToneHz*float64(i)/float64(s.rate)))
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}
