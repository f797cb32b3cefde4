// Package agent defines the interface for conversational voice agent
// providers.
package agent

import (
	"context"
	"errors"

	"ai-voice-receptionist/internal/schema"
)

// Roles attached to transcript fragments.
const (
	RoleCaller = "caller"
	RoleAgent  = "agent"
)

// ErrSessionClosed is returned by sends on a closed session.
var ErrSessionClosed = errors.New("agent session is closed")

// ActionRequest is a structured action the agent wants performed. The agent
// is paused until a response for the same ID is sent back.
type ActionRequest struct {
	ID   string
	Name string
	Args schema.BookingArgs
}

// Transcript is a fragment of recognized speech for one side of the call.
type Transcript struct {
	Role  string
	Text  string
	Final bool
}

// Event is one occurrence on the agent leg. Exactly one field is set per
// event; a zero Event carries nothing and consumers must ignore it.
type Event struct {
	// Audio is linear PCM agent speech at the session's sample rate.
	Audio []byte

	// Action is a request to perform an external action.
	Action *ActionRequest

	// Transcript is a speech-to-text fragment for either side.
	Transcript *Transcript

	// TurnComplete marks the end of an agent speaking turn.
	TurnComplete bool

	// Interrupted means the caller spoke over the agent; buffered agent
	// audio downstream should be discarded.
	Interrupted bool
}

// SessionParams carries the per-call setup for a session.
type SessionParams struct {
	CallSid           string
	SystemInstruction string
}

// Session is one live conversation with the agent. Sends are safe for
// concurrent use. The Events channel closes when the agent leg ends, whether
// by Close or by provider-side termination.
type Session interface {
	// SendAudio forwards caller speech as linear PCM at the session's
	// sample rate.
	SendAudio(ctx context.Context, pcm []byte) error

	// SendText injects a user-role text turn, e.g. the greeting nudge at
	// call start.
	SendText(ctx context.Context, text string, endOfTurn bool) error

	// SendActionResponse answers an ActionRequest so the agent can resume
	// speaking.
	SendActionResponse(ctx context.Context, id, name string, result map[string]any) error

	// Events yields the agent leg's event stream in arrival order.
	Events() <-chan Event

	// Close ends the session and releases resources. Idempotent; blocks
	// until the event stream has closed.
	Close() error
}

// Dialer opens agent sessions, one per call.
type Dialer interface {
	Dial(ctx context.Context, params SessionParams) (Session, error)
}
