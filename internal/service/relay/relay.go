package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ai-voice-receptionist/internal/models"
	"ai-voice-receptionist/internal/observability/logging"
	"ai-voice-receptionist/internal/observability/metrics"
	"ai-voice-receptionist/internal/schema"
	"ai-voice-receptionist/internal/service/agent"
	"ai-voice-receptionist/internal/service/codec"
	"ai-voice-receptionist/internal/service/media"
)

var errStartReplayed = errors.New("start frame on an active stream")

// PhoneLeg is the telephony side of the call, normally a media.Stream.
type PhoneLeg interface {
	Events() <-chan media.Event
	SendAudio(mulaw []byte)
	Clear()
	Close() error
}

// SessionSource hands out the session registered by the incoming-call
// webhook. Claiming is exclusive: exactly one stream wins per call.
type SessionSource interface {
	Claim(callSid string) (*models.CallSession, error)
}

// CallHooks are the call-level side effects the relay triggers: booking
// round trips, transcript publication, and the end-of-call hand-off.
type CallHooks interface {
	Book(ctx context.Context, sess *models.CallSession, args schema.BookingArgs) map[string]any
	Transcript(ctx context.Context, callSid, role, text string, final bool)
	Finalize(ctx context.Context, callSid string)
}

// Deps are the relay's collaborators.
type Deps struct {
	Sessions SessionSource
	Agents   agent.Dialer
	Calls    CallHooks
	Metrics  *metrics.Metrics
}

// Config carries the per-deployment relay settings.
type Config struct {
	// Provider names the agent backend for logs and metrics.
	Provider string
	// AgentRate is the agent's PCM sample rate in Hz.
	AgentRate int
	// AgentSpeaksFirst makes the agent greet before any caller audio.
	AgentSpeaksFirst bool
	// Greeting is the instruction sent to elicit that greeting.
	Greeting string
}

// Relay bridges one phone leg with one agent session.
type Relay struct {
	phone     PhoneLeg
	deps      Deps
	cfg       Config
	lifecycle *Lifecycle
}

// New creates a relay for one media stream connection.
func New(phone PhoneLeg, deps Deps, cfg Config) *Relay {
	if deps.Metrics == nil {
		deps.Metrics = metrics.DefaultMetrics
	}
	if cfg.AgentRate <= 0 {
		cfg.AgentRate = 24000
	}
	return &Relay{
		phone:     phone,
		deps:      deps,
		cfg:       cfg,
		lifecycle: NewLifecycle(),
	}
}

// State returns the relay's current lifecycle state.
func (r *Relay) State() State {
	return r.lifecycle.State()
}

// Run drives the call to completion. It returns once both legs are closed
// and, when a session was claimed, the hand-off has been triggered exactly
// once. The caller owns the phone leg's connection lifetime up to this call;
// Run closes it on every path.
func (r *Relay) Run(ctx context.Context) {
	sess, streamSid, ok := r.awaitStart(ctx)
	if !ok {
		r.lifecycle.Terminate()
		_ = r.phone.Close()
		r.lifecycle.Close()
		return
	}

	log := logging.WithStream(streamSid, sess.CallSid)
	if err := r.lifecycle.Activate(); err != nil {
		log.Error().Err(err).Msg("Stream activation refused")
		_ = r.phone.Close()
		r.lifecycle.Close()
		return
	}
	log.Info().Str("company", sess.Tenant.CompanyName).Msg("Call stream active")

	r.deps.Metrics.RecordStreamStart()
	startedAt := time.Now()

	agentSess, err := r.deps.Agents.Dial(ctx, agent.SessionParams{
		CallSid:           sess.CallSid,
		SystemInstruction: sess.Tenant.SystemPrompt,
	})
	if err != nil {
		log.Error().Err(err).Str("provider", r.cfg.Provider).Msg("Agent session failed to open")
		r.deps.Metrics.RecordAgentError(r.cfg.Provider, "dial")
		r.lifecycle.Terminate()
		_ = r.phone.Close()
		r.lifecycle.Close()
		r.deps.Metrics.RecordStreamEnd(false, time.Since(startedAt).Seconds())
		r.deps.Calls.Finalize(ctx, sess.CallSid)
		return
	}
	r.deps.Metrics.RecordAgentSession(r.cfg.Provider)

	if r.cfg.AgentSpeaksFirst && r.cfg.Greeting != "" {
		if err := agentSess.SendText(ctx, r.cfg.Greeting, true); err != nil {
			log.Warn().Err(err).Msg("Greeting instruction failed")
		}
	}

	// Whichever pipeline finishes first ends the call; closing both legs
	// unblocks the other pipeline so it can drain out.
	errc := make(chan error, 2)
	go func() { errc <- r.pumpCallerAudio(ctx, agentSess) }()
	go func() { errc <- r.pumpAgentEvents(ctx, agentSess, sess, log) }()

	firstErr := <-errc
	r.lifecycle.Terminate()
	_ = agentSess.Close()
	_ = r.phone.Close()
	<-errc
	r.lifecycle.Close()

	if firstErr != nil {
		log.Warn().Err(firstErr).Msg("Call stream ended with error")
	} else {
		log.Info().Msg("Call stream ended")
	}
	r.deps.Metrics.RecordStreamEnd(firstErr == nil, time.Since(startedAt).Seconds())
	r.deps.Calls.Finalize(ctx, sess.CallSid)
}

// awaitStart consumes phone events until a start frame claims a session.
// Protocol violations, claim losses and early disconnects all return false;
// none of them trigger a hand-off, since this stream never owned the call.
func (r *Relay) awaitStart(ctx context.Context) (*models.CallSession, string, bool) {
	log := logging.WithComponent("relay")
	for {
		select {
		case <-ctx.Done():
			return nil, "", false
		case ev, ok := <-r.phone.Events():
			if !ok {
				log.Debug().Msg("Stream closed before start frame")
				return nil, "", false
			}
			switch ev.Kind {
			case media.KindConnected:
				// handshake ack
			case media.KindStart:
				sess, err := r.deps.Sessions.Claim(ev.CallSid)
				if err != nil {
					log.Warn().Err(err).Str("callSid", ev.CallSid).Msg("Rejecting stream for unclaimable call")
					return nil, "", false
				}
				return sess, ev.StreamSid, true
			default:
				log.Warn().Str("kind", ev.Kind.String()).Msg("Protocol violation before start frame")
				return nil, "", false
			}
		}
	}
}

// pumpCallerAudio forwards caller audio to the agent until the caller's
// stream ends. A nil return means the caller hung up or disconnected.
func (r *Relay) pumpCallerAudio(ctx context.Context, agentSess agent.Session) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-r.phone.Events():
			if !ok {
				return nil
			}
			switch ev.Kind {
			case media.KindMedia:
				r.deps.Metrics.RecordInboundAudio(len(ev.Audio))
				pcm := codec.EncodeForAgent(ev.Audio, r.cfg.AgentRate)
				if len(pcm) == 0 {
					continue
				}
				if err := agentSess.SendAudio(ctx, pcm); err != nil {
					return fmt.Errorf("forward caller audio: %w", err)
				}
			case media.KindStop:
				return nil
			case media.KindStart:
				return errStartReplayed
			case media.KindConnected:
				// ignore
			}
		}
	}
}

// pumpAgentEvents forwards agent output to the caller. Booking actions are
// answered synchronously: no further agent event is read until the result
// has been sent back.
func (r *Relay) pumpAgentEvents(ctx context.Context, agentSess agent.Session, sess *models.CallSession, log zerolog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-agentSess.Events():
			if !ok {
				return nil
			}
			switch {
			case len(ev.Audio) > 0:
				mulaw := codec.DecodeForPhone(ev.Audio, r.cfg.AgentRate)
				if len(mulaw) == 0 {
					continue
				}
				r.phone.SendAudio(mulaw)
				r.deps.Metrics.RecordOutboundAudio(len(mulaw))
			case ev.Action != nil:
				log.Info().Str("action", ev.Action.Name).Str("actionId", ev.Action.ID).Msg("Agent requested action")
				result := r.deps.Calls.Book(ctx, sess, ev.Action.Args)
				if err := agentSess.SendActionResponse(ctx, ev.Action.ID, ev.Action.Name, result); err != nil {
					return fmt.Errorf("answer agent action: %w", err)
				}
			case ev.Transcript != nil:
				r.deps.Calls.Transcript(ctx, sess.CallSid, ev.Transcript.Role, ev.Transcript.Text, ev.Transcript.Final)
			case ev.Interrupted:
				r.phone.Clear()
				r.deps.Metrics.RecordInterruption()
			case ev.TurnComplete:
				r.deps.Metrics.RecordAgentTurn()
			}
		}
	}
}
