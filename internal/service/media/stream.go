// Package media owns the telephony side of a call: one WebSocket carrying
// Twilio Media Stream frames. It parses inbound frames into typed events and
// serializes outbound audio through a single writer so playback order is
// preserved.
package media

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-voice-receptionist/internal/observability/logging"
	"ai-voice-receptionist/internal/observability/metrics"
)

const (
	eventConnected = "connected"
	eventStart     = "start"
	eventMedia     = "media"
	eventStop      = "stop"
	eventClear     = "clear"

	writeTimeout = 5 * time.Second
)

// Kind identifies what an inbound frame means for the call.
type Kind int

const (
	// KindConnected is the provider's handshake ack. Benign.
	KindConnected Kind = iota
	// KindStart opens the stream and identifies the call.
	KindStart
	// KindMedia carries one frame of caller audio (G.711 u-law bytes).
	KindMedia
	// KindStop announces that the caller's stream has ended.
	KindStop
)

func (k Kind) String() string {
	switch k {
	case KindConnected:
		return eventConnected
	case KindStart:
		return eventStart
	case KindMedia:
		return eventMedia
	case KindStop:
		return eventStop
	default:
		return "unknown"
	}
}

// Event is one parsed inbound frame. StreamSid and CallSid are set only on
// KindStart; Audio only on KindMedia.
type Event struct {
	Kind      Kind
	StreamSid string
	CallSid   string
	Audio     []byte
}

// Inbound wire shapes. Fields not listed (track, chunk, timestamps) are
// ignored on purpose.
type inboundFrame struct {
	Event string      `json:"event"`
	Start *startFrame `json:"start"`
	Media *mediaFrame `json:"media"`
}

type startFrame struct {
	StreamSid        string            `json:"streamSid"`
	CallSid          string            `json:"callSid"`
	CustomParameters map[string]string `json:"customParameters"`
}

type mediaFrame struct {
	Payload string `json:"payload"`
}

// Outbound wire shapes.
type outboundMedia struct {
	Event     string       `json:"event"`
	StreamSid string       `json:"streamSid"`
	Media     mediaPayload `json:"media"`
}

type mediaPayload struct {
	Payload string `json:"payload"`
}

type outboundClear struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
}

type outboundItem struct {
	clear bool
	audio []byte
}

// Stream wraps one media WebSocket. A read goroutine turns frames into
// Events; a write goroutine drains the send queue in order. Malformed frames
// are dropped and counted, never fatal.
type Stream struct {
	conn    *websocket.Conn
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	streamSid string

	events     chan Event
	sendq      chan outboundItem
	done       chan struct{}
	readerDone chan struct{}
	writerDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// New wraps an upgraded connection and starts its read and write loops.
func New(conn *websocket.Conn) *Stream {
	s := &Stream{
		conn:       conn,
		log:        logging.WithComponent("media-stream"),
		metrics:    metrics.DefaultMetrics,
		events:     make(chan Event, 256),
		sendq:      make(chan outboundItem, 256),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	go s.readLoop()
	go s.writeLoop()
	return s
}

// Events yields parsed inbound frames in receipt order. The channel closes
// when the connection closes; a caller hang-up arrives as KindStop first.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// StreamSid returns the stream identifier learned from the start frame, or
// empty before it.
func (s *Stream) StreamSid() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSid
}

// SendAudio queues one u-law frame for playback. Enqueue order is the order
// frames reach the wire. A full queue applies backpressure; a closed stream
// discards the frame.
func (s *Stream) SendAudio(mulaw []byte) {
	if len(mulaw) == 0 {
		return
	}
	select {
	case s.sendq <- outboundItem{audio: mulaw}:
	case <-s.done:
	case <-s.writerDone:
	}
}

// Clear asks the provider to flush any audio it has buffered for playback.
// Used when the caller talks over the agent.
func (s *Stream) Clear() {
	select {
	case s.sendq <- outboundItem{clear: true}:
	case <-s.done:
	case <-s.writerDone:
	}
}

// Close tears the connection down and waits for both loops to exit.
// Idempotent.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		s.closeErr = s.conn.Close()
		<-s.readerDone
		<-s.writerDone
	})
	return s.closeErr
}

func (s *Stream) readLoop() {
	defer close(s.readerDone)
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && err != io.EOF {
				s.log.Warn().Err(err).Msg("Media stream read failed")
			}
			return
		}

		ev, ok := s.parse(data)
		if !ok {
			continue
		}
		if ev.Kind == KindStart {
			s.mu.Lock()
			s.streamSid = ev.StreamSid
			s.mu.Unlock()
		}

		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

// parse maps one raw frame to an Event. Returns false for frames to drop.
func (s *Stream) parse(data []byte) (Event, bool) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.log.Warn().Err(err).Msg("Dropping undecodable media frame")
		s.metrics.RecordMalformedFrame("bad_json")
		return Event{}, false
	}

	switch frame.Event {
	case eventConnected:
		return Event{Kind: KindConnected}, true

	case eventStart:
		if frame.Start == nil {
			s.log.Warn().Msg("Dropping start frame without start block")
			s.metrics.RecordMalformedFrame("missing_start")
			return Event{}, false
		}
		callSid := frame.Start.CustomParameters["callSid"]
		if callSid == "" {
			callSid = frame.Start.CallSid
		}
		return Event{Kind: KindStart, StreamSid: frame.Start.StreamSid, CallSid: callSid}, true

	case eventMedia:
		if frame.Media == nil {
			s.log.Warn().Msg("Dropping media frame without media block")
			s.metrics.RecordMalformedFrame("missing_media")
			return Event{}, false
		}
		audio, err := base64.StdEncoding.DecodeString(frame.Media.Payload)
		if err != nil {
			s.log.Warn().Err(err).Msg("Dropping media frame with undecodable payload")
			s.metrics.RecordMalformedFrame("bad_base64")
			return Event{}, false
		}
		return Event{Kind: KindMedia, Audio: audio}, true

	case eventStop:
		return Event{Kind: KindStop}, true

	default:
		// mark, dtmf and anything newer the provider ships.
		s.log.Debug().Str("event", frame.Event).Msg("Ignoring unsupported media frame")
		s.metrics.RecordMalformedFrame("unknown_event")
		return Event{}, false
	}
}

func (s *Stream) writeLoop() {
	defer close(s.writerDone)

	for {
		select {
		case <-s.done:
			return
		case item := <-s.sendq:
			var msg any
			if item.clear {
				msg = outboundClear{Event: eventClear, StreamSid: s.StreamSid()}
			} else {
				msg = outboundMedia{
					Event:     eventMedia,
					StreamSid: s.StreamSid(),
					Media:     mediaPayload{Payload: base64.StdEncoding.EncodeToString(item.audio)},
				}
			}

			payload, err := json.Marshal(msg)
			if err != nil {
				s.log.Error().Err(err).Msg("Failed to encode outbound frame")
				continue
			}

			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.log.Warn().Err(err).Msg("Media stream write failed")
				return
			}
		}
	}
}
