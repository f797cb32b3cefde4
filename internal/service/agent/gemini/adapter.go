// Package gemini provides a Gemini Live API agent adapter with native audio
// dialog, booking tool declaration, and two-sided transcription.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"ai-voice-receptionist/internal/observability/logging"
	"ai-voice-receptionist/internal/schema"
	"ai-voice-receptionist/internal/service/agent"
)

// Config holds Gemini Live connection settings.
type Config struct {
	APIKey       string
	Model        string
	Voice        string
	SampleRateHz int
}

// DefaultConfig returns the production defaults for the native audio model.
func DefaultConfig() Config {
	return Config{
		Model:        "gemini-2.5-flash-native-audio-preview-12-2025",
		Voice:        "Puck",
		SampleRateHz: 24000,
	}
}

// Dialer opens Gemini Live sessions.
type Dialer struct {
	client *genai.Client
	cfg    Config
}

// New creates a Gemini dialer. Requires an API key; zero config fields fall
// back to DefaultConfig values.
func New(ctx context.Context, cfg Config) (*Dialer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Voice == "" {
		cfg.Voice = def.Voice
	}
	if cfg.SampleRateHz <= 0 {
		cfg.SampleRateHz = def.SampleRateHz
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Dialer{client: client, cfg: cfg}, nil
}

// Dial connects a live session for one call.
func (d *Dialer) Dial(ctx context.Context, params agent.SessionParams) (agent.Session, error) {
	live, err := d.client.Live.Connect(ctx, d.cfg.Model, liveConfig(d.cfg, params.SystemInstruction))
	if err != nil {
		return nil, fmt.Errorf("connect live session: %w", err)
	}

	s := &Session{
		live:     live,
		mimeType: fmt.Sprintf("audio/pcm;rate=%d", d.cfg.SampleRateHz),
		events:   make(chan agent.Event, 256),
		done:     make(chan struct{}),
		closing:  make(chan struct{}),
		log:      logging.WithAgent(params.CallSid, "gemini"),
	}
	go s.readLoop()
	return s, nil
}

// liveConfig builds the live connection config: audio-only responses, the
// tenant's system prompt, the configured prebuilt voice, the booking tool,
// and transcription for both directions.
func liveConfig(cfg Config, systemInstruction string) *genai.LiveConnectConfig {
	out := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		},
		Tools:                    []*genai.Tool{bookingTool()},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if systemInstruction != "" {
		out.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}
	return out
}

// bookingTool declares the appointment booking function the agent may call.
func bookingTool() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        schema.ActionBookAppointment,
				Description: "Book an appointment once the caller's name, email, date, time and reason have been collected.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"callerName":      {Type: genai.TypeString, Description: "Caller's full name"},
						"callerEmail":     {Type: genai.TypeString, Description: "Caller's email address"},
						"date":            {Type: genai.TypeString, Description: "Appointment date in YYYY-MM-DD"},
						"time":            {Type: genai.TypeString, Description: "Appointment time in HH:MM, 24-hour"},
						"reason":          {Type: genai.TypeString, Description: "Reason for the appointment"},
						"durationMinutes": {Type: genai.TypeInteger, Description: "Appointment length in minutes, defaults to 60"},
					},
					Required: []string{"callerName", "callerEmail", "date", "time", "reason"},
				},
			},
		},
	}
}

// Session is one live Gemini conversation.
type Session struct {
	live     *genai.Session
	mimeType string

	events  chan agent.Event
	done    chan struct{}
	closing chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	log zerolog.Logger
}

// Events yields the agent leg's event stream.
func (s *Session) Events() <-chan agent.Event {
	return s.events
}

// SendAudio forwards caller PCM to the live session.
func (s *Session) SendAudio(ctx context.Context, pcm []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return agent.ErrSessionClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.live.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: pcm, MIMEType: s.mimeType},
	})
}

// SendText injects a user-role text turn.
func (s *Session) SendText(ctx context.Context, text string, endOfTurn bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return agent.ErrSessionClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.live.SendClientContent(genai.LiveClientContentInput{
		Turns: []*genai.Content{
			{Role: genai.RoleUser, Parts: []*genai.Part{{Text: text}}},
		},
		TurnComplete: endOfTurn,
	})
}

// SendActionResponse answers a pending tool call so the agent can resume.
func (s *Session) SendActionResponse(ctx context.Context, id, name string, result map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return agent.ErrSessionClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.live.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: []*genai.FunctionResponse{
			{ID: id, Name: name, Response: result},
		},
	})
}

// Close ends the session. Blocks until the read loop has drained and the
// event channel is closed.
func (s *Session) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closing)
		closeErr = s.live.Close()
	})
	<-s.done
	return closeErr
}

func (s *Session) readLoop() {
	defer close(s.done)
	defer close(s.events)

	for {
		msg, err := s.live.Receive()
		if err != nil {
			if !s.closed.Load() && !errors.Is(err, io.EOF) {
				s.log.Warn().Err(err).Msg("Agent session receive ended")
			}
			return
		}

		events, rejections := translate(msg)
		for _, reject := range rejections {
			s.rejectAction(reject)
		}
		for _, ev := range events {
			select {
			case s.events <- ev:
			case <-s.closing:
				return
			}
		}
	}
}

// rejectAction answers a malformed or unknown tool call with a failure
// result. The agent voices the problem and the conversation continues.
func (s *Session) rejectAction(resp *genai.FunctionResponse) {
	s.log.Warn().Str("action", resp.Name).Msg("Rejecting malformed action request")
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	err := s.live.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: []*genai.FunctionResponse{resp},
	})
	if err != nil {
		s.log.Warn().Err(err).Str("action", resp.Name).Msg("Failed to send action rejection")
	}
}

// translate converts one server message into relay events, in the order the
// payload carries them. Tool calls that fail validation are returned as
// ready-to-send rejections instead of events.
func translate(msg *genai.LiveServerMessage) ([]agent.Event, []*genai.FunctionResponse) {
	if msg == nil {
		return nil, nil
	}

	var events []agent.Event
	var rejections []*genai.FunctionResponse

	if sc := msg.ServerContent; sc != nil {
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			events = append(events, agent.Event{Transcript: &agent.Transcript{
				Role:  agent.RoleCaller,
				Text:  sc.InputTranscription.Text,
				Final: sc.InputTranscription.Finished,
			}})
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			events = append(events, agent.Event{Transcript: &agent.Transcript{
				Role:  agent.RoleAgent,
				Text:  sc.OutputTranscription.Text,
				Final: sc.OutputTranscription.Finished,
			}})
		}
		if sc.Interrupted {
			events = append(events, agent.Event{Interrupted: true})
		}
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
					continue
				}
				events = append(events, agent.Event{Audio: part.InlineData.Data})
			}
		}
		if sc.TurnComplete {
			events = append(events, agent.Event{TurnComplete: true})
		}
	}

	if tc := msg.ToolCall; tc != nil {
		for _, fc := range tc.FunctionCalls {
			if fc == nil {
				continue
			}
			if fc.Name != schema.ActionBookAppointment {
				rejections = append(rejections, &genai.FunctionResponse{
					ID:       fc.ID,
					Name:     fc.Name,
					Response: schema.FailureResult(fmt.Sprintf("Unknown action %q.", fc.Name)),
				})
				continue
			}
			args, err := schema.ParseBookingArgs(fc.Args)
			if err != nil {
				rejections = append(rejections, &genai.FunctionResponse{
					ID:       fc.ID,
					Name:     fc.Name,
					Response: schema.FailureResult(err.Error()),
				})
				continue
			}
			events = append(events, agent.Event{Action: &agent.ActionRequest{
				ID:   fc.ID,
				Name: fc.Name,
				Args: args,
			}})
		}
	}

	return events, rejections
}
