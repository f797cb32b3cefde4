package call

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-voice-receptionist/internal/events"
	"ai-voice-receptionist/internal/models"
	"ai-voice-receptionist/internal/observability/logging"
	"ai-voice-receptionist/internal/observability/metrics"
	"ai-voice-receptionist/internal/schema"
	"ai-voice-receptionist/internal/webhooks"
)

// Collaborators is the slice of the webhook client the coordinator needs.
type Collaborators interface {
	LookupTenant(ctx context.Context, callerPhone, calledNumber, callSid string) (models.TenantConfig, error)
	BookAppointment(ctx context.Context, sess *models.CallSession, args schema.BookingArgs) map[string]any
	PostCall(ctx context.Context, callSid string, payload models.HandoffPayload) error
}

// Coordinator drives the call lifecycle around the registry: tenant lookup
// at call start, booking mid-call, and the single post-call handoff.
type Coordinator struct {
	registry  *Registry
	hooks     Collaborators
	publisher *events.Publisher
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewCoordinator creates a coordinator over the given registry and
// collaborators.
func NewCoordinator(registry *Registry, hooks Collaborators, publisher *events.Publisher) *Coordinator {
	return &Coordinator{
		registry:  registry,
		hooks:     hooks,
		publisher: publisher,
		metrics:   metrics.DefaultMetrics,
		log:       logging.WithComponent("call-coordinator"),
	}
}

// Begin resolves the tenant for an incoming call and registers the session.
// On lookup failure nothing is stored and the caller must reject the call.
func (c *Coordinator) Begin(ctx context.Context, callerPhone, calledNumber, callSid string) (*models.CallSession, error) {
	tenant, err := c.hooks.LookupTenant(ctx, callerPhone, calledNumber, callSid)
	if err != nil {
		c.log.Warn().Err(err).Str("callSid", callSid).Msg("Tenant lookup failed, rejecting call")
		return nil, err
	}

	sess := models.NewCallSession(callSid, callerPhone, calledNumber, tenant)
	if err := c.registry.Register(sess); err != nil {
		return nil, err
	}

	c.metrics.RecordCallStart()
	c.publisher.PublishCall(ctx, events.EventCallStarted, callSid, models.CallStarted{
		EventType:    events.EventCallStarted,
		CallSid:      callSid,
		CallerPhone:  callerPhone,
		CalledNumber: calledNumber,
		CompanyName:  tenant.CompanyName,
		Timestamp:    time.Now().UnixMilli(),
	})
	c.log.Info().
		Str("callSid", callSid).
		Str("company", tenant.CompanyName).
		Msg("Call registered")
	return sess, nil
}

// Book runs the booking round trip for an agent action request. The result
// map is handed back to the agent verbatim.
func (c *Coordinator) Book(ctx context.Context, sess *models.CallSession, args schema.BookingArgs) map[string]any {
	result := c.hooks.BookAppointment(ctx, sess, args)
	if success, _ := result["success"].(bool); success {
		c.metrics.RecordAction(schema.ActionBookAppointment, "ok")
	} else {
		c.metrics.RecordAction(schema.ActionBookAppointment, "failed")
	}
	return result
}

// Transcript publishes one transcript fragment for a call.
func (c *Coordinator) Transcript(ctx context.Context, callSid, role, text string, final bool) {
	c.metrics.RecordTranscript(role)
	c.publisher.PublishTranscript(ctx, callSid, models.CallTranscript{
		EventType: events.EventTranscript,
		CallSid:   callSid,
		Role:      role,
		Text:      text,
		Final:     final,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Finalize removes the session and runs the post-call handoff. Safe to call
// from every termination path; only the caller that wins the removal does
// any work, so the handoff fires exactly once per call.
func (c *Coordinator) Finalize(ctx context.Context, callSid string) {
	sess, ok := c.registry.Take(callSid)
	if !ok {
		return
	}

	// The handoff must outlive the stream context that triggered it.
	ctx = context.WithoutCancel(ctx)

	duration := time.Since(sess.StartedAt)
	payload := sess.HandoffPayload()

	err := c.hooks.PostCall(ctx, callSid, payload)
	c.metrics.RecordHandoff(err)
	if err != nil {
		c.log.Error().Err(err).Str("callSid", callSid).Msg("Post-call handoff failed")
	}

	c.metrics.RecordCallEnd(payload.AppointmentBooked, duration.Seconds())
	c.publisher.PublishCall(ctx, events.EventCallCompleted, callSid, models.CallCompleted{
		EventType:         events.EventCallCompleted,
		CallSid:           callSid,
		CompanyName:       payload.CompanyName,
		AppointmentBooked: payload.AppointmentBooked,
		DurationSeconds:   int64(duration.Seconds()),
		Timestamp:         time.Now().UnixMilli(),
	})
	c.log.Info().
		Str("callSid", callSid).
		Bool("booked", payload.AppointmentBooked).
		Dur("duration", duration).
		Msg("Call finalized")
}
