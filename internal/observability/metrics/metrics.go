// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_voice_receptionist"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Call metrics
	CallsTotal   prometheus.Counter
	CallsActive  prometheus.Gauge
	CallsBooked  prometheus.Counter
	CallDuration prometheus.Histogram

	// Media stream metrics
	StreamsTotal   prometheus.Counter
	StreamsActive  prometheus.Gauge
	StreamsSuccess prometheus.Counter
	StreamsFailed  prometheus.Counter
	StreamDuration prometheus.Histogram

	// Audio metrics
	AudioBytesInbound  prometheus.Counter
	AudioBytesOutbound prometheus.Counter
	FramesInbound      prometheus.Counter
	FramesOutbound     prometheus.Counter
	FramesMalformed    *prometheus.CounterVec

	// Agent metrics
	AgentSessions      *prometheus.CounterVec
	AgentSessionErrors *prometheus.CounterVec
	AgentTurns         prometheus.Counter
	AgentInterruptions prometheus.Counter

	// Action metrics
	ActionsTotal *prometheus.CounterVec

	// Transcript metrics
	TranscriptsTotal *prometheus.CounterVec

	// Webhook metrics
	WebhookRequests *prometheus.CounterVec
	WebhookErrors   *prometheus.CounterVec
	WebhookLatency  *prometheus.HistogramVec

	// Handoff metrics
	HandoffsTotal  prometheus.Counter
	HandoffsFailed prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Call metrics
		CallsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total number of calls accepted",
		}),
		CallsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_active",
			Help:      "Number of currently active calls",
		}),
		CallsBooked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_booked_total",
			Help:      "Total number of calls that ended with a confirmed appointment",
		}),
		CallDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Duration of calls in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),

		// Media stream metrics
		StreamsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Total number of media streams started",
		}),
		StreamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Number of currently active media streams",
		}),
		StreamsSuccess: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_success_total",
			Help:      "Total number of cleanly completed media streams",
		}),
		StreamsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_failed_total",
			Help:      "Total number of media streams that ended in error",
		}),
		StreamDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Duration of media streams in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),

		// Audio metrics
		AudioBytesInbound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_inbound_total",
			Help:      "Total caller audio bytes received from the phone network",
		}),
		AudioBytesOutbound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_outbound_total",
			Help:      "Total agent audio bytes sent to the phone network",
		}),
		FramesInbound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_inbound_total",
			Help:      "Total caller audio frames received",
		}),
		FramesOutbound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_outbound_total",
			Help:      "Total agent audio frames sent",
		}),
		FramesMalformed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_malformed_total",
			Help:      "Total malformed media frames dropped",
		}, []string{"reason"}),

		// Agent metrics
		AgentSessions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_sessions_total",
			Help:      "Total number of agent sessions dialed",
		}, []string{"provider"}),
		AgentSessionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_session_errors_total",
			Help:      "Total number of agent session errors",
		}, []string{"provider", "error_type"}),
		AgentTurns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_turns_total",
			Help:      "Total number of completed agent turns",
		}),
		AgentInterruptions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_interruptions_total",
			Help:      "Total number of times a caller interrupted the agent",
		}),

		// Action metrics
		ActionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Total number of agent action requests by outcome",
		}, []string{"action", "status"}),

		// Transcript metrics
		TranscriptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_total",
			Help:      "Total number of transcript fragments by role",
		}, []string{"role"}),

		// Webhook metrics
		WebhookRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_requests_total",
			Help:      "Total number of workflow webhook requests",
		}, []string{"endpoint"}),
		WebhookErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_errors_total",
			Help:      "Total number of workflow webhook failures",
		}, []string{"endpoint"}),
		WebhookLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_latency_seconds",
			Help:      "Workflow webhook request latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		}, []string{"endpoint"}),

		// Handoff metrics
		HandoffsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Total number of post-call handoffs attempted",
		}),
		HandoffsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_failed_total",
			Help:      "Total number of post-call handoffs that failed",
		}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordCallStart records a new call being accepted.
func (m *Metrics) RecordCallStart() {
	m.CallsTotal.Inc()
	m.CallsActive.Inc()
}

// RecordCallEnd records a call ending.
func (m *Metrics) RecordCallEnd(booked bool, durationSeconds float64) {
	m.CallsActive.Dec()
	m.CallDuration.Observe(durationSeconds)
	if booked {
		m.CallsBooked.Inc()
	}
}

// RecordStreamStart records a new media stream starting.
func (m *Metrics) RecordStreamStart() {
	m.StreamsTotal.Inc()
	m.StreamsActive.Inc()
}

// RecordStreamEnd records a media stream ending.
func (m *Metrics) RecordStreamEnd(success bool, durationSeconds float64) {
	m.StreamsActive.Dec()
	m.StreamDuration.Observe(durationSeconds)
	if success {
		m.StreamsSuccess.Inc()
	} else {
		m.StreamsFailed.Inc()
	}
}

// RecordInboundAudio records caller audio received.
func (m *Metrics) RecordInboundAudio(bytes int) {
	m.AudioBytesInbound.Add(float64(bytes))
	m.FramesInbound.Inc()
}

// RecordOutboundAudio records agent audio sent to the caller.
func (m *Metrics) RecordOutboundAudio(bytes int) {
	m.AudioBytesOutbound.Add(float64(bytes))
	m.FramesOutbound.Inc()
}

// RecordMalformedFrame records a dropped media frame.
func (m *Metrics) RecordMalformedFrame(reason string) {
	m.FramesMalformed.WithLabelValues(reason).Inc()
}

// RecordAgentSession records an agent session being dialed.
func (m *Metrics) RecordAgentSession(provider string) {
	m.AgentSessions.WithLabelValues(provider).Inc()
}

// RecordAgentError records an agent session error.
func (m *Metrics) RecordAgentError(provider, errorType string) {
	m.AgentSessionErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordAgentTurn records a completed agent turn.
func (m *Metrics) RecordAgentTurn() {
	m.AgentTurns.Inc()
}

// RecordInterruption records a caller interrupting agent speech.
func (m *Metrics) RecordInterruption() {
	m.AgentInterruptions.Inc()
}

// RecordAction records an agent action request and its outcome.
func (m *Metrics) RecordAction(action, status string) {
	m.ActionsTotal.WithLabelValues(action, status).Inc()
}

// RecordTranscript records a transcript fragment.
func (m *Metrics) RecordTranscript(role string) {
	m.TranscriptsTotal.WithLabelValues(role).Inc()
}

// RecordWebhook records a workflow webhook request.
func (m *Metrics) RecordWebhook(endpoint string, err error, latencySeconds float64) {
	m.WebhookRequests.WithLabelValues(endpoint).Inc()
	m.WebhookLatency.WithLabelValues(endpoint).Observe(latencySeconds)
	if err != nil {
		m.WebhookErrors.WithLabelValues(endpoint).Inc()
	}
}

// RecordHandoff records a post-call handoff attempt.
func (m *Metrics) RecordHandoff(err error) {
	m.HandoffsTotal.Inc()
	if err != nil {
		m.HandoffsFailed.Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
