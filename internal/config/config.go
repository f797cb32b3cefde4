// Package config loads service configuration from the environment. Every
// value has a default so the service boots in a development shell with no
// setup; invalid values fall back to the default rather than failing startup.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the voice receptionist service.
type Config struct {
	Service       ServiceConfig
	Agent         AgentConfig
	Webhooks      WebhookConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds core service identity and listener settings.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
	// PublicHost is the externally reachable host for the media stream
	// WebSocket URL rendered into call instructions. When empty the Host
	// header of the incoming webhook is used instead.
	PublicHost string
}

// AgentConfig holds conversational agent settings.
type AgentConfig struct {
	Provider     string
	APIKey       string
	Model        string
	Voice        string
	SampleRateHz int
	SpeaksFirst  bool
	Greeting     string
}

// WebhookConfig holds the workflow collaborator endpoints. An empty URL
// disables the corresponding call.
type WebhookConfig struct {
	CallStartURL       string
	BookAppointmentURL string
	PostCallURL        string
}

// KafkaConfig holds Kafka publisher settings.
type KafkaConfig struct {
	Enabled          bool
	Brokers          []string
	TopicTranscripts string
	TopicCalls       string
	Principal        string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	MetricsAddr string
}

// Load reads configuration from environment variables.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-voice-receptionist")

	return &Config{
		Service: ServiceConfig{
			Principal:  principal,
			HTTPPort:   envOrDefault("HTTP_PORT", "8080"),
			PublicHost: envOrDefault("PUBLIC_HOST", ""),
		},
		Agent: AgentConfig{
			Provider:     envOrDefault("AGENT_PROVIDER", "mock"),
			APIKey:       envOrDefault("GEMINI_API_KEY", ""),
			Model:        envOrDefault("GEMINI_MODEL", "gemini-2.5-flash-native-audio-preview-12-2025"),
			Voice:        envOrDefault("AGENT_VOICE", "Puck"),
			SampleRateHz: supportedRate(envOrDefaultInt("AGENT_SAMPLE_RATE_HZ", 24000)),
			SpeaksFirst:  envOrDefaultBool("AGENT_SPEAKS_FIRST", true),
			Greeting:     envOrDefault("AGENT_GREETING", "Greet the caller warmly and ask how you can help."),
		},
		Webhooks: WebhookConfig{
			CallStartURL:       envOrDefault("N8N_CALL_START_URL", ""),
			BookAppointmentURL: envOrDefault("N8N_BOOK_APPOINTMENT_URL", ""),
			PostCallURL:        envOrDefault("N8N_POST_CALL_URL", ""),
		},
		Kafka: KafkaConfig{
			Enabled:          envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:          splitAndTrim(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
			TopicTranscripts: envOrDefault("KAFKA_TOPIC_TRANSCRIPTS", "voice.call.transcripts"),
			TopicCalls:       envOrDefault("KAFKA_TOPIC_CALLS", "voice.call.events"),
			Principal:        envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
	}
}

// supportedRate restricts the agent sample rate to the values the live
// audio API accepts.
func supportedRate(hz int) int {
	if hz == 16000 || hz == 24000 {
		return hz
	}
	return 24000
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return def
	}
	return b
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
