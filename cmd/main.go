package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ai-voice-receptionist/internal/api/stream"
	"ai-voice-receptionist/internal/api/voice"
	"ai-voice-receptionist/internal/app"
	"ai-voice-receptionist/internal/config"
	"ai-voice-receptionist/internal/events"
	router "ai-voice-receptionist/internal/http"
	"ai-voice-receptionist/internal/observability"
	"ai-voice-receptionist/internal/service/agent"
	"ai-voice-receptionist/internal/service/agent/gemini"
	"ai-voice-receptionist/internal/service/agent/mock"
	"ai-voice-receptionist/internal/service/call"
	"ai-voice-receptionist/internal/service/relay"
	"ai-voice-receptionist/internal/webhooks"
)

func main() {
	cfg := config.Load()

	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Application start failed")
	}

	publisher := events.New(&events.Config{
		Enabled:          cfg.Kafka.Enabled,
		Brokers:          cfg.Kafka.Brokers,
		TopicTranscripts: cfg.Kafka.TopicTranscripts,
		TopicCalls:       cfg.Kafka.TopicCalls,
		Principal:        cfg.Kafka.Principal,
	})
	defer publisher.Close()

	hooks := webhooks.New(webhooks.Config{
		LookupURL:   cfg.Webhooks.CallStartURL,
		BookingURL:  cfg.Webhooks.BookAppointmentURL,
		PostCallURL: cfg.Webhooks.PostCallURL,
	})

	registry := call.NewRegistry()
	coordinator := call.NewCoordinator(registry, hooks, publisher)

	dialer, err := newAgentDialer(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.Agent.Provider).Msg("Agent dialer init failed")
	}

	voiceHandler := voice.New(coordinator, cfg.Service.PublicHost)
	streamHandler := stream.New(relay.Deps{
		Sessions: registry,
		Agents:   dialer,
		Calls:    coordinator,
	}, relay.Config{
		Provider:         cfg.Agent.Provider,
		AgentRate:        cfg.Agent.SampleRateHz,
		AgentSpeaksFirst: cfg.Agent.SpeaksFirst,
		Greeting:         cfg.Agent.Greeting,
	})

	obs := observability.NewServer(cfg.Observability.MetricsAddr, nil)
	obs.Start()

	srv := &http.Server{
		Addr:    ":" + cfg.Service.HTTPPort,
		Handler: router.NewRouter(voiceHandler, streamHandler),
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("provider", cfg.Agent.Provider).
			Msg("Voice receptionist listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	application.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	if err := obs.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Observability shutdown failed")
	}
}

// newAgentDialer picks the agent backend. Anything other than gemini gets
// the credential-free scripted agent.
func newAgentDialer(cfg *config.Config) (agent.Dialer, error) {
	switch cfg.Agent.Provider {
	case "gemini":
		return gemini.New(context.Background(), gemini.Config{
			APIKey:       cfg.Agent.APIKey,
			Model:        cfg.Agent.Model,
			Voice:        cfg.Agent.Voice,
			SampleRateHz: cfg.Agent.SampleRateHz,
		})
	default:
		return mock.New(cfg.Agent.SampleRateHz), nil
	}
}
