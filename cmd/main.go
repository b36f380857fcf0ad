package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"speech-relay-service/internal/api/ws"
	"speech-relay-service/internal/app"
	"speech-relay-service/internal/auth"
	"speech-relay-service/internal/config"
	"speech-relay-service/internal/events"
	httpapi "speech-relay-service/internal/http"
	"speech-relay-service/internal/observability"
	"speech-relay-service/internal/service/stt"
	"speech-relay-service/internal/service/stt/google"
	"speech-relay-service/internal/service/stt/mock"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not configured yet; write straight to stderr.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	application := app.New(cfg)
	logger := application.Logger
	if err := application.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Startup failed")
	}
	defer application.Shutdown()

	verifier, err := auth.NewVerifier(cfg.Auth.PublicKey())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure credential gate")
	}

	ctx := context.Background()
	factory, cleanup, err := buildEngineFactory(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure recognition engine")
	}
	defer cleanup()

	publisher := events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicPartial: cfg.Kafka.TopicPartial,
		TopicFinal:   cfg.Kafka.TopicFinal,
		Principal:    cfg.Kafka.Principal,
	})
	defer publisher.Close()

	relay := ws.NewServer(verifier, factory, publisher, logger, ws.Config{
		IdleTimeout: cfg.Session.IdleTimeout,
	})

	server := &http.Server{
		Addr:        ":" + cfg.Service.HTTPPort,
		Handler:     httpapi.NewRouter(relay),
		IdleTimeout: 120 * time.Second,
	}

	obsServer := observability.NewServer(":" + cfg.Observability.MetricsPort)
	obsServer.Start()

	go func() {
		logger.Info().Str("port", cfg.Service.HTTPPort).Msg("Speech relay service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown failed")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Observability shutdown failed")
	}
}

// buildEngineFactory wires the configured STT provider. The google
// client and its credentials are built once here and shared by every
// session.
func buildEngineFactory(ctx context.Context, cfg *config.Configuration) (ws.EngineFactory, func(), error) {
	switch cfg.STT.Provider {
	case "mock":
		return func() stt.Engine { return mock.New() }, func() {}, nil
	default:
		f, err := google.NewFactory(ctx, google.Config{
			LanguageCode:   cfg.STT.LanguageCode,
			SampleRateHz:   cfg.STT.SampleRateHz,
			AudioEncoding:  cfg.STT.AudioEncoding,
			InterimResults: cfg.STT.InterimResults,
		}, cfg.STT.CredentialsJSON)
		if err != nil {
			return nil, nil, err
		}
		return func() stt.Engine { return f.NewEngine() }, func() { _ = f.Close() }, nil
	}
}
