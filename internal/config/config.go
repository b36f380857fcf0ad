// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ServiceConfig holds service identity and listener settings.
type ServiceConfig struct {
	Name     string `env:"SERVICE_NAME" envDefault:"speech-relay-service"`
	Env      string `env:"ENV" envDefault:"production"`
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
}

// AuthConfig holds the token verification settings.
//
// PublicKeyPEM is supplied newline-escaped (literal `\n` sequences) so it
// can live in a single environment variable; PublicKey() unescapes it.
type AuthConfig struct {
	PublicKeyPEM string `env:"AUTH_PUBLIC_KEY,required"`
}

// PublicKey returns the PEM block with escaped newlines restored.
func (a AuthConfig) PublicKey() string {
	return strings.ReplaceAll(a.PublicKeyPEM, `\n`, "\n")
}

// STTConfig holds the recognition engine settings. The streaming config
// sent to the engine is fixed for the life of each session.
type STTConfig struct {
	Provider        string `env:"STT_PROVIDER" envDefault:"google"`
	LanguageCode    string `env:"STT_LANGUAGE_CODE" envDefault:"en-US"`
	SampleRateHz    int    `env:"STT_SAMPLE_RATE_HZ" envDefault:"16000"`
	AudioEncoding   string `env:"STT_AUDIO_ENCODING" envDefault:"WEBM_OPUS"`
	InterimResults  bool   `env:"STT_INTERIM_RESULTS" envDefault:"true"`
	CredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
}

// SessionConfig holds per-session policy settings.
//
// IdleTimeout of zero disables the idle check; a positive value closes a
// session that has seen no audio and no results for the whole window.
type SessionConfig struct {
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"0"`
}

// KafkaConfig holds the optional transcript event mirror settings.
type KafkaConfig struct {
	Enabled      bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	Brokers      []string `env:"KAFKA_BROKERS"`
	TopicPartial string   `env:"KAFKA_TOPIC_PARTIAL" envDefault:"relay.transcript.partial"`
	TopicFinal   string   `env:"KAFKA_TOPIC_FINAL" envDefault:"relay.transcript.final"`
	Principal    string   `env:"KAFKA_PRINCIPAL" envDefault:"svc-speech-relay"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
}

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig
	Auth          AuthConfig
	STT           STTConfig
	Session       SessionConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// Load parses the environment into a Configuration and validates it.
func Load() (*Configuration, error) {
	var cfg Configuration
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that env tags cannot express.
func (c *Configuration) Validate() error {
	switch c.STT.Provider {
	case "google", "mock":
	default:
		return fmt.Errorf("STT_PROVIDER must be google or mock, got %q", c.STT.Provider)
	}
	if c.STT.SampleRateHz <= 0 {
		return fmt.Errorf("STT_SAMPLE_RATE_HZ must be positive, got %d", c.STT.SampleRateHz)
	}
	if c.Session.IdleTimeout < 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must not be negative, got %v", c.Session.IdleTimeout)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	return nil
}

// IsDevelopment reports whether the service runs in a dev environment.
func (c *Configuration) IsDevelopment() bool {
	return c.Service.Env == "dev" || c.Service.Env == "development"
}
