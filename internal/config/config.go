// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	ProviderAgora = "agora"
	ProviderMock  = "mock"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig
	Provider      ProviderConfig
	Recording     RecordingConfig
	Transcription TranscriptionConfig
	Session       SessionConfig
	Token         TokenConfig
	Transcript    TranscriptConfig
	Kafka         KafkaConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Principal       string        `env:"SERVICE_PRINCIPAL" envDefault:"svc-rtc-orchestrator"`
	Env             string        `env:"ENV" envDefault:"production"`
	HTTPPort        string        `env:"HTTP_PORT" envDefault:"8080"`
	GRPCPort        string        `env:"GRPC_PORT" envDefault:"50051"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// ProviderConfig selects and authenticates the RTC vendor.
type ProviderConfig struct {
	Mode           string        `env:"PROVIDER_MODE" envDefault:"agora"`
	BaseURL        string        `env:"AGORA_BASE_URL" envDefault:"https://api.agora.io"`
	AppID          string        `env:"AGORA_APP_ID"`
	AppCertificate string        `env:"AGORA_APP_CERTIFICATE"`
	CustomerKey    string        `env:"AGORA_CUSTOMER_KEY"`
	CustomerSecret string        `env:"AGORA_CUSTOMER_SECRET"`
	Timeout        time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
}

type RecordingConfig struct {
	Mode           string   `env:"RECORDING_MODE" envDefault:"mix"`
	MaxIdleTime    int      `env:"RECORDING_MAX_IDLE_TIME" envDefault:"30"`
	FileNamePrefix []string `env:"RECORDING_FILE_NAME_PREFIX" envDefault:"agora" envSeparator:","`
	AVFileTypes    []string `env:"RECORDING_AV_FILE_TYPES" envDefault:"hls,mp4" envSeparator:","`
	StorageVendor  int      `env:"RECORDING_STORAGE_VENDOR" envDefault:"1"`
	StorageRegion  int      `env:"RECORDING_STORAGE_REGION" envDefault:"0"`
	StorageBucket  string   `env:"RECORDING_STORAGE_BUCKET"`
	StorageKey     string   `env:"RECORDING_STORAGE_ACCESS_KEY"`
	StorageSecret  string   `env:"RECORDING_STORAGE_SECRET_KEY"`
}

type TranscriptionConfig struct {
	Languages   []string `env:"TRANSCRIPTION_LANGUAGES" envDefault:"en-US" envSeparator:","`
	MaxIdleTime int      `env:"TRANSCRIPTION_MAX_IDLE_TIME" envDefault:"50"`
}

// SessionConfig holds the bot identities and health polling for managed sessions.
type SessionConfig struct {
	RecordingUID     string        `env:"RECORDING_BOT_UID" envDefault:"1"`
	SubscriberBotUID string        `env:"TRANSCRIPTION_SUBSCRIBER_BOT_UID" envDefault:"2"`
	PublisherBotUID  string        `env:"TRANSCRIPTION_PUBLISHER_BOT_UID" envDefault:"3"`
	HealthInterval   time.Duration `env:"SESSION_HEALTH_INTERVAL" envDefault:"10s"`
	ReleaseOrphans   bool          `env:"SESSION_RELEASE_ORPHANS" envDefault:"false"`
}

type TokenConfig struct {
	DefaultTTL        uint32        `env:"TOKEN_DEFAULT_TTL" envDefault:"3600"`
	BotTTL            uint32        `env:"TOKEN_BOT_TTL" envDefault:"3600"`
	LegacyTTL         uint32        `env:"TOKEN_LEGACY_TTL" envDefault:"45"`
	LegacyTypedTTL    uint32        `env:"TOKEN_LEGACY_TYPED_TTL" envDefault:"600"`
	ExpiryWarningLead time.Duration `env:"TOKEN_EXPIRY_WARNING_LEAD" envDefault:"30s"`
}

type TranscriptConfig struct {
	QueueSize       int  `env:"TRANSCRIPT_QUEUE_SIZE" envDefault:"256"`
	PublishPartials bool `env:"TRANSCRIPT_PUBLISH_PARTIALS" envDefault:"true"`
}

type KafkaConfig struct {
	Enabled      bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	Brokers      []string `env:"KAFKA_BROKERS" envSeparator:","`
	TopicPartial string   `env:"KAFKA_TOPIC_PARTIAL" envDefault:"rtc.transcript.partial"`
	TopicFinal   string   `env:"KAFKA_TOPIC_FINAL" envDefault:"rtc.transcript.final"`
}

// DatabaseConfig enables the session journal when URL is set.
type DatabaseConfig struct {
	URL       string `env:"DATABASE_URL"`
	QueueSize int    `env:"JOURNAL_QUEUE_SIZE" envDefault:"1024"`
}

type ObservabilityConfig struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
}

// Load reads an optional .env file, parses the environment and validates the result.
func Load() (*Configuration, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Configuration
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements that env tags cannot express.
func (c *Configuration) Validate() error {
	switch c.Provider.Mode {
	case ProviderMock:
	case ProviderAgora:
		for _, req := range c.requiredFieldChecks() {
			if req.value == "" {
				return fmt.Errorf("%s is required when PROVIDER_MODE=agora", req.name)
			}
		}
	default:
		return fmt.Errorf("PROVIDER_MODE must be %q or %q, got %q", ProviderAgora, ProviderMock, c.Provider.Mode)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	if c.Session.HealthInterval <= 0 {
		return fmt.Errorf("SESSION_HEALTH_INTERVAL must be positive, got %s", c.Session.HealthInterval)
	}
	if c.Transcript.QueueSize <= 0 {
		return fmt.Errorf("TRANSCRIPT_QUEUE_SIZE must be positive, got %d", c.Transcript.QueueSize)
	}
	if c.Token.DefaultTTL == 0 || c.Token.BotTTL == 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	uids := map[string]string{
		"RECORDING_BOT_UID":                c.Session.RecordingUID,
		"TRANSCRIPTION_SUBSCRIBER_BOT_UID": c.Session.SubscriberBotUID,
		"TRANSCRIPTION_PUBLISHER_BOT_UID":  c.Session.PublisherBotUID,
	}
	for name, v := range uids {
		if v == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	if c.Session.SubscriberBotUID == c.Session.PublisherBotUID {
		return fmt.Errorf("transcription bot uids must differ, both are %q", c.Session.PublisherBotUID)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Configuration) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "AGORA_APP_ID", value: c.Provider.AppID},
		{name: "AGORA_APP_CERTIFICATE", value: c.Provider.AppCertificate},
		{name: "AGORA_CUSTOMER_KEY", value: c.Provider.CustomerKey},
		{name: "AGORA_CUSTOMER_SECRET", value: c.Provider.CustomerSecret},
	}
}

// IsDevelopment reports whether console logging and other dev defaults apply.
func (c *Configuration) IsDevelopment() bool {
	return c.Service.Env == "dev" || c.Service.Env == "development"
}
