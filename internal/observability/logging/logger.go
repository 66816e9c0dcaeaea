// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string // RFC3339, Unix, etc.
}

// DefaultConfig returns sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		TimeFormat: time.RFC3339,
	}
}

// Init initializes the global zerolog logger.
func Init(cfg Config) {
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.Kitchen,
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// WithChannel returns a logger with RTC channel context.
func WithChannel(channel string) zerolog.Logger {
	return log.With().
		Str("channel", channel).
		Logger()
}

// WithSession returns a logger with session context.
func WithSession(channel, kind, sessionID string) zerolog.Logger {
	return log.With().
		Str("channel", channel).
		Str("kind", kind).
		Str("sessionId", sessionID).
		Logger()
}

// WithJob returns a logger with provider job context.
func WithJob(channel, kind, resourceID, jobID string) zerolog.Logger {
	return log.With().
		Str("channel", channel).
		Str("kind", kind).
		Str("resourceId", resourceID).
		Str("jobId", jobID).
		Logger()
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}
