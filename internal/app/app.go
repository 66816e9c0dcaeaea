package app

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rtc-session-orchestrator/internal/config"
	"rtc-session-orchestrator/internal/observability/logging"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	ready atomic.Bool
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Configuration) *Application {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	a.Logger.Info().
		Str("method", "New").
		Str("providerMode", cfg.Provider.Mode).
		Msg("RTC session orchestrator application created")
	return a
}

// setupLogger configures the global zerolog logger from the observability config.
func (a *Application) setupLogger() {
	lc := logging.DefaultConfig()
	if lvl := a.Cfg.Observability.LogLevel; lvl != "" {
		lc.Level = lvl
	}
	if f := a.Cfg.Observability.LogFormat; f != "" {
		lc.Format = f
	}
	if a.Cfg.IsDevelopment() {
		lc.Format = "console"
	}
	logging.Init(lc)

	a.Logger = log.With().
		Str("service", a.Cfg.Service.Principal).
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", a.Cfg.Service.Env).
		Msg("Logger setup completed")
}

// Start marks the service ready to serve traffic.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()
	a.ready.Store(true)
	a.Logger.Info().
		Str("method", "Start").
		Time("startupTime", a.StartupTime).
		Msg("RTC session orchestrator starting")
	return nil
}

// Ready reports whether readiness probes should pass.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Uptime is the time since Start.
func (a *Application) Uptime() time.Duration {
	if a.StartupTime.IsZero() {
		return 0
	}
	return time.Since(a.StartupTime)
}

// Shutdown flips readiness off so load balancers drain the instance.
func (a *Application) Shutdown() {
	a.ready.Store(false)
	a.Logger.Info().
		Str("method", "Shutdown").
		Dur("uptime", a.Uptime()).
		Msg("RTC session orchestrator shutting down")
}
