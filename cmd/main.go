package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"

	grpcapi "rtc-session-orchestrator/internal/api/grpc"
	"rtc-session-orchestrator/internal/app"
	"rtc-session-orchestrator/internal/config"
	"rtc-session-orchestrator/internal/events"
	apihttp "rtc-session-orchestrator/internal/http"
	"rtc-session-orchestrator/internal/observability"
	"rtc-session-orchestrator/internal/observability/metrics"
	"rtc-session-orchestrator/internal/service/provider"
	"rtc-session-orchestrator/internal/service/provider/agora"
	"rtc-session-orchestrator/internal/service/provider/mock"
	"rtc-session-orchestrator/internal/service/session"
	"rtc-session-orchestrator/internal/service/token"
	"rtc-session-orchestrator/internal/service/transcript"
	"rtc-session-orchestrator/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Config validation failed")
	}

	injector := setupDI(cfg)

	// app.New configures the global logger, so it is resolved first.
	application := do.MustInvoke[*app.Application](injector)
	application.Logger.Info().Msg("startup: dependency graph built")

	if err := run(cfg, injector, application); err != nil {
		application.Logger.Fatal().Err(err).Msg("Service stopped with error")
	}
}

func setupDI(cfg *config.Configuration) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.Provide(injector, func(i do.Injector) (*app.Application, error) {
		return app.New(do.MustInvoke[*config.Configuration](i)), nil
	})
	store.RegisterDI(injector)
	events.RegisterDI(injector)
	token.RegisterDI(injector)
	transcript.RegisterDI(injector)
	do.Provide(injector, newProviderClient)
	do.Provide(injector, newSessionManager)

	return injector
}

func newProviderClient(i do.Injector) (provider.Client, error) {
	cfg := do.MustInvoke[*config.Configuration](i)
	if cfg.Provider.Mode == config.ProviderMock {
		log.Warn().Msg("Using in-memory mock provider")
		return mock.New(), nil
	}
	return agora.New(agora.Config{
		BaseURL:        cfg.Provider.BaseURL,
		AppID:          cfg.Provider.AppID,
		CustomerKey:    cfg.Provider.CustomerKey,
		CustomerSecret: cfg.Provider.CustomerSecret,
		Timeout:        cfg.Provider.Timeout,
		Recording: agora.RecordingConfig{
			Mode:           cfg.Recording.Mode,
			MaxIdleTime:    cfg.Recording.MaxIdleTime,
			FileNamePrefix: cfg.Recording.FileNamePrefix,
			AVFileTypes:    cfg.Recording.AVFileTypes,
			Storage: agora.StorageConfig{
				Vendor:    cfg.Recording.StorageVendor,
				Region:    cfg.Recording.StorageRegion,
				Bucket:    cfg.Recording.StorageBucket,
				AccessKey: cfg.Recording.StorageKey,
				SecretKey: cfg.Recording.StorageSecret,
			},
		},
		Transcription: agora.TranscriptionConfig{
			Languages:   cfg.Transcription.Languages,
			MaxIdleTime: cfg.Transcription.MaxIdleTime,
		},
	}), nil
}

func newSessionManager(i do.Injector) (*session.Manager, error) {
	cfg := do.MustInvoke[*config.Configuration](i)
	return session.NewManager(
		session.Config{
			RecordingUID:     cfg.Session.RecordingUID,
			SubscriberBotUID: cfg.Session.SubscriberBotUID,
			PublisherBotUID:  cfg.Session.PublisherBotUID,
			BotTokenTTL:      cfg.Token.BotTTL,
			HealthInterval:   cfg.Session.HealthInterval,
			ReleaseOrphans:   cfg.Session.ReleaseOrphans,
		},
		do.MustInvoke[token.Issuer](i),
		do.MustInvoke[provider.Client](i),
		do.MustInvoke[*transcript.Hub](i),
		do.MustInvoke[*store.Journal](i),
	), nil
}

func run(cfg *config.Configuration, injector do.Injector, application *app.Application) error {
	manager := do.MustInvoke[*session.Manager](injector)
	hub := do.MustInvoke[*transcript.Hub](injector)
	journal := do.MustInvoke[*store.Journal](injector)
	publisher := do.MustInvoke[*events.Publisher](injector)
	issuer := do.MustInvoke[token.Issuer](injector)

	handlers := apihttp.NewHandlers(manager, issuer, apihttp.TokenTTLs{
		Legacy:      cfg.Token.LegacyTTL,
		LegacyTyped: cfg.Token.LegacyTypedTTL,
	}, journal)
	ingest := apihttp.NewIngest(hub, issuer, cfg.Token.ExpiryWarningLead, cfg.Token.DefaultTTL)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           apihttp.NewRouter(application, handlers, ingest),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		return err
	}
	grpcServer := grpcapi.New(hub, metrics.DefaultMetrics)

	obsServer := observability.NewServer(":"+cfg.Observability.MetricsPort, application.Ready)
	obsServer.Start()

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("Starting HTTP API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		log.Info().Str("addr", lis.Addr().String()).Msg("Starting gRPC server")
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	if err := application.Start(); err != nil {
		return err
	}
	grpcServer.SetServing(true)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("Shutting down")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("Server failed, shutting down")
	}

	application.Shutdown()
	grpcServer.SetServing(false)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP API server shutdown failed")
	}
	grpcServer.GracefulStop()

	if n := len(manager.Active()); n > 0 {
		log.Warn().Int("sessions", n).Msg("Leaving active provider jobs running")
	}
	manager.Close()
	hub.Close()
	journal.Close()
	if err := publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Kafka publisher close failed")
	}
	if err := obsServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Observability server shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
	return runErr
}
