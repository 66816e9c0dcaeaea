package app

import (
	"testing"

	"rtc-session-orchestrator/internal/config"
)

func TestApplication_Lifecycle(t *testing.T) {
	cfg := &config.Configuration{
		Service:       config.ServiceConfig{Principal: "svc-test", Env: "test"},
		Provider:      config.ProviderConfig{Mode: config.ProviderMock},
		Observability: config.ObservabilityConfig{LogLevel: "debug", LogFormat: "json"},
	}

	a := New(cfg)
	if a.Ready() {
		t.Fatal("expected not ready before Start")
	}
	if a.Uptime() != 0 {
		t.Errorf("expected zero uptime before Start, got %v", a.Uptime())
	}

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !a.Ready() {
		t.Fatal("expected ready after Start")
	}
	if a.StartupTime.IsZero() {
		t.Error("expected startup time to be set")
	}

	a.Shutdown()
	if a.Ready() {
		t.Fatal("expected not ready after Shutdown")
	}
}
