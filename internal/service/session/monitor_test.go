package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMonitor_HealthFailureStopsLocally(t *testing.T) {
	client := newMockClient()
	obs := &recordingObserver{}
	m, _ := newTestManager(client, 10*time.Millisecond, obs)
	defer m.Close()

	s, err := m.Start(context.Background(), "room1", KindRecording, StartOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.ProviderResourceID() != "res_abc" || s.ProviderJobID() != "sid_123" {
		t.Fatalf("unexpected ids %s/%s", s.ProviderResourceID(), s.ProviderJobID())
	}

	client.setQueryErr(errors.New("job not found"))
	waitUntil(t, time.Second, func() bool { return s.State() == StateStopped }, "health failure should stop the session")

	if client.count("stop") != 0 {
		t.Errorf("health failure must not call provider stop, got %d", client.count("stop"))
	}
	if s.StopReason() != "health check failed" {
		t.Errorf("unexpected stop reason %q", s.StopReason())
	}
	if !errors.Is(s.Err(), ErrHealthCheckFailed) {
		t.Errorf("expected ErrHealthCheckFailed, got %v", s.Err())
	}
	if !s.HealthStopped() {
		t.Error("expected HealthStopped")
	}

	queries := client.count("query")
	time.Sleep(50 * time.Millisecond)
	if client.count("query") != queries {
		t.Error("monitor should stop polling after a failure")
	}

	seen := obs.seen()
	if last := seen[len(seen)-1]; last != (transition{StateActive, StateStopped}) {
		t.Errorf("unexpected final transition %v", last)
	}
}

func TestMonitor_KeepsPollingOnSuccess(t *testing.T) {
	client := newMockClient()
	m, _ := newTestManager(client, 10*time.Millisecond)
	defer m.Close()

	s, _ := m.Start(context.Background(), "room1", KindTranscription, StartOptions{})

	waitUntil(t, time.Second, func() bool { return client.count("query") >= 3 }, "monitor should poll repeatedly")
	if s.State() != StateActive {
		t.Errorf("expected ACTIVE, got %v", s.State())
	}
}

func TestMonitor_ReleaseOrphans(t *testing.T) {
	client := newMockClient()
	issuer := &mockIssuer{}
	cfg := DefaultConfig()
	cfg.HealthInterval = 10 * time.Millisecond
	cfg.ReleaseOrphans = true
	m := NewManager(cfg, issuer, client)
	defer m.Close()

	s, _ := m.Start(context.Background(), "room1", KindRecording, StartOptions{})
	client.setQueryErr(errors.New("gone"))

	waitUntil(t, time.Second, func() bool { return client.count("stop") == 1 }, "orphaned job should be released")
	if s.State() != StateStopped {
		t.Errorf("expected STOPPED, got %v", s.State())
	}
	if _, err := m.Stop(context.Background(), s); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected no second release, got %v", err)
	}
}

func TestStop_AfterHealthFailureReleasesOnce(t *testing.T) {
	client := newMockClient()
	m, _ := newTestManager(client, 10*time.Millisecond)
	defer m.Close()

	s, _ := m.Start(context.Background(), "room1", KindRecording, StartOptions{})
	client.setQueryErr(errors.New("gone"))
	waitUntil(t, time.Second, func() bool { return s.State() == StateStopped }, "session should be health stopped")

	if _, err := m.Stop(context.Background(), s); err != nil {
		t.Fatalf("stop after health failure: %v", err)
	}
	if client.count("stop") != 1 {
		t.Errorf("expected one provider stop, got %d", client.count("stop"))
	}
	if s.State() != StateStopped {
		t.Errorf("expected state to stay STOPPED, got %v", s.State())
	}
	if _, err := m.Stop(context.Background(), s); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition on repeat, got %v", err)
	}
}

func TestStop_WinsOverInFlightHealthPoll(t *testing.T) {
	client := newMockClient()
	client.queryRelease = make(chan struct{})
	client.queryStarted = make(chan struct{}, 1)
	client.queryErr = errors.New("gone")
	m, _ := newTestManager(client, 10*time.Millisecond)
	defer m.Close()

	s, _ := m.Start(context.Background(), "room1", KindRecording, StartOptions{})

	select {
	case <-client.queryStarted:
	case <-time.After(time.Second):
		t.Fatal("health poll never started")
	}

	stopDone := make(chan error, 1)
	go func() {
		_, err := m.Stop(context.Background(), s)
		stopDone <- err
	}()
	waitUntil(t, time.Second, func() bool { return s.State() == StateStopping }, "stop should begin")

	// the failing poll result lands after Stop has begun
	close(client.queryRelease)

	select {
	case err := <-stopDone:
		if err != nil {
			t.Fatalf("stop: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("stop did not return")
	}

	if s.State() != StateStopped {
		t.Errorf("expected STOPPED, got %v", s.State())
	}
	if s.HealthStopped() {
		t.Error("in-flight poll must not apply after Stop")
	}
	if s.StopReason() != "stopped" {
		t.Errorf("expected explicit stop reason, got %q", s.StopReason())
	}
	if client.count("stop") != 1 {
		t.Errorf("expected exactly one provider stop, got %d", client.count("stop"))
	}
}

func TestMonitor_FreshPerSession(t *testing.T) {
	client := newMockClient()
	m, _ := newTestManager(client, time.Hour)
	defer m.Close()

	s1, _ := m.Start(context.Background(), "room1", KindRecording, StartOptions{})
	s1.mu.RLock()
	mon1 := s1.monitor
	s1.mu.RUnlock()

	if _, err := m.Stop(context.Background(), s1); err != nil {
		t.Fatalf("stop: %v", err)
	}
	select {
	case <-mon1.Done():
	default:
		t.Fatal("monitor must be finished when Stop returns")
	}

	s2, _ := m.Start(context.Background(), "room1", KindRecording, StartOptions{})
	s2.mu.RLock()
	mon2 := s2.monitor
	s2.mu.RUnlock()

	if mon2 == nil || mon2 == mon1 {
		t.Error("expected a new monitor for the new session")
	}
}

func TestClose_StopsMonitors(t *testing.T) {
	client := newMockClient()
	m, _ := newTestManager(client, 10*time.Millisecond)

	_, _ = m.Start(context.Background(), "room1", KindRecording, StartOptions{})
	waitUntil(t, time.Second, func() bool { return client.count("query") >= 1 }, "monitor should poll")
	m.Close()

	n := client.count("query")
	time.Sleep(50 * time.Millisecond)
	if client.count("query") != n {
		t.Error("monitors should stop polling after Close")
	}
}

// slowActivationObserver holds up the ACTIVE notification so a health
// failure racing it would be recorded first.
type slowActivationObserver struct {
	recordingObserver
	delay time.Duration
}

func (o *slowActivationObserver) SessionTransitioned(s *Session, from, to State) {
	if to == StateActive {
		time.Sleep(o.delay)
	}
	o.recordingObserver.SessionTransitioned(s, from, to)
}

func TestMonitor_StartsAfterActiveIsObserved(t *testing.T) {
	client := newMockClient()
	client.setQueryErr(errors.New("job not found"))
	obs := &slowActivationObserver{delay: 50 * time.Millisecond}
	m, _ := newTestManager(client, time.Millisecond, obs)
	defer m.Close()

	s, err := m.Start(context.Background(), "room1", KindRecording, StartOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitUntil(t, time.Second, func() bool { return s.State() == StateStopped }, "health failure should stop the session")
	waitUntil(t, time.Second, func() bool { return len(obs.seen()) == 4 }, "expected four transitions")

	seen := obs.seen()
	want := []transition{{StateStarting, StateActive}, {StateActive, StateStopped}}
	if got := seen[2:]; got[0] != want[0] || got[1] != want[1] {
		t.Errorf("observers saw transitions out of order: %v", seen)
	}
}
