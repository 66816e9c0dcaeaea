package transcript

import (
	"errors"
	"testing"
	"time"

	"rtc-session-orchestrator/internal/service/session"
)

func TestHub_PipelineFollowsTranscriptionSession(t *testing.T) {
	sink := &recordingSink{}
	hub := NewHub(PipelineConfig{QueueSize: 4}, sink)
	defer hub.Close()

	s := &session.Session{ID: "room1-transcription-1", Kind: session.KindTranscription, Channel: "room1"}

	if err := hub.Submit("room1", frameBytes(1)); !errors.Is(err, ErrNoPipeline) {
		t.Fatalf("Submit before active = %v, want ErrNoPipeline", err)
	}

	hub.SessionTransitioned(s, session.StateStarting, session.StateActive)
	if !hub.Active("room1") {
		t.Fatal("expected pipeline after ACTIVE")
	}
	if err := hub.Submit("room1", frameBytes(1, Word{Text: "hi", IsFinal: true})); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		lines, _ := sink.snapshot()
		return len(lines) == 1
	}, "line from hub pipeline")

	hub.SessionTransitioned(s, session.StateActive, session.StateStopping)
	if hub.Active("room1") {
		t.Fatal("pipeline should be discarded once the session leaves ACTIVE")
	}
	if err := hub.Submit("room1", frameBytes(1)); !errors.Is(err, ErrNoPipeline) {
		t.Errorf("Submit after stop = %v, want ErrNoPipeline", err)
	}
}

func TestHub_IgnoresRecordingSessions(t *testing.T) {
	hub := NewHub(PipelineConfig{}, &recordingSink{})
	defer hub.Close()

	s := &session.Session{ID: "room1-recording-1", Kind: session.KindRecording, Channel: "room1"}
	hub.SessionTransitioned(s, session.StateStarting, session.StateActive)

	if hub.Active("room1") {
		t.Error("recording sessions must not open a transcript pipeline")
	}
}

func TestHub_StaleSessionDoesNotCloseNewPipeline(t *testing.T) {
	hub := NewHub(PipelineConfig{}, &recordingSink{})
	defer hub.Close()

	old := &session.Session{ID: "room1-transcription-1", Kind: session.KindTranscription, Channel: "room1"}
	cur := &session.Session{ID: "room1-transcription-2", Kind: session.KindTranscription, Channel: "room1"}

	hub.SessionTransitioned(old, session.StateStarting, session.StateActive)
	hub.SessionTransitioned(cur, session.StateStarting, session.StateActive)
	hub.SessionTransitioned(old, session.StateActive, session.StateStopped)

	if !hub.Active("room1") {
		t.Error("pipeline of the newer session was closed by the older one")
	}
}

func TestHub_FailedTransitionsOutsideActiveAreIgnored(t *testing.T) {
	hub := NewHub(PipelineConfig{}, &recordingSink{})
	defer hub.Close()

	s := &session.Session{ID: "room1-transcription-1", Kind: session.KindTranscription, Channel: "room1"}
	hub.SessionTransitioned(s, session.StateIdle, session.StateAcquiring)
	hub.SessionTransitioned(s, session.StateAcquiring, session.StateFailed)

	if hub.Active("room1") {
		t.Error("no pipeline expected for a session that never became active")
	}
}
