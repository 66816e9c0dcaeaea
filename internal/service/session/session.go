package session

import (
	"sync"
	"time"

	"rtc-session-orchestrator/internal/service/provider"
	"rtc-session-orchestrator/internal/service/token"
)

// Kind is the provider job type a session drives.
type Kind = provider.Kind

const (
	KindRecording     = provider.KindRecording
	KindTranscription = provider.KindTranscription
)

// Session is one recording or transcription job on a channel.
// Immutable fields are exported; everything that changes with state is
// behind accessors.
type Session struct {
	ID        string
	Kind      Kind
	Channel   string
	CreatedAt time.Time

	mu            sync.RWMutex
	state         State
	resource      provider.Resource
	job           provider.Job
	tokens        []token.Token
	stopReason    string
	err           error
	monitor       *Monitor
	healthStopped bool
	released      bool
}

func newSession(id string, kind Kind, channel string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Kind:      kind,
		Channel:   channel,
		CreatedAt: now,
		state:     StateIdle,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ProviderResourceID returns the recording resourceId or transcription builder token.
func (s *Session) ProviderResourceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resource.ID
}

// ProviderJobID returns the recording sid or transcription taskId.
func (s *Session) ProviderJobID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.job.ID
}

// Job returns the provider job handle. It is zero until the job has started.
func (s *Session) Job() provider.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.job
}

// Tokens returns the bot tokens issued for the session.
func (s *Session) Tokens() []token.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]token.Token(nil), s.tokens...)
}

// ParticipantUIDs returns the bot uids, one for recording and
// subscriber then publisher for transcription.
func (s *Session) ParticipantUIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uids := make([]string, len(s.tokens))
	for i, t := range s.tokens {
		uids[i] = t.UID
	}
	return uids
}

// StopReason describes why a terminal session ended.
func (s *Session) StopReason() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopReason
}

// Err returns the error that failed or force-stopped the session.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// HealthStopped reports whether the health monitor ended the session.
func (s *Session) HealthStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthStopped
}
