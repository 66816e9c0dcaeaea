package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rtc-session-orchestrator/internal/observability/logging"
	"rtc-session-orchestrator/internal/observability/metrics"
	"rtc-session-orchestrator/internal/service/provider"
	"rtc-session-orchestrator/internal/service/token"
)

const (
	reasonStopped      = "stopped"
	reasonHealthFailed = "health check failed"
	orphanStopTimeout  = 10 * time.Second
)

// Config holds the manager settings.
type Config struct {
	RecordingUID     string
	SubscriberBotUID string
	PublisherBotUID  string
	BotTokenTTL      uint32
	HealthInterval   time.Duration
	// ReleaseOrphans makes a failed health check issue a best-effort
	// provider stop instead of only stopping locally.
	ReleaseOrphans bool
}

// DefaultConfig returns the bot uids and intervals the provider integration expects.
func DefaultConfig() Config {
	return Config{
		RecordingUID:     "1",
		SubscriberBotUID: "2",
		PublisherBotUID:  "3",
		BotTokenTTL:      3600,
		HealthInterval:   10 * time.Second,
	}
}

// Observer is told about every state transition, outside of any manager lock.
type Observer interface {
	SessionTransitioned(s *Session, from, to State)
}

// StartOptions tweaks a single Start call.
type StartOptions struct {
	// UID overrides the recording bot uid.
	UID string
}

type sessionKey struct {
	channel string
	kind    Kind
}

type jobKey struct {
	kind Kind
	id   string
}

// Manager owns the session for every (channel, kind) pair. At most one
// session per pair is non-terminal; a second Start is rejected, not queued.
type Manager struct {
	cfg       Config
	issuer    token.Issuer
	client    provider.Client
	ids       *IDGenerator
	observers []Observer
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[sessionKey]*Session
	byJob    map[jobKey]*Session
	closed   bool
}

// NewManager creates a session manager.
func NewManager(cfg Config, issuer token.Issuer, client provider.Client, observers ...Observer) *Manager {
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = DefaultConfig().HealthInterval
	}
	return &Manager{
		cfg:       cfg,
		issuer:    issuer,
		client:    client,
		ids:       NewIDGenerator(),
		observers: observers,
		metrics:   metrics.DefaultMetrics,
		logger:    log.With().Str("component", "session-manager").Logger(),
		now:       time.Now,
		sessions:  make(map[sessionKey]*Session),
		byJob:     make(map[jobKey]*Session),
	}
}

// Start runs the full start sequence for (channel, kind): issue bot tokens,
// acquire a provider resource, start the job and attach a health monitor.
// Any failing step leaves the session FAILED and returns the error.
func (m *Manager) Start(ctx context.Context, channel string, kind Kind, opts StartOptions) (*Session, error) {
	started := m.now()
	s, err := m.reserve(channel, kind)
	if err != nil {
		return nil, err
	}
	logger := logging.WithSession(channel, kind.String(), s.ID)

	m.mustTransition(s, StateAcquiring, nil)

	tokens, err := m.issueTokens(ctx, channel, kind, opts)
	if err != nil {
		return s, m.fail(s, "token", err)
	}
	m.update(s, func(s *Session) { s.tokens = tokens })

	res, err := m.client.Acquire(ctx, kind, channel, resourceUID(kind, tokens))
	if err != nil {
		return s, m.fail(s, "acquire", err)
	}
	m.update(s, func(s *Session) { s.resource = res })
	m.mustTransition(s, StateStarting, nil)

	job, err := m.client.Start(ctx, res, tokens)
	if err != nil {
		// resource handles have no release call; they lapse provider-side
		return s, m.fail(s, "start", err)
	}

	m.mu.Lock()
	m.byJob[jobKey{kind: kind, id: job.ID}] = s
	m.mu.Unlock()

	m.mustTransition(s, StateActive, func(s *Session) { s.job = job })
	m.attachMonitor(s)

	m.metrics.RecordSessionStarted(kind.String(), time.Since(started).Seconds())
	logger.Info().
		Str("resourceId", res.ID).
		Str("jobId", job.ID).
		Strs("uids", s.ParticipantUIDs()).
		Dur("latency", time.Since(started)).
		Msg("Session active")
	return s, nil
}

// Stop stops an active session: the health monitor is cancelled and drained
// first, then the provider job is stopped. The session ends STOPPED on any
// successful provider response and FAILED on an upstream error.
//
// A session already stopped by its health monitor accepts one Stop, which only
// attempts to release the provider job; its state stays STOPPED.
func (m *Manager) Stop(ctx context.Context, s *Session) (json.RawMessage, error) {
	s.mu.Lock()
	switch {
	case s.state == StateActive:
		mon := s.monitor
		s.monitor = nil
		s.state = StateStopping
		s.mu.Unlock()
		m.notify(s, StateActive, StateStopping)
		if mon != nil {
			mon.Stop()
		}
	case s.state == StateStopped && s.healthStopped && !s.released:
		s.released = true
		job := s.job
		s.mu.Unlock()
		return m.client.Stop(ctx, job)
	default:
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot stop %s session %s", ErrInvalidTransition, state, s.ID)
	}

	logger := logging.WithJob(s.Channel, s.Kind.String(), s.ProviderResourceID(), s.ProviderJobID())

	body, err := m.client.Stop(ctx, s.Job())
	if err != nil {
		logger.Error().Err(err).Msg("Provider stop failed")
		return nil, m.fail(s, "stop", err)
	}

	m.mustTransition(s, StateStopped, func(s *Session) { s.stopReason = reasonStopped })
	logger.Info().Msg("Session stopped")
	return body, nil
}

// Query passes the provider status through without changing session state.
func (m *Manager) Query(ctx context.Context, s *Session) (json.RawMessage, error) {
	job := s.Job()
	if job.ID == "" {
		return nil, fmt.Errorf("%w: session %s has no provider job", ErrInvalidTransition, s.ID)
	}
	return m.client.Query(ctx, job)
}

// StopJob stops the tracked session owning job, or passes the stop straight
// to the provider when the job is not tracked by this process.
func (m *Manager) StopJob(ctx context.Context, job provider.Job) (json.RawMessage, error) {
	if s, ok := m.FindByJob(job.Kind, job.ID); ok {
		return m.Stop(ctx, s)
	}
	return m.client.Stop(ctx, job)
}

// QueryJob passes a status query for any job straight to the provider.
func (m *Manager) QueryJob(ctx context.Context, job provider.Job) (json.RawMessage, error) {
	return m.client.Query(ctx, job)
}

// Current returns the latest session for (channel, kind), terminal or not.
func (m *Manager) Current(channel string, kind Kind) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey{channel: channel, kind: kind}]
	return s, ok
}

// FindByJob returns the session that started the given provider job.
func (m *Manager) FindByJob(kind Kind, jobID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byJob[jobKey{kind: kind, id: jobID}]
	return s, ok
}

// Active returns every session currently in the ACTIVE state.
func (m *Manager) Active() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.State() == StateActive {
			out = append(out, s)
		}
	}
	return out
}

// Close cancels every health monitor and rejects further Start calls.
// Provider jobs are left running.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	var monitors []*Monitor
	for _, s := range m.sessions {
		s.mu.Lock()
		if s.monitor != nil {
			monitors = append(monitors, s.monitor)
		}
		s.mu.Unlock()
	}
	m.mu.Unlock()

	for _, mon := range monitors {
		mon.Stop()
	}
	m.logger.Info().Int("monitors", len(monitors)).Msg("Session manager closed")
}

func (m *Manager) reserve(channel string, kind Kind) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	key := sessionKey{channel: channel, kind: kind}
	if cur, ok := m.sessions[key]; ok {
		if state := cur.State(); !state.IsTerminal() {
			return nil, fmt.Errorf("%w: %s %s is %s", ErrSessionActive, kind, channel, state)
		}
		if id := cur.ProviderJobID(); id != "" {
			delete(m.byJob, jobKey{kind: kind, id: id})
		}
	}

	s := newSession(m.ids.Next(channel, kind), kind, channel, m.now())
	m.sessions[key] = s
	return s, nil
}

func (m *Manager) issueTokens(ctx context.Context, channel string, kind Kind, opts StartOptions) ([]token.Token, error) {
	var reqs []token.Request
	switch kind {
	case KindRecording:
		uid := m.cfg.RecordingUID
		if opts.UID != "" {
			uid = opts.UID
		}
		reqs = []token.Request{{Channel: channel, UID: uid, Role: token.RolePublisher, TTLSeconds: m.cfg.BotTokenTTL}}
	case KindTranscription:
		reqs = []token.Request{
			{Channel: channel, UID: m.cfg.SubscriberBotUID, Role: token.RoleSubscriber, TTLSeconds: m.cfg.BotTokenTTL},
			{Channel: channel, UID: m.cfg.PublisherBotUID, Role: token.RolePublisher, TTLSeconds: m.cfg.BotTokenTTL},
		}
	default:
		return nil, fmt.Errorf("unsupported session kind %v", kind)
	}

	tokens := make([]token.Token, 0, len(reqs))
	for _, req := range reqs {
		tok, err := m.issuer.Issue(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("issue %s token for uid %s: %w", req.Role, req.UID, err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

func resourceUID(kind Kind, tokens []token.Token) string {
	if kind == KindRecording && len(tokens) > 0 {
		return tokens[0].UID
	}
	return ""
}

// attachMonitor starts health polling for s once observers have seen it go
// ACTIVE. A session stopped in the meantime, or a closed manager, gets none.
func (m *Manager) attachMonitor(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive || s.monitor != nil {
		return
	}
	s.monitor = startMonitor(m.cfg.HealthInterval, m.poller(s), m.healthFailed(s))
}

func (m *Manager) poller(s *Session) pollFunc {
	return func(ctx context.Context) error {
		_, err := m.Query(ctx, s)
		if ctx.Err() == nil {
			m.metrics.RecordHealthCheck(s.Kind.String(), err == nil)
		}
		return err
	}
}

// healthFailed forces the session to STOPPED without calling the provider,
// unless the monitor is no longer the session's current one.
func (m *Manager) healthFailed(s *Session) func(*Monitor, error) {
	return func(mon *Monitor, cause error) {
		s.mu.Lock()
		if s.state != StateActive || s.monitor != mon {
			s.mu.Unlock()
			return
		}
		s.state = StateStopped
		s.stopReason = reasonHealthFailed
		s.err = fmt.Errorf("%w: %w", ErrHealthCheckFailed, cause)
		s.healthStopped = true
		s.monitor = nil
		job := s.job
		s.mu.Unlock()

		mon.cancel()
		m.notify(s, StateActive, StateStopped)

		logger := logging.WithJob(s.Channel, s.Kind.String(), job.Resource.ID, job.ID)
		logger.Warn().Err(cause).Bool("releaseOrphans", m.cfg.ReleaseOrphans).Msg("Health check failed, session stopped locally")

		if m.cfg.ReleaseOrphans {
			go m.releaseOrphan(s, job)
		}
	}
}

func (m *Manager) releaseOrphan(s *Session, job provider.Job) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), orphanStopTimeout)
	defer cancel()
	if _, err := m.client.Stop(ctx, job); err != nil {
		m.logger.Debug().Err(err).Str("jobId", job.ID).Msg("Best-effort orphan stop failed")
	}
}

func (m *Manager) fail(s *Session, step string, cause error) error {
	from, err := m.transition(s, StateFailed, func(s *Session) {
		s.err = cause
		s.stopReason = step + " failed"
	})
	if err != nil {
		m.logger.Error().Err(err).Str("sessionId", s.ID).Msg("Unable to mark session failed")
	}
	m.metrics.RecordSessionFailed(s.Kind.String(), step)
	logger := logging.WithSession(s.Channel, s.Kind.String(), s.ID)
	logger.Error().
		Err(cause).
		Str("step", step).
		Str("from", from.String()).
		Msg("Session failed")
	return cause
}

func (m *Manager) update(s *Session, mutate func(*Session)) {
	s.mu.Lock()
	mutate(s)
	s.mu.Unlock()
}

func (m *Manager) mustTransition(s *Session, to State, mutate func(*Session)) {
	if _, err := m.transition(s, to, mutate); err != nil {
		m.logger.Error().Err(err).Str("sessionId", s.ID).Msg("Unexpected session transition")
	}
}

func (m *Manager) transition(s *Session, to State, mutate func(*Session)) (State, error) {
	s.mu.Lock()
	from := s.state
	if !CanTransition(from, to) {
		s.mu.Unlock()
		return from, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	s.state = to
	if mutate != nil {
		mutate(s)
	}
	s.mu.Unlock()

	m.notify(s, from, to)
	return from, nil
}

func (m *Manager) notify(s *Session, from, to State) {
	if from == StateActive {
		m.metrics.RecordSessionEnded(s.Kind.String(), endReason(to))
	}
	for _, o := range m.observers {
		o.SessionTransitioned(s, from, to)
	}
}

func endReason(to State) string {
	switch to {
	case StateStopping:
		return "explicit"
	case StateStopped:
		return "health"
	default:
		return "failed"
	}
}
