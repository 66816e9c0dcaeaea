// Package store keeps an audit journal of session lifecycle transitions.
// Transcripts are never stored.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rtc-session-orchestrator/internal/observability/metrics"
	"rtc-session-orchestrator/internal/service/session"
)

// Transition is one journaled state change.
type Transition struct {
	SessionID  string
	Kind       string
	Channel    string
	From       string
	To         string
	ResourceID string
	JobID      string
	Reason     string
	Error      string
	At         time.Time
}

// Writer persists transitions.
type Writer interface {
	WriteTransition(ctx context.Context, t Transition) error
}

// HistoryReader lists journaled transitions for a channel, newest first.
type HistoryReader interface {
	History(ctx context.Context, channel string, limit int) ([]Transition, error)
}

// ErrDisabled is returned by History when no database is configured.
var ErrDisabled = errors.New("session journal disabled")

const writeTimeout = 5 * time.Second

var errQueueFull = errors.New("journal queue full")

// Journal is a session.Observer that hands transitions to a Writer on a
// background goroutine. A full queue drops the entry rather than delaying
// the session manager.
type Journal struct {
	writer  Writer
	queue   chan Transition
	now     func() time.Time
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewJournal starts the write loop. A nil writer gives a disabled journal
// that ignores every transition.
func NewJournal(w Writer, queueSize int) *Journal {
	if queueSize <= 0 {
		queueSize = 1024
	}
	j := &Journal{
		writer:  w,
		queue:   make(chan Transition, queueSize),
		now:     time.Now,
		metrics: metrics.DefaultMetrics,
		logger:  log.With().Str("component", "session-journal").Logger(),
		done:    make(chan struct{}),
	}
	if w == nil {
		close(j.done)
		return j
	}
	go j.run()
	return j
}

// Enabled reports whether transitions are persisted.
func (j *Journal) Enabled() bool { return j.writer != nil }

// SessionTransitioned implements session.Observer.
func (j *Journal) SessionTransitioned(s *session.Session, from, to session.State) {
	if j.writer == nil {
		return
	}

	t := Transition{
		SessionID:  s.ID,
		Kind:       s.Kind.String(),
		Channel:    s.Channel,
		From:       from.String(),
		To:         to.String(),
		ResourceID: s.ProviderResourceID(),
		JobID:      s.ProviderJobID(),
		Reason:     s.StopReason(),
		At:         j.now().UTC(),
	}
	if err := s.Err(); err != nil {
		t.Error = err.Error()
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- t:
	default:
		j.metrics.RecordJournalWrite(errQueueFull)
		j.logger.Warn().Str("sessionId", t.SessionID).Str("to", t.To).Msg("Journal queue full, dropping transition")
	}
}

// History returns the latest transitions on channel when the writer supports reads.
func (j *Journal) History(ctx context.Context, channel string, limit int) ([]Transition, error) {
	r, ok := j.writer.(HistoryReader)
	if !ok {
		return nil, ErrDisabled
	}
	return r.History(ctx, channel, limit)
}

// Close stops accepting transitions, waits for queued ones to be written and
// closes the writer if it can be closed.
func (j *Journal) Close() {
	j.mu.Lock()
	first := !j.closed
	if first {
		j.closed = true
		if j.writer != nil {
			close(j.queue)
		}
	}
	j.mu.Unlock()
	<-j.done

	if c, ok := j.writer.(interface{ Close() }); ok && first {
		c.Close()
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for t := range j.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := j.writer.WriteTransition(ctx, t)
		cancel()

		j.metrics.RecordJournalWrite(err)
		if err != nil {
			j.logger.Error().Err(err).
				Str("sessionId", t.SessionID).
				Str("from", t.From).
				Str("to", t.To).
				Msg("Failed to journal session transition")
		}
	}
}
