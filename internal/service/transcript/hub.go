package transcript

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rtc-session-orchestrator/internal/service/session"
)

// Hub keeps one Pipeline per channel with an active transcription session.
// It is registered as a session.Observer: a pipeline opens when the session
// becomes ACTIVE and is discarded as soon as the session leaves ACTIVE.
type Hub struct {
	cfg    PipelineConfig
	sink   Sink
	logger zerolog.Logger

	mu        sync.Mutex
	pipelines map[string]*Pipeline
}

// NewHub creates an empty hub.
func NewHub(cfg PipelineConfig, sink Sink) *Hub {
	return &Hub{
		cfg:       cfg,
		sink:      sink,
		logger:    log.With().Str("component", "transcript-hub").Logger(),
		pipelines: make(map[string]*Pipeline),
	}
}

// SessionTransitioned implements session.Observer.
func (h *Hub) SessionTransitioned(s *session.Session, from, to session.State) {
	if s.Kind != session.KindTranscription {
		return
	}
	switch {
	case to == session.StateActive:
		h.open(s.Channel, s.ID)
	case from == session.StateActive:
		h.close(s.Channel, s.ID)
	}
}

// Submit routes a raw frame to the channel's pipeline.
func (h *Hub) Submit(channel string, frame []byte) error {
	h.mu.Lock()
	p, ok := h.pipelines[channel]
	h.mu.Unlock()
	if !ok {
		return ErrNoPipeline
	}
	return p.Submit(frame)
}

// Active reports whether the channel has an open pipeline.
func (h *Hub) Active(channel string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.pipelines[channel]
	return ok
}

// Close shuts every pipeline down.
func (h *Hub) Close() {
	h.mu.Lock()
	pipelines := h.pipelines
	h.pipelines = make(map[string]*Pipeline)
	h.mu.Unlock()

	for _, p := range pipelines {
		p.Close()
	}
}

func (h *Hub) open(channel, sessionID string) {
	p := NewPipeline(channel, sessionID, h.cfg, h.sink)

	h.mu.Lock()
	prev := h.pipelines[channel]
	h.pipelines[channel] = p
	h.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	h.logger.Info().Str("channel", channel).Str("sessionId", sessionID).Msg("Transcript pipeline opened")
}

func (h *Hub) close(channel, sessionID string) {
	h.mu.Lock()
	p, ok := h.pipelines[channel]
	if !ok || p.SessionID() != sessionID {
		h.mu.Unlock()
		return
	}
	delete(h.pipelines, channel)
	h.mu.Unlock()

	p.Close()
	h.logger.Info().Str("channel", channel).Str("sessionId", sessionID).Msg("Transcript pipeline closed")
}
