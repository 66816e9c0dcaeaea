package token

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rtc-session-orchestrator/internal/observability/metrics"
)

// ExpiryWarning is raised by a transport shortly before Token expires.
type ExpiryWarning struct {
	Token Token
}

// Transport receives renewed tokens.
type Transport interface {
	ApplyToken(ctx context.Context, tok Token) error
}

// Renewer consumes expiry warnings and hands fresh tokens back to its transport.
//
// Renewal is fire-and-forget: a failed issue or hand-off is logged and the old
// token stays in place until it expires. When lead is positive, every renewed
// token schedules its own warning lead before expiry.
type Renewer struct {
	issuer    Issuer
	transport Transport
	lead      time.Duration
	warnings  chan ExpiryWarning
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

const warningQueueSize = 4

// NewRenewer creates a renewer. Call Run to start consuming warnings.
func NewRenewer(issuer Issuer, transport Transport, lead time.Duration) *Renewer {
	return &Renewer{
		issuer:    issuer,
		transport: transport,
		lead:      lead,
		warnings:  make(chan ExpiryWarning, warningQueueSize),
		metrics:   metrics.DefaultMetrics,
		logger:    log.With().Str("component", "token-renewer").Logger(),
	}
}

// Warn enqueues a warning without blocking. It reports false when the queue is full.
func (r *Renewer) Warn(w ExpiryWarning) bool {
	select {
	case r.warnings <- w:
		return true
	default:
		r.logger.Warn().Str("uid", w.Token.UID).Msg("Expiry warning dropped, renewal already pending")
		return false
	}
}

// Watch schedules a warning for tok at its lead time, replacing any earlier schedule.
func (r *Renewer) Watch(tok Token) {
	if r.lead <= 0 || time.Duration(tok.TTLSeconds)*time.Second <= r.lead {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(time.Until(tok.WarnAt(r.lead)), func() {
		r.Warn(ExpiryWarning{Token: tok})
	})
}

// Run processes warnings until ctx is done.
func (r *Renewer) Run(ctx context.Context) {
	defer r.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return
		case w := <-r.warnings:
			if tok, ok := r.renew(ctx, w.Token); ok {
				r.Watch(tok)
			}
		}
	}
}

func (r *Renewer) renew(ctx context.Context, old Token) (Token, bool) {
	logger := r.logger.With().
		Str("channel", old.Channel).
		Str("uid", old.UID).
		Str("role", old.Role.String()).
		Logger()

	tok, err := r.issuer.Issue(ctx, Request{
		Channel:    old.Channel,
		UID:        old.UID,
		Role:       old.Role,
		TTLSeconds: old.TTLSeconds,
	})
	if err != nil {
		r.metrics.RecordTokenRenewal(err)
		logger.Error().Err(err).Msg("Token renewal failed, keeping current token")
		return Token{}, false
	}

	if err := r.transport.ApplyToken(ctx, tok); err != nil {
		r.metrics.RecordTokenRenewal(err)
		logger.Error().Err(err).Msg("Failed to hand renewed token to transport")
		return Token{}, false
	}

	r.metrics.RecordTokenRenewal(nil)
	logger.Info().Time("expiresAt", tok.ExpiresAt()).Msg("Token renewed")
	return tok, true
}

func (r *Renewer) stopTimer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
