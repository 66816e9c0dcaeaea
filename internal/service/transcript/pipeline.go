package transcript

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rtc-session-orchestrator/internal/observability/logging"
	"rtc-session-orchestrator/internal/observability/metrics"
)

// Sink receives assembled output. Calls come from a single pipeline goroutine.
type Sink interface {
	PublishLine(ctx context.Context, channel string, line Line) error
	PublishPartial(ctx context.Context, channel string, speakerUID int32, text string) error
}

var (
	ErrNoPipeline = errors.New("no transcript pipeline for channel")
	ErrQueueFull  = errors.New("frame queue full")
)

const publishTimeout = 5 * time.Second

// Pipeline decodes and assembles frames for one channel on its own goroutine.
// Submit never blocks: frames arriving while the queue is full are dropped.
type Pipeline struct {
	channel   string
	sessionID string
	frames    chan []byte
	assembler *Assembler
	sink      Sink
	partials  bool
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// PipelineConfig holds per-pipeline settings.
type PipelineConfig struct {
	QueueSize       int
	PublishPartials bool
}

// NewPipeline starts a pipeline for the channel owned by sessionID.
func NewPipeline(channel, sessionID string, cfg PipelineConfig, sink Sink) *Pipeline {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		channel:   channel,
		sessionID: sessionID,
		frames:    make(chan []byte, cfg.QueueSize),
		assembler: NewAssembler(),
		sink:      sink,
		partials:  cfg.PublishPartials,
		metrics:   metrics.DefaultMetrics,
		logger:    logging.WithSession(channel, "transcription", sessionID),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	p.metrics.RecordPipelineOpened()
	go p.run()
	return p
}

// SessionID returns the session the pipeline belongs to.
func (p *Pipeline) SessionID() string { return p.sessionID }

// Submit queues a raw frame.
func (p *Pipeline) Submit(frame []byte) error {
	select {
	case <-p.ctx.Done():
		return ErrNoPipeline
	default:
	}

	p.metrics.RecordFrameReceived(len(frame))
	select {
	case p.frames <- frame:
		return nil
	default:
		p.metrics.RecordFrameDropped("queue_full")
		p.logger.Warn().Int("bytes", len(frame)).Msg("Frame queue full, dropping frame")
		return ErrQueueFull
	}
}

// Close stops the pipeline and discards queued frames and speaker buffers.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		<-p.done
		p.metrics.RecordPipelineClosed()
	})
	<-p.done
}

func (p *Pipeline) run() {
	defer close(p.done)
	defer p.assembler.Reset()

	for {
		select {
		case <-p.ctx.Done():
			return
		case raw := <-p.frames:
			p.process(raw)
		}
	}
}

func (p *Pipeline) process(raw []byte) {
	f, err := Decode(raw)
	if err != nil {
		p.metrics.RecordFrameDropped("decode_error")
		p.logger.Warn().Err(err).Int("bytes", len(raw)).Msg("Dropping malformed frame")
		return
	}
	p.metrics.RecordWordsDecoded(len(f.Words))

	for ev := range f.WordEvents() {
		if line, ok := p.assembler.Push(ev); ok {
			p.metrics.RecordLineFinalized()
			p.publish(func(ctx context.Context) error { return p.sink.PublishLine(ctx, p.channel, line) })
			continue
		}
		if p.partials && ev.Text != "" {
			text, _ := p.assembler.Pending(ev.SpeakerUID)
			uid := ev.SpeakerUID
			p.metrics.RecordPartialUpdate()
			p.publish(func(ctx context.Context) error { return p.sink.PublishPartial(ctx, p.channel, uid, text) })
		}
	}
}

func (p *Pipeline) publish(fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(p.ctx, publishTimeout)
	defer cancel()
	if err := fn(ctx); err != nil && p.ctx.Err() == nil {
		p.logger.Error().Err(err).Msg("Failed to publish transcript output")
	}
}
