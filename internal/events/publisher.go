// Package events streams transcript lines and partials to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"rtc-session-orchestrator/internal/models"
	"rtc-session-orchestrator/internal/observability/logging"
	"rtc-session-orchestrator/internal/observability/metrics"
)

const (
	eventPartial = "partial"
	eventLine    = "line"

	deliveryKafka = "kafka"
	deliveryLog   = "log"
)

// Publisher writes finalized lines and partial updates to their own topics,
// keyed by channel. Without brokers it logs each event instead.
type Publisher struct {
	partials  stream
	lines     stream
	principal string
	metrics   *metrics.Metrics
}

// stream is one topic; writer is nil in log-only mode.
type stream struct {
	event     string
	eventType string
	topic     string
	writer    *kafka.Writer
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string
	TopicPartial string
	TopicFinal   string
	Principal    string
	Enabled      bool
}

// New creates a publisher. A nil or disabled config, or one without brokers,
// yields a log-only publisher.
func New(cfg *Config) *Publisher {
	if cfg == nil {
		cfg = &Config{}
	}
	p := &Publisher{
		partials:  stream{event: eventPartial, eventType: models.EventTypePartial, topic: cfg.TopicPartial},
		lines:     stream{event: eventLine, eventType: models.EventTypeFinal, topic: cfg.TopicFinal},
		principal: cfg.Principal,
		metrics:   metrics.DefaultMetrics,
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().
			Str("topicFinal", cfg.TopicFinal).
			Msg("Kafka disabled, transcript lines are only logged")
		return p
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{Dial: dialer.DialFunc}

	p.partials.writer = newWriter(cfg.Brokers, cfg.TopicPartial, transport)
	p.lines.writer = newWriter(cfg.Brokers, cfg.TopicFinal, transport)

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicPartial", cfg.TopicPartial).
		Str("topicFinal", cfg.TopicFinal).
		Str("principal", cfg.Principal).
		Msg("Transcript publisher connected to Kafka")
	return p
}

// newWriter builds a channel-hashed writer so one channel's lines stay on one
// partition, in order.
func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// Enabled reports whether events reach Kafka.
func (p *Publisher) Enabled() bool { return p.lines.writer != nil }

// PublishPartial streams a speaker's in-progress text.
func (p *Publisher) PublishPartial(ctx context.Context, evt models.TranscriptPartial) error {
	return p.publish(ctx, p.partials, evt.Channel, evt.SpeakerUID, evt)
}

// PublishLine streams a finalized line.
func (p *Publisher) PublishLine(ctx context.Context, evt models.TranscriptFinal) error {
	return p.publish(ctx, p.lines, evt.Channel, evt.SpeakerUID, evt)
}

func (p *Publisher) publish(ctx context.Context, s stream, channel string, speakerUID int32, evt any) error {
	if channel == "" {
		return fmt.Errorf("%s event has no channel", s.event)
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s for channel %s: %w", s.event, channel, err)
	}

	logger := logging.WithChannel(channel)
	if s.writer == nil {
		logger.Debug().
			Int32("speakerUid", speakerUID).
			RawJSON(s.event, payload).
			Msg("Transcript event (log only)")
		p.metrics.RecordTranscriptPublish(s.event, deliveryLog, nil, 0)
		return nil
	}

	start := time.Now()
	err = s.writer.WriteMessages(ctx, p.message(s, channel, speakerUID, payload))
	p.metrics.RecordTranscriptPublish(s.event, deliveryKafka, err, time.Since(start).Seconds())
	if err != nil {
		logger.Error().
			Err(err).
			Str("topic", s.topic).
			Int32("speakerUid", speakerUID).
			Msg("Transcript event not delivered")
		return err
	}
	return nil
}

func (p *Publisher) message(s stream, channel string, speakerUID int32, payload []byte) kafka.Message {
	return kafka.Message{
		Key:   []byte(channel),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(s.eventType)},
			{Key: "channel", Value: []byte(channel)},
			{Key: "speakerUid", Value: []byte(strconv.FormatInt(int64(speakerUID), 10))},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}
}

// Close flushes and closes both writers.
func (p *Publisher) Close() error {
	var errs []error
	for _, s := range []stream{p.partials, p.lines} {
		if s.writer == nil {
			continue
		}
		if err := s.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s writer: %w", s.event, err))
		}
	}
	return errors.Join(errs...)
}
