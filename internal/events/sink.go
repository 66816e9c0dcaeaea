package events

import (
	"context"
	"time"

	"rtc-session-orchestrator/internal/models"
	"rtc-session-orchestrator/internal/service/transcript"
)

// TranscriptSink adapts a Publisher to the transcript pipeline's Sink.
type TranscriptSink struct {
	pub *Publisher
	now func() time.Time
}

// NewTranscriptSink wraps pub.
func NewTranscriptSink(pub *Publisher) *TranscriptSink {
	return &TranscriptSink{pub: pub, now: time.Now}
}

// PublishLine publishes a finalized line to the final topic.
func (s *TranscriptSink) PublishLine(ctx context.Context, channel string, line transcript.Line) error {
	return s.pub.PublishLine(ctx, models.TranscriptFinal{
		EventType:  models.EventTypeFinal,
		Channel:    channel,
		SpeakerUID: line.SpeakerUID,
		Timestamp:  s.now().UnixMilli(),
		Text:       line.Text,
		StartMs:    line.StartMs,
		EndMs:      line.EndMs,
	})
}

// PublishPartial publishes a speaker's in-progress text to the partial topic.
func (s *TranscriptSink) PublishPartial(ctx context.Context, channel string, speakerUID int32, text string) error {
	return s.pub.PublishPartial(ctx, models.TranscriptPartial{
		EventType:  models.EventTypePartial,
		Channel:    channel,
		SpeakerUID: speakerUID,
		Timestamp:  s.now().UnixMilli(),
		Text:       text,
	})
}
