package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"

	"rtc-session-orchestrator/internal/models"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.Enabled() {
				t.Error("expected publisher to be log-only")
			}
			if p.partials.writer != nil || p.lines.writer != nil {
				t.Error("expected no writers in log-only mode")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	p := New(&Config{
		Brokers:      []string{"localhost:9092"},
		TopicPartial: "test.partial",
		TopicFinal:   "test.final",
		Principal:    "test-principal",
	})

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.partials.topic != "test.partial" || p.partials.eventType != models.EventTypePartial {
		t.Errorf("unexpected partial stream %+v", p.partials)
	}
	if p.lines.topic != "test.final" || p.lines.eventType != models.EventTypeFinal {
		t.Errorf("unexpected line stream %+v", p.lines)
	}
}

func TestPublisher_LogOnly(t *testing.T) {
	p := New(&Config{Enabled: false, TopicPartial: "test.partial", TopicFinal: "test.final"})

	partial := models.TranscriptPartial{
		EventType:  models.EventTypePartial,
		Channel:    "room1",
		SpeakerUID: 7,
		Text:       "hello",
	}
	if err := p.PublishPartial(context.Background(), partial); err != nil {
		t.Errorf("PublishPartial: %v", err)
	}

	line := models.TranscriptFinal{
		EventType:  models.EventTypeFinal,
		Channel:    "room1",
		SpeakerUID: 7,
		Text:       "hello world",
		StartMs:    100,
		EndMs:      500,
	}
	if err := p.PublishLine(context.Background(), line); err != nil {
		t.Errorf("PublishLine: %v", err)
	}
}

func TestPublisher_RequiresChannel(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.PublishLine(context.Background(), models.TranscriptFinal{Text: "orphan"}); err == nil {
		t.Error("expected an error for a line without a channel")
	}
	if err := p.PublishPartial(context.Background(), models.TranscriptPartial{Text: "orphan"}); err == nil {
		t.Error("expected an error for a partial without a channel")
	}
}

func TestPublisher_MessageKeyedByChannel(t *testing.T) {
	p := New(&Config{Principal: "rtc-orchestrator"})
	payload, _ := json.Marshal(models.TranscriptFinal{Channel: "room1", SpeakerUID: 42, Text: "hi"})

	msg := p.message(p.lines, "room1", 42, payload)

	if string(msg.Key) != "room1" {
		t.Errorf("expected key room1, got %q", msg.Key)
	}
	if string(msg.Value) != string(payload) {
		t.Errorf("unexpected value %s", msg.Value)
	}
	want := map[string]string{
		"eventType":  models.EventTypeFinal,
		"channel":    "room1",
		"speakerUid": "42",
		"principal":  "rtc-orchestrator",
	}
	got := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		got[h.Key] = string(h.Value)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("header %s: expected %q, got %q", k, v, got[k])
		}
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing log-only publisher, got %v", err)
	}
}

func TestNew_EnabledBuildsHashBalancedWriters(t *testing.T) {
	p := New(&Config{
		Enabled:      true,
		Brokers:      []string{"localhost:9092"},
		TopicPartial: "rtc.partial",
		TopicFinal:   "rtc.final",
	})
	defer p.Close()

	if !p.Enabled() {
		t.Fatal("expected publisher to be enabled")
	}
	for name, w := range map[string]*kafka.Writer{"partial": p.partials.writer, "line": p.lines.writer} {
		if w == nil {
			t.Fatalf("%s writer is nil", name)
		}
		if _, ok := w.Balancer.(*kafka.Hash); !ok {
			t.Errorf("%s writer balancer = %T, want *kafka.Hash", name, w.Balancer)
		}
	}
	if p.partials.writer.Topic != "rtc.partial" || p.lines.writer.Topic != "rtc.final" {
		t.Errorf("unexpected topics: %q, %q", p.partials.writer.Topic, p.lines.writer.Topic)
	}
}
