package events

import (
	"github.com/samber/do/v2"

	"rtc-session-orchestrator/internal/config"
	"rtc-session-orchestrator/internal/service/transcript"
)

// RegisterDI provides the Kafka publisher and the transcript sink built on it.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Publisher, error) {
		cfg := do.MustInvoke[*config.Configuration](i)
		return New(&Config{
			Enabled:      cfg.Kafka.Enabled,
			Brokers:      cfg.Kafka.Brokers,
			TopicPartial: cfg.Kafka.TopicPartial,
			TopicFinal:   cfg.Kafka.TopicFinal,
			Principal:    cfg.Service.Principal,
		}), nil
	})
	do.Provide(injector, func(i do.Injector) (transcript.Sink, error) {
		return NewTranscriptSink(do.MustInvoke[*Publisher](i)), nil
	})
}
