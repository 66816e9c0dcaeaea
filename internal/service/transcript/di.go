package transcript

import (
	"github.com/samber/do/v2"

	"rtc-session-orchestrator/internal/config"
)

// RegisterDI provides the pipeline hub. A Sink must already be registered.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Hub, error) {
		cfg := do.MustInvoke[*config.Configuration](i)
		sink := do.MustInvoke[Sink](i)
		return NewHub(PipelineConfig{
			QueueSize:       cfg.Transcript.QueueSize,
			PublishPartials: cfg.Transcript.PublishPartials,
		}, sink), nil
	})
}
