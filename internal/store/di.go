package store

import (
	"context"

	"github.com/samber/do/v2"

	"rtc-session-orchestrator/internal/config"
)

// RegisterDI provides the session journal. Without DATABASE_URL the journal
// is disabled and drops every transition.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Journal, error) {
		cfg := do.MustInvoke[*config.Configuration](i)
		if cfg.Database.URL == "" {
			return NewJournal(nil, 0), nil
		}
		pg, err := OpenPostgres(context.Background(), cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		return NewJournal(pg, cfg.Database.QueueSize), nil
	})
}
