package token

import (
	"github.com/samber/do/v2"

	"rtc-session-orchestrator/internal/config"
)

// RegisterDI provides the Issuer for the configured provider mode.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (Issuer, error) {
		cfg := do.MustInvoke[*config.Configuration](i)
		if cfg.Provider.Mode == config.ProviderMock {
			return NewDevIssuer(), nil
		}
		return NewAgoraIssuer(cfg.Provider.AppID, cfg.Provider.AppCertificate), nil
	})
}
