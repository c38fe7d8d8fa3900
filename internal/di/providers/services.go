package providers

import (
	"github.com/samber/do/v2"

	"github.com/pulsecheckapp/pulsecheck-server/internal/config"
	"github.com/pulsecheckapp/pulsecheck-server/internal/logger"
	"github.com/pulsecheckapp/pulsecheck-server/internal/service"

	authpkg "github.com/pulsecheckapp/pulsecheck-server/internal/auth"
)

// ProvideMicroclimateService provides the session coordinator.
func ProvideMicroclimateService(i do.Injector) (*service.MicroclimateService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	thresholds := do.MustInvoke[*ThresholdWatcherHandle](i)

	return service.NewMicroclimateService(storeHandle.Store, sseHandle.Manager, log.Logger, service.MicroclimateOptions{
		Thresholds:             thresholds.ThresholdWatcher,
		AllowPausedSubmissions: cfg.Sessions.AllowPausedSubmissions,
	}), nil
}

// ProvideInvitationService provides the invitation lifecycle service.
func ProvideInvitationService(i do.Injector) (*service.InvitationService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	mcService := do.MustInvoke[*service.MicroclimateService](i)

	return service.NewInvitationService(storeHandle.Store, sseHandle.Manager, mcService, nil, log.Logger), nil
}

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*authpkg.TokenService](i)

	return service.NewAuthService(storeHandle.Store, tokenService, nil, log.Logger), nil
}
