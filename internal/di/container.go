// Package di provides dependency injection configuration for the PulseCheck server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/pulsecheckapp/pulsecheck-server/internal/auth"
	"github.com/pulsecheckapp/pulsecheck-server/internal/config"
	"github.com/pulsecheckapp/pulsecheck-server/internal/di/providers"
	"github.com/pulsecheckapp/pulsecheck-server/internal/logger"
	"github.com/pulsecheckapp/pulsecheck-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Database layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideThresholdWatcher)
	do.Provide(injector, providers.ProvideMicroclimateService)
	do.Provide(injector, providers.ProvideInvitationService)
	do.Provide(injector, providers.ProvideAuthService)

	// Workers
	do.Provide(injector, providers.ProvideReminderWorker)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once everything is running.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	// Business services
	_ = do.MustInvoke[*providers.ThresholdWatcherHandle](injector)
	_ = do.MustInvoke[*service.MicroclimateService](injector)
	_ = do.MustInvoke[*service.InvitationService](injector)
	_ = do.MustInvoke[*service.AuthService](injector)

	// Workers
	_ = do.MustInvoke[*providers.ReminderWorkerHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Backfill the search index if the on-disk index was rebuilt
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
