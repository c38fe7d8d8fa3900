package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/pulsecheckapp/pulsecheck-server/internal/config"
	"github.com/pulsecheckapp/pulsecheck-server/internal/logger"
	"github.com/pulsecheckapp/pulsecheck-server/internal/service"
)

// ThresholdWatcherHandle wraps the thresholds watcher with shutdown capability.
type ThresholdWatcherHandle struct {
	*service.ThresholdWatcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *ThresholdWatcherHandle) Shutdown() error {
	h.cancel()
	return h.Close()
}

// ProvideThresholdWatcher provides the hot-reloading engagement thresholds source.
func ProvideThresholdWatcher(i do.Injector) (*ThresholdWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	watcher, err := service.NewThresholdWatcher(cfg.Data.ThresholdsPath, log.Logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go watcher.Start(ctx)

	log.Info("Threshold watcher started", "path", cfg.Data.ThresholdsPath)

	return &ThresholdWatcherHandle{
		ThresholdWatcher: watcher,
		cancel:           cancel,
	}, nil
}

// ReminderWorkerHandle wraps the reminder sweep worker with shutdown capability.
type ReminderWorkerHandle struct {
	*service.ReminderWorker
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *ReminderWorkerHandle) Shutdown() error {
	h.cancel()
	return nil
}

// ProvideReminderWorker provides the background invitation sweep.
func ProvideReminderWorker(i do.Injector) (*ReminderWorkerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	delivery := service.NewLogDelivery(log.Logger)
	worker := service.NewReminderWorker(storeHandle.Store, sseHandle.Manager, delivery, nil, log.Logger, cfg.Sessions.ReminderSweepInterval)

	ctx, cancel := context.WithCancel(context.Background())
	go worker.Run(ctx)

	log.Info("Reminder worker started", "interval", cfg.Sessions.ReminderSweepInterval)

	return &ReminderWorkerHandle{
		ReminderWorker: worker,
		cancel:         cancel,
	}, nil
}
