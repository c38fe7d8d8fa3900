package service

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
)

// ThresholdSource supplies the current engagement cut-points.
type ThresholdSource interface {
	Current() domain.EngagementThresholds
}

// StaticThresholds is a fixed ThresholdSource, mostly for tests.
type StaticThresholds struct {
	Thresholds domain.EngagementThresholds
}

// Current returns the fixed thresholds.
func (s StaticThresholds) Current() domain.EngagementThresholds {
	return s.Thresholds
}

// ThresholdWatcher hot-reloads engagement thresholds from a JSON file so
// operators can retune dashboards without a restart. A missing file or an
// invalid payload keeps the last good values.
type ThresholdWatcher struct {
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current domain.EngagementThresholds
}

// NewThresholdWatcher loads path (falling back to defaults when absent) and
// starts watching its directory for changes. Watching the directory rather
// than the file survives editors that replace the file on save.
func NewThresholdWatcher(path string, logger *slog.Logger) (*ThresholdWatcher, error) {
	tw := &ThresholdWatcher{
		path:    filepath.Clean(path),
		logger:  logger,
		current: domain.DefaultEngagementThresholds(),
	}

	if err := tw.reload(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load thresholds: %w", err)
		}
		logger.Info("thresholds file not found, using defaults", "path", tw.path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(tw.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch thresholds directory: %w", err)
	}
	tw.watcher = watcher

	return tw, nil
}

// Current returns the latest valid thresholds.
func (tw *ThresholdWatcher) Current() domain.EngagementThresholds {
	tw.mu.RLock()
	defer tw.mu.RUnlock()
	return tw.current
}

// Start consumes file events until the context is cancelled.
func (tw *ThresholdWatcher) Start(ctx context.Context) {
	// Debounce: editors fire several events per save.
	var pending *time.Timer

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-tw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != tw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(200*time.Millisecond, func() {
				if err := tw.reload(); err != nil {
					tw.logger.Warn("thresholds reload failed, keeping previous values",
						"path", tw.path, "error", err)
					return
				}
				cur := tw.Current()
				tw.logger.Info("engagement thresholds reloaded",
					"default_threshold", cur.DefaultThreshold,
					"high_multiplier", cur.HighMultiplier,
				)
			})
		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return
			}
			tw.logger.Warn("thresholds watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (tw *ThresholdWatcher) Close() error {
	if tw.watcher == nil {
		return nil
	}
	return tw.watcher.Close()
}

func (tw *ThresholdWatcher) reload() error {
	data, err := os.ReadFile(tw.path)
	if err != nil {
		return err
	}

	var th domain.EngagementThresholds
	if err := json.Unmarshal(data, &th); err != nil {
		return fmt.Errorf("parse thresholds: %w", err)
	}
	if err := validate.Validate(&th); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}

	tw.mu.Lock()
	tw.current = th
	tw.mu.Unlock()
	return nil
}
