package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// Watch refreshes the registry whenever the backend's configuration file is
// changed outside this process, until ctx is cancelled. Bursts of events are
// coalesced into a single refresh.
//
// The parent directory is watched rather than the file itself so that
// editors and the backend replacing the file by rename are picked up.
func (r *Registry) Watch(ctx context.Context, configFile string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("registry: watcher: %w", err)
	}
	defer w.Close()

	target := filepath.Clean(configFile)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("registry: watch %s: %w", target, err)
	}
	r.logger.Info("watcher: started", slog.String("file", target))

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(watchDebounce)
			timerCh = timer.C
		} else {
			timer.Reset(watchDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			r.logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Warn("watcher: refresh failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			r.logger.Debug("watcher: config changed", slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
