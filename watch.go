package modelrouter

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/arc-labs/model-router/internal/logging"
)

// watchDebounce is how long file events are coalesced before a reload.
// Editors often emit several write events for one save.
const watchDebounce = 200 * time.Millisecond

// Watch reloads the router's configuration whenever the file at path
// changes. It blocks until ctx is cancelled; run it in its own goroutine.
// The parent directory is watched so atomic rename-based saves are seen.
func (r *Router) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	logging.Logger.Info("watching config file", "path", path)

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				timer.Reset(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Logger.Error("config watcher error", "error", err.Error())
		case <-timerC:
			timer = nil
			timerC = nil
			cfg, err := LoadConfig(path)
			if err != nil {
				logging.Logger.Error("config reload skipped", "path", path, "error", err.Error())
				continue
			}
			if err := r.ReloadConfig(*cfg); err != nil {
				logging.Logger.Error("config reload failed", "path", path, "error", err.Error())
				continue
			}
			logging.Logger.Info("config reloaded", "path", path, "providers", len(cfg.Providers))
		}
	}
}
