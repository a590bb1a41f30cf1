package config

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file on change and calls onReload with the fresh
// config. Editors often write via rename, so the parent directory is watched
// rather than the file itself. Events are debounced because a single save
// can produce several write events.
//
// Returns a stop function. Watching is best-effort: if the watcher cannot be
// created, a no-op stop is returned and a warning logged.
func Watch(path string, onReload func(*Config)) func() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("config: watch unavailable", "error", err)
		return func() {}
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		slog.Warn("config: watch failed", "dir", dir, "error", err)
		watcher.Close()
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		var pending *time.Timer
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(250*time.Millisecond, func() {
					cfg, err := Load(path)
					if err != nil {
						slog.Warn("config: reload failed, keeping previous", "error", err)
						return
					}
					slog.Info("config: reloaded", "path", path)
					onReload(cfg)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Debug("config: watch error", "error", err)
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}
}
