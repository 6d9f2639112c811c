package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/config"
)

// Editors often write a file in several steps; wait for them to settle.
const reloadDebounce = 200 * time.Millisecond

// watchConfig sends a freshly loaded config on reloads every time path is
// written. Invalid files are logged and skipped. The watcher stops with ctx.
func watchConfig(ctx context.Context, path string, apply func(*config.Config), reloads chan<- *config.Config) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: rename-on-save replaces the inode
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	slog.Info("config: watching for changes", "path", abs)

	go func() {
		defer watcher.Close()

		var settle <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				settle = time.After(reloadDebounce)

			case <-settle:
				settle = nil
				cfg, err := config.Load(abs)
				if err == nil && apply != nil {
					apply(cfg)
					err = config.Validate(cfg)
				}
				if err != nil {
					slog.Warn("config: reload rejected, keeping current configuration",
						"path", abs,
						"error", err,
					)
					continue
				}
				slog.Info("config: file changed", "path", abs)
				select {
				case reloads <- cfg:
				case <-ctx.Done():
					return
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config: watcher error", "error", err)
			}
		}
	}()

	return nil
}
