package rules

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch hot-reloads the rule script whenever the file at path changes.
// The directory is watched rather than the file itself so that editors
// that replace files on save (rename-over-write) still trigger reloads.
// Watch returns once the watcher is running; it stops when ctx is done.
func (e *Engine) Watch(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading rule script %s: %w", path, err)
	}
	if err := e.LoadScript(src); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file system watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	go e.watchLoop(ctx, watcher, path)

	slog.Info("Watching rule script for changes", "path", path)
	return nil
}

func (e *Engine) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Rule script watcher stopped")
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			src, err := os.ReadFile(path)
			if err != nil {
				slog.Error("Failed to re-read rule script", "path", path, "error", err)
				continue
			}
			if err := e.LoadScript(src); err != nil {
				// Keep the previous working script.
				slog.Error("Rule script reload rejected", "path", path, "error", err)
				continue
			}
			slog.Info("Rule script reloaded", "path", path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Rule script watcher error", "error", err)
		}
	}
}
