package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/repolens/repolens/internal/github"
	"github.com/repolens/repolens/internal/logger"
)

// watchPartitions calls onChange, debounced, whenever a partition file under
// root is created or written. It returns when ctx is done.
func watchPartitions(ctx context.Context, root string, debounce time.Duration, log logger.Logger, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	// Entity directories appear on the first write of each entity.
	for _, e := range github.Entities() {
		dir := filepath.Join(root, string(e))
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			_ = watcher.Add(dir)
		}
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
					continue
				}
			}
			if !isPartitionFile(event.Name) || event.Has(fsnotify.Chmod) {
				continue
			}
			pending = true
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watch error")

		case <-timer.C:
			if pending {
				pending = false
				onChange()
			}
		}
	}
}

// isPartitionFile matches partition databases and their WAL files.
func isPartitionFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, ".db") || strings.HasSuffix(base, ".db-wal")
}
