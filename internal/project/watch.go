package project

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/tasklist/internal/logger"
)

// DefaultDebounce is how long Watch waits for a burst of writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// Watch calls onChange after every settled change to root's descriptor until
// ctx is done. The directory is watched rather than the file so editors that
// save by rename are still seen. Watch logs to the logger carried by ctx.
func Watch(ctx context.Context, root string, debounce time.Duration, onChange func()) error {
	log := logger.FromContext(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(root); err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	log.Debug("watching descriptor", "root", root, "debounce", debounce)

	target := DescriptorPath(root)
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

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
			log.Debug("descriptor event", "op", ev.Op.String())
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher: %w", err)

		case <-timer.C:
			log.Info("descriptor changed", "path", target)
			onChange()
		}
	}
}
