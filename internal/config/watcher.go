package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long after the last write before the document is
// considered stable. Editors often write config files in multiple bursts.
const settleDelay = 500 * time.Millisecond

// Watcher reloads the settings document when it changes on disk.
// Watching happens on the parent directory because many editors replace
// files via rename, which drops a watch placed on the file itself.
type Watcher struct {
	manager  *Manager
	logger   *slog.Logger
	onChange func(*Settings)

	watcher *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher creates a watcher for the manager's settings document.
// onChange is invoked with the reloaded settings after each stable change;
// it may be nil.
func NewWatcher(manager *Manager, logger *slog.Logger, onChange func(*Settings)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		manager:  manager,
		logger:   logger,
		onChange: onChange,
		watcher:  fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching and blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.manager.Path())
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.wg.Add(1)
	go w.processEvents(ctx)

	<-ctx.Done()
	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	target := filepath.Clean(w.manager.Path())

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.scheduleReload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("settings watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(settleDelay, w.reload)
}

func (w *Watcher) reload() {
	settings, err := w.manager.Reload()
	if err != nil {
		w.logger.Error("failed to reload settings after change", "error", err)
		return
	}

	w.logger.Info("settings reloaded", "path", w.manager.Path())
	if w.onChange != nil {
		w.onChange(settings)
	}
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
