package template

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a template directory into a Registry as files change.
// Bursts of events on one file are debounced into a single reload.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	registry    *Registry
	dir         string
	logger      *zap.Logger
	debounceMap map[string]time.Time
	debounceDur time.Duration
	onReload    func(path string, keys []string)
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher returns a watcher for dir. onReload, if set, is called after
// each debounced reload with the keys the file now defines (nil when the file
// went away).
func NewWatcher(dir string, registry *Registry, logger *zap.Logger, onReload func(path string, keys []string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		watcher:     fw,
		registry:    registry,
		dir:         dir,
		logger:      logger,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		onReload:    onReload,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. It is a no-op when already running.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		w.logger.Warn("creating template directory", zap.String("dir", w.dir), zap.Error(err))
	}
	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	w.logger.Debug("watching templates", zap.String("dir", w.dir))

	go w.run(ctx)
	return nil
}

// Stop halts the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		w.logger.Error("closing template watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("template watcher", zap.Error(err))
		case <-ticker.C:
			w.processDebounced()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !IsTemplateFile(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.logger.Debug("template event", zap.String("path", event.Name), zap.Stringer("op", event.Op))

	w.mu.Lock()
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced() {
	w.mu.Lock()
	now := time.Now()
	var due []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			due = append(due, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range due {
		w.reload(path)
	}
}

func (w *Watcher) reload(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		dropped := w.registry.Forget(path)
		w.logger.Info("templates removed", zap.String("path", path), zap.Strings("keys", dropped))
		if w.onReload != nil {
			w.onReload(path, nil)
		}
		return
	}
	keys, err := w.registry.LoadFile(path)
	if err != nil {
		// Keep the previous contents; the editor may still be mid-save.
		w.logger.Warn("reloading templates", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("templates reloaded", zap.String("path", path), zap.Strings("keys", keys))
	if w.onReload != nil {
		w.onReload(path, keys)
	}
}
