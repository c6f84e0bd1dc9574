package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// HotSwappable is the subset of Config safe to change without
// restarting a namespace: altering the reconcile cadence or the
// disk-flush threshold doesn't touch the on-disk format or the vector
// index dimension. The Watcher only hands a new value to OnChange
// callbacks; the reconciler has no setter for these fields, so a
// running reconciler keeps its start-up values. Everything else (storage_path, vector_dimension,
// bind_address) requires a restart and is intentionally excluded here.
type HotSwappable struct {
	ReconcileInterval time.Duration
	MemoryThreshold   int
	MaxBatchSize      int
}

func hotSwappableOf(c Config) HotSwappable {
	return HotSwappable{
		ReconcileInterval: c.Interval(),
		MemoryThreshold:   c.MemoryThreshold,
		MaxBatchSize:      c.MaxBatchSize,
	}
}

// Watcher reloads the config file on change and notifies registered
// callbacks with the HotSwappable subset, debounced to avoid a burst of
// reloads from an editor's save-then-rename sequence.
type Watcher struct {
	path      string
	logger    *zap.Logger
	fsWatcher *fsnotify.Watcher

	mu        sync.RWMutex
	current   HotSwappable
	callbacks []func(HotSwappable)

	stopCh chan struct{}
	doneCh chan struct{}
}

const debounceDelay = 200 * time.Millisecond

// NewWatcher starts watching path for changes. initial is the already
// loaded Config; reloads re-read path from scratch.
func NewWatcher(path string, initial Config, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(path); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w := &Watcher{
		path:      path,
		logger:    logger,
		fsWatcher: fsWatcher,
		current:   hotSwappableOf(initial),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// OnChange registers a callback invoked (in a separate goroutine, with
// panics recovered) whenever a reload produces a changed HotSwappable
// subset.
func (w *Watcher) OnChange(fn func(HotSwappable)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, fn)
	w.mu.Unlock()
}

// Current returns the most recently applied hot-swappable subset.
func (w *Watcher) Current() HotSwappable {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Stop shuts down the watcher goroutine.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
	w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	defer close(w.doneCh)
	var debounce *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		case <-reload:
			w.reloadOnce()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) reloadOnce() {
	next, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping prior config", zap.Error(err))
		return
	}

	updated := hotSwappableOf(next)
	w.mu.Lock()
	unchanged := updated == w.current
	w.current = updated
	callbacks := make([]func(HotSwappable), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	if unchanged {
		return
	}

	w.logger.Info("config hot-reloaded",
		zap.Duration("reconcile_interval", updated.ReconcileInterval),
		zap.Int("memory_threshold", updated.MemoryThreshold),
	)
	for _, cb := range callbacks {
		go func(fn func(HotSwappable)) {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("config change callback panicked", zap.Any("panic", r))
				}
			}()
			fn(updated)
		}(cb)
	}
}
