package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xmhha/agentpulse/pkg/logger"
)

// watcher implements the Watcher interface using fsnotify.
type watcher struct {
	fsw    *fsnotify.Watcher
	logger logger.Logger
	config Config

	events chan Event
	errors chan error

	mu       sync.Mutex
	running  bool
	closed   bool
	stopOnce sync.Once
	stopChan chan struct{}
	loopWG   sync.WaitGroup

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer
	timerWG        sync.WaitGroup

	failureCount int
}

// New creates a file system watcher.
func New(cfg Config, log logger.Logger) (Watcher, error) {
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = 100 * time.Millisecond
	}
	if cfg.Extension == "" {
		cfg.Extension = ".jsonl"
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	log.Debug("file watcher created",
		"debounce_interval", cfg.DebounceInterval,
		"extension", cfg.Extension)

	return &watcher{
		fsw:            fsw,
		logger:         log,
		config:         cfg,
		events:         make(chan Event, cfg.EventBuffer),
		errors:         make(chan error, 10),
		stopChan:       make(chan struct{}),
		debounceTimers: make(map[string]*time.Timer),
	}, nil
}

// Start implements Watcher.Start.
func (w *watcher) Start(ctx context.Context, roots []string) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addRoots(roots); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}

	w.logger.Info("watcher started", "roots", roots)

	w.loopWG.Add(1)
	go w.processEvents(ctx)

	return nil
}

// Stop implements Watcher.Stop.
func (w *watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if !w.running {
		return ErrNotStarted
	}

	w.stopOnce.Do(func() { close(w.stopChan) })
	w.running = false

	w.logger.Info("watcher stopped")
	return nil
}

// Events implements Watcher.Events.
func (w *watcher) Events() <-chan Event {
	return w.events
}

// Errors implements Watcher.Errors.
func (w *watcher) Errors() <-chan error {
	return w.errors
}

// Close implements Watcher.Close.
func (w *watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.running = false
	w.mu.Unlock()

	w.stopOnce.Do(func() { close(w.stopChan) })
	w.loopWG.Wait()

	// No new timers can be scheduled once the map is nil.
	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		if timer.Stop() {
			w.timerWG.Done()
		}
	}
	w.debounceTimers = nil
	w.debounceMu.Unlock()
	w.timerWG.Wait()

	close(w.events)
	close(w.errors)

	if err := w.fsw.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.logger.Debug("watcher closed")
	return nil
}

func (w *watcher) addRoots(roots []string) error {
	added := 0
	for _, root := range roots {
		expanded := ExpandHome(root)

		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				w.logger.Warn("watch path does not exist, skipping", "path", expanded)
				continue
			}
			return fmt.Errorf("failed to stat path %s: %w", expanded, err)
		}

		if err := w.addRecursive(expanded); err != nil {
			return fmt.Errorf("failed to add path %s: %w", expanded, err)
		}
		added++
	}

	if added == 0 {
		return ErrNoWatchPaths
	}
	return nil
}

func (w *watcher) processEvents(ctx context.Context) {
	defer w.loopWG.Done()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("event processing stopped", "reason", "context cancelled")
			return

		case <-w.stopChan:
			w.logger.Debug("event processing stopped", "reason", "stop signal")
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.handleError(err)
		}
	}
}

func (w *watcher) handleEvent(event fsnotify.Event) {
	// New project directories must be watched too.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if addErr := w.addRecursive(event.Name); addErr != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", addErr)
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, w.config.Extension) {
		return
	}

	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpWrite
	case event.Has(fsnotify.Remove):
		op = OpRemove
	case event.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}

	w.failureCount = 0
	w.debounce(Event{Path: event.Name, Op: op, Timestamp: time.Now()})
}

// debounce delays delivery so a burst of writes yields one event carrying
// the latest operation.
func (w *watcher) debounce(event Event) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimers == nil {
		return
	}

	if timer, exists := w.debounceTimers[event.Path]; exists {
		if timer.Stop() {
			w.timerWG.Done()
		}
	}

	w.timerWG.Add(1)
	w.debounceTimers[event.Path] = time.AfterFunc(w.config.DebounceInterval, func() {
		defer w.timerWG.Done()

		w.debounceMu.Lock()
		if w.debounceTimers != nil {
			delete(w.debounceTimers, event.Path)
		}
		w.debounceMu.Unlock()

		select {
		case w.events <- event:
		case <-w.stopChan:
		}
	})
}

func (w *watcher) handleError(err error) {
	w.failureCount++
	w.logger.Error("fsnotify error", "error", err, "failure_count", w.failureCount)

	select {
	case w.errors <- err:
	default:
		w.logger.Warn("error channel full, dropping error")
	}
}

func (w *watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.logger.Warn("error walking path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		if addErr := w.fsw.Add(path); addErr != nil {
			if path == root {
				return addErr
			}
			w.logger.Warn("failed to add subdirectory", "path", path, "error", addErr)
			return nil
		}
		w.logger.Debug("watching directory", "path", path)
		return nil
	})
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return homeDir
	}
	return filepath.Join(homeDir, path[2:])
}
