package feed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/0xmhha/agentpulse/pkg/logger"
	"github.com/0xmhha/agentpulse/pkg/reader"
	"github.com/0xmhha/agentpulse/pkg/watcher"
)

// DefaultRetryInterval is how often Follow checks for a log directory that
// did not exist yet.
const DefaultRetryInterval = 10 * time.Second

// Pump moves appended records from watched files onto a hub.
type Pump struct {
	hub       *Hub
	watcher   watcher.Watcher
	reader    reader.Reader
	converter *Converter
	logger    logger.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewPump creates a pump. The pump owns w and r and closes them in Close.
func NewPump(hub *Hub, w watcher.Watcher, r reader.Reader, log logger.Logger) *Pump {
	return &Pump{
		hub:       hub,
		watcher:   w,
		reader:    r,
		converter: NewConverter(),
		logger:    log.With("agent", hub.Name()),
		stopChan:  make(chan struct{}),
	}
}

// Start watches roots and processes changes in the background until ctx
// is cancelled or Close is called.
func (p *Pump) Start(ctx context.Context, roots []string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPumpClosed
	}
	if p.running {
		p.mu.Unlock()
		return ErrPumpRunning
	}
	p.running = true
	p.mu.Unlock()

	p.trackExisting(roots)

	if err := p.watcher.Start(ctx, roots); err != nil {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		if errors.Is(err, watcher.ErrNoWatchPaths) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	p.wg.Add(1)
	go p.processEvents(ctx)

	p.logger.Info("feed pump started", "roots", roots)
	return nil
}

// Follow starts the pump on the current roots of sources. When none exist
// yet it returns ErrUnavailable and keeps checking every interval in the
// background, starting the pump as soon as a root appears. ready is called
// once the pump runs, from whichever goroutine started it.
func (p *Pump) Follow(ctx context.Context, sources SourceChecker, interval time.Duration, ready func()) error {
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	err := p.Start(ctx, sources.Roots())
	if err == nil {
		ready()
		return nil
	}
	if !errors.Is(err, ErrUnavailable) {
		return err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPumpClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go p.retryStart(ctx, sources, interval, ready)
	return err
}

func (p *Pump) retryStart(ctx context.Context, sources SourceChecker, interval time.Duration, ready func()) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
		}

		roots := sources.Roots()
		if len(roots) == 0 {
			continue
		}

		err := p.Start(ctx, roots)
		switch {
		case err == nil:
			p.logger.Info("log directory appeared", "roots", roots)
			ready()
			return
		case errors.Is(err, ErrPumpClosed):
			return
		case errors.Is(err, ErrUnavailable):
		default:
			p.logger.Warn("failed to start feed pump", "error", err)
		}
	}
}

// Close stops the pump and closes its watcher and reader.
func (p *Pump) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()

	var errs []error
	if err := p.watcher.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.reader.Close(); err != nil {
		errs = append(errs, err)
	}

	p.logger.Debug("feed pump closed")
	return errors.Join(errs...)
}

// trackExisting baselines every session file already present so only
// content written from now on is streamed.
func (p *Pump) trackExisting(roots []string) {
	tracked := 0
	for _, root := range roots {
		err := filepath.WalkDir(watcher.ExpandHome(root), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() || !strings.HasSuffix(path, ".jsonl") {
				return nil
			}
			if err := p.reader.Track(path); err != nil {
				p.logger.Debug("failed to track file", "path", path, "error", err)
				return nil
			}
			tracked++
			return nil
		})
		if err != nil {
			p.logger.Warn("failed to walk root", "root", root, "error", err)
		}
	}
	p.logger.Debug("tracked existing files", "files", tracked)
}

func (p *Pump) processEvents(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case <-p.stopChan:
			return

		case event, ok := <-p.watcher.Events():
			if !ok {
				p.logger.Info("watcher events channel closed")
				return
			}
			p.handleFileChange(ctx, event)

		case err, ok := <-p.watcher.Errors():
			if !ok {
				return
			}
			p.logger.Warn("watcher error", "error", err)
		}
	}
}

// handleFileChange tails one changed file and broadcasts its new events.
// With no subscribers the file is only rebased, never read.
func (p *Pump) handleFileChange(ctx context.Context, event watcher.Event) {
	if event.Op == watcher.OpRemove || event.Op == watcher.OpRename {
		if err := p.reader.Forget(event.Path); err != nil {
			p.logger.Debug("failed to forget file", "path", event.Path, "error", err)
		}
		p.converter.Forget(event.Path)
		return
	}

	if p.hub.Count() == 0 {
		if err := p.reader.Rebase(event.Path); err != nil {
			p.logger.Debug("failed to rebase idle file", "path", event.Path, "error", err)
		}
		return
	}

	records, err := p.reader.Tail(ctx, event.Path)
	if err != nil {
		p.logger.Warn("failed to tail file", "path", event.Path, "error", err)
		return
	}

	sent := 0
	for _, rec := range records {
		for _, ev := range p.converter.Convert(event.Path, rec) {
			p.hub.Broadcast(ev)
			sent++
		}
	}

	if sent > 0 {
		p.logger.Debug("broadcast file change",
			"path", event.Path,
			"records", len(records),
			"events", sent)
	}
}
