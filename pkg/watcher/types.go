// Package watcher reports changes to session log files.
//
// It uses fsnotify to watch directory trees recursively, follows new
// subdirectories as they appear and debounces bursts of writes to the same
// file into a single event.
//
// Example usage:
//
//	w, err := watcher.New(watcher.Config{
//	    DebounceInterval: 100 * time.Millisecond,
//	}, log)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	if err := w.Start(ctx, []string{"~/.claude/projects"}); err != nil {
//	    return err
//	}
//	for event := range w.Events() {
//	    fmt.Printf("%s %s\n", event.Op, event.Path)
//	}
package watcher

import (
	"context"
	"time"
)

// Op describes a file operation type.
type Op uint32

// File operation types.
const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

// String returns a human-readable operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Event is a debounced change to one file.
type Event struct {
	// Path is the path of the file that changed.
	Path string

	// Op is the last operation seen for the file within the debounce window.
	Op Op

	// Timestamp is when the operation was observed.
	Timestamp time.Time
}

// Watcher provides file system monitoring.
type Watcher interface {
	// Start registers the roots (recursively) and begins delivering events
	// in the background until ctx is cancelled or Stop is called.
	//
	// Roots that do not exist are skipped with a warning; if none exist
	// Start returns ErrNoWatchPaths.
	Start(ctx context.Context, roots []string) error

	// Stop stops event processing.
	Stop() error

	// Events returns the channel of debounced events.
	Events() <-chan Event

	// Errors returns non-fatal watcher errors.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error
}

// Config contains watcher configuration.
type Config struct {
	// DebounceInterval coalesces events for the same file.
	// Default: 100ms.
	DebounceInterval time.Duration

	// Extension selects the files that produce events.
	// Default: ".jsonl".
	Extension string

	// EventBuffer is the capacity of the events channel.
	// Default: 256.
	EventBuffer int
}
