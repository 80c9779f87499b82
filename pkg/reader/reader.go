// Package reader tails append-only session logs.
//
// A Reader returns only the complete lines appended to a file since the
// previous call, decoded as parser records. Positions live in an
// OffsetStore. The first time a file is seen its current size becomes the
// baseline, so tailing starts at "now" instead of replaying history.
//
// Example usage:
//
//	r, err := reader.New(reader.Config{
//	    Store:  reader.NewMemoryOffsetStore(),
//	    Parser: parser.New(log),
//	}, log)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	records, err := r.Tail(ctx, "/path/to/session.jsonl")
package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/0xmhha/agentpulse/pkg/logger"
	"github.com/0xmhha/agentpulse/pkg/parser"
)

// DefaultMaxReadBytes bounds a single tail pass (8MB).
const DefaultMaxReadBytes = 8 * 1024 * 1024

// alignWindow bounds how far Tail looks back for the start of a line that
// an unaligned offset cut.
const alignWindow = 64 * 1024

// fileStat is what Tail needs to know about a file.
type fileStat struct {
	size     int64
	identity string
}

// Reader provides incremental file reading.
type Reader interface {
	// Tail returns the records in complete lines appended to path since the
	// last call and advances the stored offset past the last newline.
	//
	// A trailing partial line is left for the next call. Malformed complete
	// lines are skipped. A file seen for the first time only records its
	// size and returns nothing. A truncated file is rebased to its new size;
	// a rotated file (new identity at the same path) is read from the start.
	Tail(ctx context.Context, path string) ([]*parser.Record, error)

	// Rebase moves the baseline of path to its current size without
	// reading any content. If that size cuts a line, the next Tail backs
	// up to the start of the line.
	Rebase(path string) error

	// Track records the current size of path as its baseline unless a
	// position is already stored.
	Track(path string) error

	// Forget drops the stored position of path.
	Forget(path string) error

	// Close closes the reader and its offset store.
	Close() error
}

// Config contains reader configuration.
type Config struct {
	// Store persists file positions.
	Store OffsetStore

	// Parser decodes lines.
	Parser parser.Parser

	// MaxReadBytes bounds the bytes consumed per Tail call.
	// Default: DefaultMaxReadBytes.
	MaxReadBytes int64

	// NewFilesFromStart makes Tail read a file it has no position for from
	// offset 0 instead of seeding at the current size. Files that existed
	// earlier should be registered with Track first.
	NewFilesFromStart bool
}

type reader struct {
	store  OffsetStore
	parser parser.Parser
	logger logger.Logger
	config Config
	closed atomic.Bool
}

// New creates a tailing reader.
func New(cfg Config, log logger.Logger) (Reader, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("offset store is required")
	}
	if cfg.Parser == nil {
		return nil, fmt.Errorf("parser is required")
	}
	if cfg.MaxReadBytes <= 0 {
		cfg.MaxReadBytes = DefaultMaxReadBytes
	}

	return &reader{
		store:  cfg.Store,
		parser: cfg.Parser,
		logger: log,
		config: cfg,
	}, nil
}

// Tail implements Reader.Tail.
func (r *reader) Tail(ctx context.Context, path string) ([]*parser.Record, error) {
	if r.closed.Load() {
		return nil, ErrReaderClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, err := statFile(path)
	if err != nil {
		return nil, err
	}
	size, identity := st.size, st.identity

	pos, known, err := r.store.Get(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	if !known {
		if !r.config.NewFilesFromStart {
			r.logger.Debug("new file, starting at current size", "path", path, "size", size)
			return nil, r.setPosition(path, seededAt(size, identity))
		}
		r.logger.Debug("new file, reading from start", "path", path, "size", size)
		pos = Position{Identity: identity}
	}

	start := pos.Offset
	switch {
	case pos.Identity != "" && identity != "" && pos.Identity != identity:
		r.logger.Info("file rotated, reading new file from start",
			"path", path,
			"old_identity", pos.Identity,
			"new_identity", identity)
		start = 0
	case size < pos.Offset:
		r.logger.Warn("file truncated, rebasing to current size",
			"path", path,
			"old_offset", pos.Offset,
			"file_size", size)
		return nil, r.setPosition(path, seededAt(size, identity))
	}

	if pos.Unaligned && start == pos.Offset {
		if start, err = r.lineStart(path, start); err != nil {
			return nil, err
		}
	}

	if size == start {
		if identity != pos.Identity || start != pos.Offset || pos.Unaligned {
			return nil, r.setPosition(path, Position{Offset: start, Identity: identity})
		}
		return nil, nil
	}

	end := size
	if end-start > r.config.MaxReadBytes {
		end = start + r.config.MaxReadBytes
	}

	buf, err := readRange(path, start, end)
	if err != nil {
		return nil, err
	}

	consumed := bytes.LastIndexByte(buf, '\n') + 1
	if consumed == 0 {
		if int64(len(buf)) == r.config.MaxReadBytes {
			// A single line longer than one pass would never complete;
			// skip past it so the file is not stuck.
			r.logger.Warn("skipping oversized line", "path", path, "offset", start, "bytes", len(buf))
			return nil, r.setPosition(path, Position{Offset: start + int64(len(buf)), Identity: identity})
		}
		if start != pos.Offset || identity != pos.Identity || pos.Unaligned {
			return nil, r.setPosition(path, Position{Offset: start, Identity: identity})
		}
		return nil, nil
	}

	records := r.parseLines(path, buf[:consumed])

	if err := r.setPosition(path, Position{Offset: start + int64(consumed), Identity: identity}); err != nil {
		return nil, err
	}

	r.logger.Debug("tail pass complete",
		"path", path,
		"bytes", consumed,
		"records", len(records))

	return records, nil
}

// Rebase implements Reader.Rebase.
func (r *reader) Rebase(path string) error {
	if r.closed.Load() {
		return ErrReaderClosed
	}

	st, err := statFile(path)
	if err != nil {
		return err
	}
	return r.setPosition(path, seededAt(st.size, st.identity))
}

// Track implements Reader.Track.
func (r *reader) Track(path string) error {
	if r.closed.Load() {
		return ErrReaderClosed
	}

	_, known, err := r.store.Get(path)
	if err != nil {
		return fmt.Errorf("failed to get position: %w", err)
	}
	if known {
		return nil
	}
	return r.Rebase(path)
}

// Forget implements Reader.Forget.
func (r *reader) Forget(path string) error {
	if r.closed.Load() {
		return ErrReaderClosed
	}
	return r.store.Delete(path)
}

// Close implements Reader.Close.
func (r *reader) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.store.Close()
}

func (r *reader) setPosition(path string, pos Position) error {
	if err := r.store.Set(path, pos); err != nil {
		return fmt.Errorf("failed to store position: %w", err)
	}
	return nil
}

func (r *reader) parseLines(path string, data []byte) []*parser.Record {
	records := make([]*parser.Record, 0, bytes.Count(data, []byte{'\n'}))

	for len(data) > 0 {
		idx := bytes.IndexByte(data, '\n')
		line := data[:idx]
		data = data[idx+1:]

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		rec, err := r.parser.ParseLine(line)
		if err != nil {
			r.logger.Debug("skipping malformed line", "path", path, "error", err)
			continue
		}
		records = append(records, rec)
	}

	return records
}

// seededAt is the position of a file baselined at size without reading.
func seededAt(size int64, identity string) Position {
	return Position{Offset: size, Identity: identity, Unaligned: size > 0}
}

// lineStart returns the offset of the line containing the byte before
// offset. When no newline is found within alignWindow, offset is returned
// and the cut line is dropped as malformed.
func (r *reader) lineStart(path string, offset int64) (int64, error) {
	from := max(0, offset-alignWindow)
	buf, err := readRange(path, from, offset)
	if err != nil {
		return 0, err
	}
	if i := bytes.LastIndexByte(buf, '\n'); i >= 0 {
		return from + int64(i) + 1, nil
	}
	if from == 0 {
		return 0, nil
	}
	r.logger.Debug("no line start within window", "path", path, "offset", offset)
	return offset, nil
}

// readRange reads [start, end) of path. A file that shrank mid-read yields
// the bytes that were available.
func readRange(path string, start, end int64) ([]byte, error) {
	// #nosec G304: path comes from the directory watcher
	f, err := os.Open(path) // nolint:gosec
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, end-start)
	n, err := io.ReadFull(io.NewSectionReader(f, start, end-start), buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return buf[:n], nil
}
