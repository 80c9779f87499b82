package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/0xmhha/agentpulse/pkg/logger"
)

const (
	// MaxFileSize is the largest session file ParseFile will scan (512MB).
	MaxFileSize = 512 * 1024 * 1024

	// MaxLineLength is the longest line that is decoded (16MB). Longer
	// lines are counted as malformed and skipped.
	MaxLineLength = 16 * 1024 * 1024
)

// Stats summarizes one scan.
type Stats struct {
	Lines     int // non-empty lines seen
	Records   int // lines decoded successfully
	Malformed int // lines skipped
}

// Parser decodes session log lines and files.
type Parser interface {
	// ParseLine decodes a single line (without its terminator).
	//
	// Thread-safety: safe for concurrent use.
	ParseLine(line []byte) (*Record, error)

	// Parse decodes every line of r and calls fn for each record in file
	// order. Malformed lines are skipped and counted. A trailing line
	// without a newline is decoded too.
	Parse(r io.Reader, fn func(*Record)) (Stats, error)

	// ParseFile opens path and runs Parse over its full contents.
	ParseFile(path string, fn func(*Record)) (Stats, error)
}

type jsonlParser struct {
	logger logger.Logger
}

// New creates a Parser that reports skipped lines at debug level.
func New(log logger.Logger) Parser {
	return &jsonlParser{logger: log}
}

// ParseLine implements Parser.ParseLine.
func (p *jsonlParser) ParseLine(line []byte) (*Record, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, ErrEmptyLine
	}

	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return &rec, nil
}

// Parse implements Parser.Parse.
func (p *jsonlParser) Parse(r io.Reader, fn func(*Record)) (Stats, error) {
	var stats Stats
	br := bufio.NewReaderSize(r, 64*1024)
	lineNum := 0

	for {
		line, readErr := br.ReadBytes('\n')
		if len(line) > 0 {
			lineNum++
			p.handleLine(line, lineNum, &stats, fn)
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return stats, nil
			}
			return stats, fmt.Errorf("read error after line %d: %w", lineNum, readErr)
		}
	}
}

func (p *jsonlParser) handleLine(line []byte, lineNum int, stats *Stats, fn func(*Record)) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	stats.Lines++

	if len(line) > MaxLineLength {
		stats.Malformed++
		p.logger.Debug("skipping oversized line", "line", lineNum, "bytes", len(line))
		return
	}

	rec, err := p.ParseLine(line)
	if err != nil {
		stats.Malformed++
		p.logger.Debug("skipping malformed line",
			"error", &ParseError{Line: lineNum, Data: string(line), Err: err})
		return
	}

	stats.Records++
	fn(rec)
}

// ParseFile implements Parser.ParseFile.
func (p *jsonlParser) ParseFile(path string, fn func(*Record)) (Stats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() > MaxFileSize {
		return Stats{}, fmt.Errorf("%w: size=%d, max=%d", ErrFileTooLarge, info.Size(), MaxFileSize)
	}

	// #nosec G304: path comes from directory discovery
	f, err := os.Open(path) // nolint:gosec
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			p.logger.Debug("failed to close file", "path", path, "error", closeErr)
		}
	}()

	return p.Parse(f, fn)
}
