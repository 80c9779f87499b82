package parser

import (
	"errors"
	"fmt"
)

// Common errors returned by the parser package.
var (
	// ErrEmptyLine is returned for blank lines.
	ErrEmptyLine = errors.New("empty line")

	// ErrMalformedJSON is returned when a line cannot be decoded.
	ErrMalformedJSON = errors.New("malformed JSON line")

	// ErrFileTooLarge is returned when a file exceeds the maximum size limit.
	ErrFileTooLarge = errors.New("file size exceeds maximum limit")
)

// ParseError provides context about a skipped line.
type ParseError struct {
	Line int    // 1-indexed line number, 0 if unknown
	Data string // the offending line, truncated
	Err  error
}

func (e *ParseError) Error() string {
	data := e.Data
	if len(data) > 100 {
		data = data[:100] + "..."
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %q: %v", e.Line, data, e.Err)
	}
	return fmt.Sprintf("parse error: %q: %v", data, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
