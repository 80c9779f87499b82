// Package feed turns appended session log records into live events and
// fans them out to subscribers.
//
// A Pump follows watcher events, tails changed files through a reader and
// broadcasts the converted events on a Hub. A Registry holds one Hub per
// agent. Tailing is skipped while a Hub has no subscribers: the file's
// baseline is moved forward without reading it.
package feed

import (
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/0xmhha/agentpulse/pkg/parser"
)

// Kind identifies the type of a live event.
type Kind string

// Event kinds.
const (
	KindUser        Kind = "user"
	KindAssistant   Kind = "assistant"
	KindToolCall    Kind = "tool_call"
	KindToolResult  Kind = "tool_result"
	KindCompaction  Kind = "compaction"
	KindModelChange Kind = "model_change"
)

// MaxTextRunes caps the text carried by user and assistant events.
const MaxTextRunes = 500

// maxTrackedTools bounds the tool-name lookup kept for tool results.
const maxTrackedTools = 4096

// Event is one live event, serialized as the SSE message payload.
type Event struct {
	Type      Kind      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId,omitempty"`
	Project   string    `json:"project,omitempty"`

	Text  string        `json:"text,omitempty"`
	Model string        `json:"model,omitempty"`
	Usage *parser.Usage `json:"usage,omitempty"`

	Tool       string `json:"tool,omitempty"`
	ToolUseID  string `json:"toolUseId,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
	IsError    bool   `json:"isError,omitempty"`

	PreTokens int64 `json:"preTokens,omitempty"`

	PreviousModel string `json:"previousModel,omitempty"`
	NewModel      string `json:"newModel,omitempty"`
}

// Converter maps records to events. It remembers the last model per file
// to detect model changes and the names of recent tool calls so results
// can be labelled. It is not safe for concurrent use.
type Converter struct {
	lastModel map[string]string
	toolNames map[string]string
}

// NewConverter creates an empty Converter.
func NewConverter() *Converter {
	return &Converter{
		lastModel: make(map[string]string),
		toolNames: make(map[string]string),
	}
}

// Convert returns the events for one record read from path, in order.
// Record types that are not surfaced yield nothing.
func (c *Converter) Convert(path string, rec *parser.Record) []Event {
	base := Event{
		Timestamp: rec.Timestamp,
		SessionID: rec.SessionID,
		Project:   filepath.Base(filepath.Dir(path)),
	}
	if base.SessionID == "" {
		base.SessionID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	switch {
	case rec.IsCompaction():
		ev := base
		ev.Type = KindCompaction
		if rec.CompactMetadata != nil {
			ev.PreTokens = rec.CompactMetadata.PreTokens
		}
		return []Event{ev}

	case rec.Type == parser.TypeUser:
		if rec.IsMeta {
			return nil
		}
		return c.convertUser(base, rec)

	case rec.Type == parser.TypeAssistant:
		return c.convertAssistant(path, base, rec)
	}

	return nil
}

// Forget drops per-file state for path.
func (c *Converter) Forget(path string) {
	delete(c.lastModel, path)
}

func (c *Converter) convertUser(base Event, rec *parser.Record) []Event {
	var events []Event

	for _, b := range rec.Blocks() {
		if b.Type != "tool_result" {
			continue
		}
		ev := base
		ev.Type = KindToolResult
		ev.ToolUseID = b.ToolUseID
		ev.Tool = c.toolNames[b.ToolUseID]
		ev.IsError = b.IsError
		ev.DurationMs = rec.ToolDurationMs()
		events = append(events, ev)
		delete(c.toolNames, b.ToolUseID)
	}

	if text := rec.Text(); text != "" {
		ev := base
		ev.Type = KindUser
		ev.Text = truncateRunes(text, MaxTextRunes)
		events = append(events, ev)
	}

	return events
}

func (c *Converter) convertAssistant(path string, base Event, rec *parser.Record) []Event {
	var events []Event

	model := rec.Model()
	if model != "" {
		if prev := c.lastModel[path]; prev != "" && prev != model {
			ev := base
			ev.Type = KindModelChange
			ev.PreviousModel = prev
			ev.NewModel = model
			events = append(events, ev)
		}
		c.lastModel[path] = model
	}

	if text := rec.Text(); text != "" {
		ev := base
		ev.Type = KindAssistant
		ev.Text = truncateRunes(text, MaxTextRunes)
		ev.Model = model
		ev.Usage = rec.Usage()
		events = append(events, ev)
	}

	for _, b := range rec.Blocks() {
		if b.Type != "tool_use" {
			continue
		}
		if len(c.toolNames) >= maxTrackedTools {
			c.toolNames = make(map[string]string)
		}
		c.toolNames[b.ID] = b.Name

		ev := base
		ev.Type = KindToolCall
		ev.Tool = b.Name
		ev.ToolUseID = b.ID
		ev.Model = model
		events = append(events, ev)
	}

	return events
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
