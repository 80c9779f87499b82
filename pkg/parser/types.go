// Package parser decodes agent session logs.
//
// A session log is a JSONL file: every line is an independent JSON object
// describing one record of a conversation (a user turn, an assistant
// response, a system marker, a summary, ...). The parser decodes lines into
// Record values and exposes helpers for the fields the telemetry pipeline
// cares about: message kind, timestamp, model and token usage.
//
// Malformed lines are never fatal. ParseLine reports them as errors and
// ParseFile counts and skips them so one corrupt line cannot hide the rest
// of a file.
//
// Example usage:
//
//	p := parser.New(logger.Default())
//	stats, err := p.ParseFile("/path/to/session.jsonl", func(rec *parser.Record) {
//	    if u := rec.Usage(); u != nil {
//	        fmt.Println(rec.Model(), u.Total())
//	    }
//	})
package parser

import (
	"encoding/json"
	"strings"
	"time"
)

// Record types found in session logs.
const (
	TypeUser      = "user"
	TypeAssistant = "assistant"
	TypeSystem    = "system"
	TypeSummary   = "summary"
)

// SubtypeCompactBoundary marks a system record written when the
// conversation history was compacted.
const SubtypeCompactBoundary = "compact_boundary"

// SyntheticModel is the placeholder model name written for messages that
// were not produced by a real model call.
const SyntheticModel = "<synthetic>"

// Record is one decoded line of a session log.
//
// Only Timestamp is required for a record to count toward time-based
// aggregates; everything else is optional and depends on Type.
type Record struct {
	Type            string           `json:"type"`
	Subtype         string           `json:"subtype,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
	SessionID       string           `json:"sessionId,omitempty"`
	UUID            string           `json:"uuid,omitempty"`
	Cwd             string           `json:"cwd,omitempty"`
	IsMeta          bool             `json:"isMeta,omitempty"`
	Message         *Message         `json:"message,omitempty"`
	ToolUseResult   json.RawMessage  `json:"toolUseResult,omitempty"`
	CompactMetadata *CompactMetadata `json:"compactMetadata,omitempty"`
}

// Message is the model-facing payload of a user or assistant record.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Role    string          `json:"role,omitempty"`
	Model   string          `json:"model,omitempty"`
	Usage   *Usage          `json:"usage,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// Usage contains token consumption for a single API call.
//
// Token types:
//   - InputTokens: fresh prompt tokens
//   - OutputTokens: generated tokens
//   - CacheCreationInputTokens: prompt tokens written to the cache
//   - CacheReadInputTokens: prompt tokens served from the cache
type Usage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

// CompactMetadata is attached to compaction boundary records.
type CompactMetadata struct {
	Trigger   string `json:"trigger,omitempty"`
	PreTokens int64  `json:"preTokens"`
}

// ContentBlock is one element of a message content array.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// Total returns the sum of all token kinds.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens +
		u.CacheCreationInputTokens + u.CacheReadInputTokens
}

// Add returns the element-wise sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:              u.InputTokens + o.InputTokens,
		OutputTokens:             u.OutputTokens + o.OutputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens + o.CacheCreationInputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens + o.CacheReadInputTokens,
	}
}

// IsMessage reports whether the record is a user or assistant turn.
func (r *Record) IsMessage() bool {
	return r.Type == TypeUser || r.Type == TypeAssistant
}

// IsCompaction reports whether the record marks a history compaction.
func (r *Record) IsCompaction() bool {
	return r.Type == TypeSystem && r.Subtype == SubtypeCompactBoundary
}

// Usage returns the token usage carried by the record, or nil.
func (r *Record) Usage() *Usage {
	if r.Message == nil {
		return nil
	}
	return r.Message.Usage
}

// Model returns the real model name of the record, or "" for records
// without one and for placeholder names.
func (r *Record) Model() string {
	if r.Message == nil || IsPlaceholderModel(r.Message.Model) {
		return ""
	}
	return r.Message.Model
}

// Blocks decodes the message content. A plain string content is returned
// as a single text block.
func (r *Record) Blocks() []ContentBlock {
	if r.Message == nil {
		return nil
	}
	return DecodeContent(r.Message.Content)
}

// Text concatenates the text blocks of the message.
func (r *Record) Text() string {
	var parts []string
	for _, b := range r.Blocks() {
		if b.Type == "text" && strings.TrimSpace(b.Text) != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolDurationMs extracts a duration from the record's tool result payload,
// if the tool reported one.
func (r *Record) ToolDurationMs() int64 {
	if len(r.ToolUseResult) == 0 || r.ToolUseResult[0] != '{' {
		return 0
	}
	var res struct {
		DurationMs      int64 `json:"durationMs"`
		TotalDurationMs int64 `json:"totalDurationMs"`
	}
	if err := json.Unmarshal(r.ToolUseResult, &res); err != nil {
		return 0
	}
	if res.DurationMs > 0 {
		return res.DurationMs
	}
	return res.TotalDurationMs
}

// DecodeContent decodes raw message content that is either a JSON string
// or an array of content blocks. Undecodable content yields nil.
func DecodeContent(raw json.RawMessage) []ContentBlock {
	if len(raw) == 0 {
		return nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		return []ContentBlock{{Type: "text", Text: s}}
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil
	}
	return blocks
}

// IsPlaceholderModel reports whether a model name is empty or synthetic.
func IsPlaceholderModel(model string) bool {
	return model == "" || model == SyntheticModel
}
