package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/0xmhha/agentpulse/pkg/logger"
)

func TestParseLine(t *testing.T) {
	p := New(logger.Noop())

	tests := []struct {
		name    string
		line    string
		wantErr error
		check   func(t *testing.T, rec *Record)
	}{
		{
			name: "assistant with usage",
			line: `{"type":"assistant","timestamp":"2026-01-15T10:30:00Z","sessionId":"s1","message":{"id":"msg_1","model":"claude-sonnet-4-6","usage":{"input_tokens":100,"output_tokens":50,"cache_creation_input_tokens":20,"cache_read_input_tokens":10},"content":[{"type":"text","text":"hello"}]}}`,
			check: func(t *testing.T, rec *Record) {
				if rec.Type != TypeAssistant {
					t.Errorf("Type = %q, want assistant", rec.Type)
				}
				if rec.Model() != "claude-sonnet-4-6" {
					t.Errorf("Model() = %q", rec.Model())
				}
				u := rec.Usage()
				if u == nil {
					t.Fatal("Usage() = nil")
				}
				if u.Total() != 180 {
					t.Errorf("Total() = %d, want 180", u.Total())
				}
				if rec.Text() != "hello" {
					t.Errorf("Text() = %q, want hello", rec.Text())
				}
				want := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
				if !rec.Timestamp.Equal(want) {
					t.Errorf("Timestamp = %v, want %v", rec.Timestamp, want)
				}
			},
		},
		{
			name: "user with string content",
			line: `{"type":"user","timestamp":"2026-01-15T10:29:00Z","message":{"role":"user","content":"fix the build"}}`,
			check: func(t *testing.T, rec *Record) {
				if !rec.IsMessage() {
					t.Error("IsMessage() = false")
				}
				if rec.Text() != "fix the build" {
					t.Errorf("Text() = %q", rec.Text())
				}
				if rec.Usage() != nil {
					t.Error("user record should carry no usage")
				}
			},
		},
		{
			name: "synthetic model is a placeholder",
			line: `{"type":"assistant","timestamp":"2026-01-15T10:30:00Z","message":{"model":"<synthetic>","content":[]}}`,
			check: func(t *testing.T, rec *Record) {
				if rec.Model() != "" {
					t.Errorf("Model() = %q, want empty", rec.Model())
				}
			},
		},
		{
			name: "compaction boundary",
			line: `{"type":"system","subtype":"compact_boundary","timestamp":"2026-01-15T11:00:00Z","compactMetadata":{"trigger":"auto","preTokens":155000}}`,
			check: func(t *testing.T, rec *Record) {
				if !rec.IsCompaction() {
					t.Error("IsCompaction() = false")
				}
				if rec.CompactMetadata.PreTokens != 155000 {
					t.Errorf("PreTokens = %d", rec.CompactMetadata.PreTokens)
				}
			},
		},
		{
			name: "summary without timestamp",
			line: `{"type":"summary","summary":"Refactor","leafUuid":"x"}`,
			check: func(t *testing.T, rec *Record) {
				if !rec.Timestamp.IsZero() {
					t.Error("summary should have zero timestamp")
				}
				if rec.IsMessage() {
					t.Error("summary is not a message")
				}
			},
		},
		{
			name:    "empty line",
			line:    "   ",
			wantErr: ErrEmptyLine,
		},
		{
			name:    "truncated JSON",
			line:    `{"type":"user","timestamp":"2026-01-1`,
			wantErr: ErrMalformedJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := p.ParseLine([]byte(tt.line))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseLine() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}
			tt.check(t, rec)
		})
	}
}

func TestBlocksToolUseAndResult(t *testing.T) {
	p := New(logger.Noop())

	rec, err := p.ParseLine([]byte(`{"type":"assistant","timestamp":"2026-01-15T10:30:00Z","message":{"content":[{"type":"text","text":"running"},{"type":"tool_use","id":"toolu_1","name":"Bash","input":{"command":"ls"}}]}}`))
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	blocks := rec.Blocks()
	if len(blocks) != 2 {
		t.Fatalf("Blocks() len = %d, want 2", len(blocks))
	}
	if blocks[1].Type != "tool_use" || blocks[1].Name != "Bash" || blocks[1].ID != "toolu_1" {
		t.Errorf("tool_use block = %+v", blocks[1])
	}

	rec, err = p.ParseLine([]byte(`{"type":"user","timestamp":"2026-01-15T10:30:02Z","toolUseResult":{"durationMs":1200},"message":{"content":[{"type":"tool_result","tool_use_id":"toolu_1","is_error":true,"content":"boom"}]}}`))
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	blocks = rec.Blocks()
	if len(blocks) != 1 || !blocks[0].IsError || blocks[0].ToolUseID != "toolu_1" {
		t.Errorf("tool_result block = %+v", blocks)
	}
	if rec.ToolDurationMs() != 1200 {
		t.Errorf("ToolDurationMs() = %d, want 1200", rec.ToolDurationMs())
	}
}

func TestParseSkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"user","timestamp":"2026-01-15T10:00:00Z","message":{"content":"a"}}`,
		`not json`,
		``,
		`{"type":"assistant","timestamp":"2026-01-15T10:00:01Z","message":{"model":"claude-opus-4-6","usage":{"input_tokens":1,"output_tokens":2}}}`,
		`{"type":"assistant","timestamp":"2026-01-15T10:00:02Z","message":{"model":"claude-opus-4-6","usage":{"input_tokens":3,"output_tok`,
	}, "\n")

	var got []*Record
	stats, err := New(logger.Noop()).Parse(strings.NewReader(input), func(r *Record) {
		got = append(got, r)
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Parse() records = %d, want 2", len(got))
	}
	if stats.Lines != 4 || stats.Records != 2 || stats.Malformed != 2 {
		t.Errorf("stats = %+v, want 4 lines, 2 records, 2 malformed", stats)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	content := `{"type":"user","timestamp":"2026-01-15T10:00:00Z","message":{"content":"a"}}
{"type":"assistant","timestamp":"2026-01-15T10:00:01Z","message":{"model":"claude-opus-4-6","usage":{"input_tokens":1,"output_tokens":2}}}
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	count := 0
	stats, err := New(logger.Noop()).ParseFile(path, func(*Record) { count++ })
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if count != 2 || stats.Records != 2 {
		t.Errorf("ParseFile() count = %d, stats = %+v", count, stats)
	}
}

func TestParseFileNotFound(t *testing.T) {
	_, err := New(logger.Noop()).ParseFile(filepath.Join(t.TempDir(), "missing.jsonl"), func(*Record) {})
	if err == nil {
		t.Error("ParseFile() error = nil, want error for missing file")
	}
}

func TestUsageAdd(t *testing.T) {
	a := Usage{InputTokens: 1, OutputTokens: 2, CacheCreationInputTokens: 3, CacheReadInputTokens: 4}
	b := Usage{InputTokens: 10, OutputTokens: 20, CacheCreationInputTokens: 30, CacheReadInputTokens: 40}

	sum := a.Add(b)
	if sum.Total() != 110 {
		t.Errorf("Add().Total() = %d, want 110", sum.Total())
	}
}
