package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/agentpulse/pkg/logger"
	"github.com/0xmhha/agentpulse/pkg/parser"
)

const testPath = "/logs/-home-dev-api/3f2a.jsonl"

func parse(t *testing.T, line string) *parser.Record {
	t.Helper()

	rec, err := parser.New(logger.Noop()).ParseLine([]byte(line))
	require.NoError(t, err)
	return rec
}

func TestConvertUserText(t *testing.T) {
	c := NewConverter()
	rec := parse(t, `{"type":"user","timestamp":"2026-02-01T10:00:00Z","sessionId":"s-1","message":{"role":"user","content":"fix the build"}}`)

	events := c.Convert(testPath, rec)
	require.Len(t, events, 1)
	assert.Equal(t, KindUser, events[0].Type)
	assert.Equal(t, "fix the build", events[0].Text)
	assert.Equal(t, "s-1", events[0].SessionID)
	assert.Equal(t, "-home-dev-api", events[0].Project)
}

func TestConvertSessionIDFromFileName(t *testing.T) {
	c := NewConverter()
	rec := parse(t, `{"type":"user","timestamp":"2026-02-01T10:00:00Z","message":{"content":"hi"}}`)

	events := c.Convert(testPath, rec)
	require.Len(t, events, 1)
	assert.Equal(t, "3f2a", events[0].SessionID)
}

func TestConvertSkipsMetaAndOtherTypes(t *testing.T) {
	c := NewConverter()

	meta := parse(t, `{"type":"user","isMeta":true,"timestamp":"2026-02-01T10:00:00Z","message":{"content":"caveat"}}`)
	assert.Empty(t, c.Convert(testPath, meta))

	summary := parse(t, `{"type":"summary","summary":"x","timestamp":"2026-02-01T10:00:00Z"}`)
	assert.Empty(t, c.Convert(testPath, summary))

	system := parse(t, `{"type":"system","subtype":"informational","timestamp":"2026-02-01T10:00:00Z"}`)
	assert.Empty(t, c.Convert(testPath, system))
}

func TestConvertAssistantToolCallAndResult(t *testing.T) {
	c := NewConverter()

	assistant := parse(t, `{"type":"assistant","timestamp":"2026-02-01T10:00:01Z","message":{"model":"claude-opus-4-6",`+
		`"usage":{"input_tokens":10,"output_tokens":5},`+
		`"content":[{"type":"text","text":"Running tests."},{"type":"tool_use","id":"toolu_1","name":"Bash","input":{}}]}}`)

	events := c.Convert(testPath, assistant)
	require.Len(t, events, 2)

	assert.Equal(t, KindAssistant, events[0].Type)
	assert.Equal(t, "Running tests.", events[0].Text)
	assert.Equal(t, "claude-opus-4-6", events[0].Model)
	require.NotNil(t, events[0].Usage)
	assert.Equal(t, int64(10), events[0].Usage.InputTokens)

	assert.Equal(t, KindToolCall, events[1].Type)
	assert.Equal(t, "Bash", events[1].Tool)
	assert.Equal(t, "toolu_1", events[1].ToolUseID)

	result := parse(t, `{"type":"user","timestamp":"2026-02-01T10:00:03Z","toolUseResult":{"durationMs":1200},`+
		`"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_1","is_error":true,"content":"exit 1"}]}}`)

	events = c.Convert(testPath, result)
	require.Len(t, events, 1)
	assert.Equal(t, KindToolResult, events[0].Type)
	assert.Equal(t, "Bash", events[0].Tool)
	assert.True(t, events[0].IsError)
	assert.Equal(t, int64(1200), events[0].DurationMs)
}

func TestConvertModelChange(t *testing.T) {
	c := NewConverter()
	line := func(model string) string {
		return `{"type":"assistant","timestamp":"2026-02-01T10:00:00Z","message":{"model":"` + model + `","content":[{"type":"text","text":"ok"}]}}`
	}

	assert.Len(t, c.Convert(testPath, parse(t, line("claude-sonnet-4-6"))), 1)
	assert.Len(t, c.Convert(testPath, parse(t, line("<synthetic>"))), 1, "placeholder models never change the current model")

	events := c.Convert(testPath, parse(t, line("claude-opus-4-6")))
	require.Len(t, events, 2)
	assert.Equal(t, KindModelChange, events[0].Type)
	assert.Equal(t, "claude-sonnet-4-6", events[0].PreviousModel)
	assert.Equal(t, "claude-opus-4-6", events[0].NewModel)

	// Another file has its own history.
	assert.Len(t, c.Convert("/logs/p/other.jsonl", parse(t, line("claude-haiku-4-5"))), 1)

	c.Forget(testPath)
	assert.Len(t, c.Convert(testPath, parse(t, line("claude-haiku-4-5"))), 1)
}

func TestConvertCompaction(t *testing.T) {
	c := NewConverter()
	rec := parse(t, `{"type":"system","subtype":"compact_boundary","timestamp":"2026-02-01T10:00:00Z","compactMetadata":{"trigger":"auto","preTokens":155000}}`)

	events := c.Convert(testPath, rec)
	require.Len(t, events, 1)
	assert.Equal(t, KindCompaction, events[0].Type)
	assert.Equal(t, int64(155000), events[0].PreTokens)
}

func TestConvertTruncatesText(t *testing.T) {
	c := NewConverter()
	long := strings.Repeat("é", MaxTextRunes+20)
	rec := parse(t, `{"type":"user","timestamp":"2026-02-01T10:00:00Z","message":{"content":"`+long+`"}}`)

	events := c.Convert(testPath, rec)
	require.Len(t, events, 1)
	assert.Equal(t, strings.Repeat("é", MaxTextRunes), events[0].Text)
}
