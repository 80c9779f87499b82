package cost

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/agentpulse/pkg/discovery"
	"github.com/0xmhha/agentpulse/pkg/logger"
	"github.com/0xmhha/agentpulse/pkg/parser"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func assistantLine(ts, model string, input, output, cacheRead int64) string {
	return fmt.Sprintf(`{"type":"assistant","timestamp":%q,"message":{"model":%q,`+
		`"usage":{"input_tokens":%d,"output_tokens":%d,"cache_read_input_tokens":%d,"cache_creation_input_tokens":0}}}`,
		ts, model, input, output, cacheRead)
}

func writeSession(t *testing.T, root, project, id string, lines ...string) string {
	t.Helper()

	dir := filepath.Join(root, project)
	require.NoError(t, os.MkdirAll(dir, 0700))
	path := filepath.Join(dir, id+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600))
	return path
}

func newTestAggregator(root string, clock *testClock) *Aggregator {
	log := logger.Noop()
	return New(Config{Location: time.UTC, Now: clock.Now},
		discovery.New([]string{root}, log), parser.New(log), log)
}

func TestSummaryTwoSonnetSessions(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "proj-a", "s1", assistantLine("2026-03-01T10:00:00Z", "claude-sonnet-4-6", 1_000_000, 0, 0))
	writeSession(t, root, "proj-b", "s2", assistantLine("2026-03-02T10:00:00Z", "claude-sonnet-4-6", 1_000_000, 0, 0))

	agg := newTestAggregator(root, &testClock{t: time.Now()})

	s, err := agg.Summary(context.Background(), 30)
	require.NoError(t, err)

	assert.InDelta(t, 6.00, s.TotalCost, 1e-9)
	assert.Equal(t, 2, s.SessionCount)
	assert.Equal(t, 2, s.ActiveDays)
	assert.InDelta(t, 3.00, s.BurnRate, 1e-9)
	assert.InDelta(t, 90.00, s.ProjectedMonthly, 1e-9)
	assert.Equal(t, int64(2_000_000), s.Tokens.Input)
	assert.InDelta(t, 3.00, s.Daily["2026-03-01"], 1e-9)
	assert.InDelta(t, 6.00, s.ByModel["claude-sonnet-4-6"].Cost, 1e-9)
	assert.Equal(t, 2, s.ByModel["claude-sonnet-4-6"].Messages)
	assert.Equal(t, 30, s.WindowDays)
}

func TestSummaryInvariants(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "p", "a",
		`{"type":"user","timestamp":"2026-03-01T09:59:00Z","message":{"content":"go"}}`,
		assistantLine("2026-03-01T10:00:00Z", "claude-opus-4-6", 1200, 800, 50_000),
		"{not json",
		assistantLine("2026-03-01T10:05:00Z", "<synthetic>", 10, 10, 0),
	)
	writeSession(t, root, "p", "b", assistantLine("2026-03-03T08:00:00Z", "some-future-model", 5000, 1000, 100_000))
	writeSession(t, root, "q", "c", assistantLine("2026-03-04T08:00:00Z", "claude-haiku-4-5-20251001", 300, 300, 0))

	agg := newTestAggregator(root, &testClock{t: time.Now()})
	s, err := agg.Summary(context.Background(), 30)
	require.NoError(t, err)

	var sum float64
	for _, rec := range s.Sessions {
		sum += rec.TotalCost
		assert.GreaterOrEqual(t, rec.CacheSavings, 0.0)
	}
	assert.InDelta(t, s.TotalCost, sum, 1e-9)
	assert.GreaterOrEqual(t, s.CacheSavings, 0.0)
	assert.Greater(t, s.ByModel["some-future-model"].Cost, 0.0, "unknown models use default rates")

	var first SessionRecord
	for _, rec := range s.Sessions {
		if rec.SessionID == "a" {
			first = rec
		}
	}
	assert.Equal(t, "claude-opus-4-6", first.Model, "placeholder models do not replace the real one")
	assert.Equal(t, "2026-03-01", first.Date)
	assert.Equal(t, 3, first.MessageCount)
}

func TestSummarySkipsEmptyAndOldSessions(t *testing.T) {
	root := t.TempDir()
	now := time.Now()

	writeSession(t, root, "p", "empty", `{"type":"summary","summary":"nothing here"}`)
	old := writeSession(t, root, "p", "old", assistantLine("2026-01-01T10:00:00Z", "claude-sonnet-4-6", 1_000_000, 0, 0))
	require.NoError(t, os.Chtimes(old, now.AddDate(0, 0, -45), now.AddDate(0, 0, -45)))
	writeSession(t, root, "p", "new", assistantLine("2026-03-01T10:00:00Z", "claude-sonnet-4-6", 1_000, 0, 0))

	agg := newTestAggregator(root, &testClock{t: now})
	s, err := agg.Summary(context.Background(), 30)
	require.NoError(t, err)

	require.Equal(t, 1, s.SessionCount)
	assert.Equal(t, "new", s.Sessions[0].SessionID)
}

func TestSummaryDeduplicatesStreamedMessages(t *testing.T) {
	root := t.TempDir()
	line := `{"type":"assistant","timestamp":"2026-03-01T10:00:00Z","message":{"id":"msg_1","model":"claude-sonnet-4-6","usage":{"input_tokens":1000000,"output_tokens":0}}}`
	writeSession(t, root, "p", "s", line, line, line)

	agg := newTestAggregator(root, &testClock{t: time.Now()})
	s, err := agg.Summary(context.Background(), 30)
	require.NoError(t, err)

	assert.InDelta(t, 3.00, s.TotalCost, 1e-9)
	assert.Equal(t, 3, s.Sessions[0].MessageCount)
}

func TestSummaryPricesEachLineByItsModel(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "p", "s",
		`{"type":"user","timestamp":"2026-03-01T09:59:00Z","message":{"content":"plan it"}}`,
		`{"type":"user","isMeta":true,"timestamp":"2026-03-01T09:59:30Z","message":{"content":"caveat"}}`,
		assistantLine("2026-03-01T10:00:00Z", "claude-opus-4-6", 1_000_000, 0, 0),
		assistantLine("2026-03-01T10:05:00Z", "claude-sonnet-4-6", 1_000_000, 0, 0),
	)

	agg := newTestAggregator(root, &testClock{t: time.Now()})
	s, err := agg.Summary(context.Background(), 30)
	require.NoError(t, err)

	require.Len(t, s.Sessions, 1)
	session := s.Sessions[0]
	assert.Equal(t, "claude-sonnet-4-6", session.Model, "session reports its last model")
	assert.InDelta(t, 8.00, session.TotalCost, 1e-9, "opus line at opus rates, sonnet line at sonnet rates")
	assert.Equal(t, int64(2_000_000), session.InputTokens)
	assert.Equal(t, 3, session.MessageCount, "meta records are not messages")

	assert.InDelta(t, 5.00, s.ByModel["claude-opus-4-6"].Cost, 1e-9)
	assert.InDelta(t, 3.00, s.ByModel["claude-sonnet-4-6"].Cost, 1e-9)
}

func TestSummaryCachesEachWindow(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "p", "s1", assistantLine("2026-03-01T10:00:00Z", "claude-sonnet-4-6", 1_000_000, 0, 0))

	clock := &testClock{t: time.Now()}
	agg := newTestAggregator(root, clock)
	ctx := context.Background()

	month, err := agg.Summary(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 30, month.WindowDays)

	clock.t = clock.t.Add(10 * time.Second)
	week, err := agg.Summary(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, week.WindowDays)
	assert.Equal(t, clock.t, week.ComputedAt, "another window is computed, not served from cache")

	clock.t = clock.t.Add(10 * time.Second)
	again, err := agg.Summary(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, week.ComputedAt, again.ComputedAt, "same window within TTL is cached")

	// The 7-day result did not evict the 30-day one.
	back, err := agg.Summary(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 30, back.WindowDays)
	assert.Equal(t, month.ComputedAt, back.ComputedAt)

	agg.Invalidate()
	fresh, err := agg.Summary(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, clock.t, fresh.ComputedAt)
}

func TestSummaryEmptyWindow(t *testing.T) {
	agg := newTestAggregator(filepath.Join(t.TempDir(), "missing"), &testClock{t: time.Now()})

	s, err := agg.Summary(context.Background(), 7)
	require.NoError(t, err)
	assert.Zero(t, s.TotalCost)
	assert.Equal(t, 1, s.ActiveDays)
	assert.Zero(t, s.BurnRate)
	assert.NotNil(t, s.Sessions)
	assert.NotNil(t, s.Daily)
}

func TestSummaryCache(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "p", "s1", assistantLine("2026-03-01T10:00:00Z", "claude-sonnet-4-6", 1_000_000, 0, 0))

	clock := &testClock{t: time.Now()}
	agg := newTestAggregator(root, clock)
	ctx := context.Background()

	first, err := agg.Summary(ctx, 30)
	require.NoError(t, err)

	writeSession(t, root, "p", "s2", assistantLine("2026-03-01T11:00:00Z", "claude-sonnet-4-6", 1_000_000, 0, 0))

	clock.t = clock.t.Add(30 * time.Second)
	cached, err := agg.Summary(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, first.ComputedAt, cached.ComputedAt)
	assert.Equal(t, 1, cached.SessionCount)

	// A different window is never answered from another window's cache.
	other, err := agg.Summary(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, other.SessionCount)

	clock.t = clock.t.Add(61 * time.Second)
	fresh, err := agg.Summary(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.SessionCount)
	assert.True(t, fresh.ComputedAt.After(first.ComputedAt))
}

func TestSummaryTopSessions(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < DefaultTopSessions+5; i++ {
		ts := time.Date(2026, 3, 1, 0, i, 0, 0, time.UTC).Format(time.RFC3339)
		writeSession(t, root, "p", fmt.Sprintf("s%02d", i), assistantLine(ts, "claude-sonnet-4-6", 10, 10, 0))
	}

	agg := New(Config{Location: time.UTC, BatchSize: 7},
		discovery.New([]string{root}, logger.Noop()), parser.New(logger.Noop()), logger.Noop())
	s, err := agg.Summary(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, DefaultTopSessions+5, s.SessionCount)
	require.Len(t, s.Sessions, DefaultTopSessions)
	assert.Equal(t, "s24", s.Sessions[0].SessionID, "most recent first")
}

func TestSummaryCancelled(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "p", "s", assistantLine("2026-03-01T10:00:00Z", "claude-sonnet-4-6", 1, 1, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAggregator(root, &testClock{t: time.Now()}).Summary(ctx, 30)
	assert.True(t, IsCanceled(err))
}

func TestRounded(t *testing.T) {
	s := Summary{
		TotalCost: 1.23456,
		Daily:     map[string]float64{"2026-03-01": 0.005},
		ByModel:   map[string]ModelTotals{"m": {Cost: 2.999}},
		Sessions:  []SessionRecord{{TotalCost: 0.0149}},
	}

	r := s.Rounded()
	assert.Equal(t, 1.23, r.TotalCost)
	assert.Equal(t, 0.01, r.Daily["2026-03-01"])
	assert.Equal(t, 3.0, r.ByModel["m"].Cost)
	assert.Equal(t, 0.01, r.Sessions[0].TotalCost)
	assert.Equal(t, 1.23456, s.TotalCost, "original is untouched")
}
