package activity

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

	"github.com/0xmhha/agentpulse/pkg/cost"
	"github.com/0xmhha/agentpulse/pkg/discovery"
	"github.com/0xmhha/agentpulse/pkg/logger"
	"github.com/0xmhha/agentpulse/pkg/parser"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func msg(kind string, ts time.Time) string {
	return fmt.Sprintf(`{"type":%q,"timestamp":%q,"message":{"content":"x"}}`, kind, ts.Format(time.RFC3339))
}

func usageLine(ts time.Time, id string, input, output int64) string {
	return fmt.Sprintf(`{"type":"assistant","timestamp":%q,"message":{"id":%q,"model":"claude-sonnet-4-6","usage":{"input_tokens":%d,"output_tokens":%d}}}`,
		ts.Format(time.RFC3339), id, input, output)
}

func writeSession(t *testing.T, root, name string, lines ...string) {
	t.Helper()

	dir := filepath.Join(root, "proj")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".jsonl"), []byte(strings.Join(lines, "\n")+"\n"), 0600))
}

func newHeatmap(root string, clock *testClock) *Heatmap {
	log := logger.Noop()
	return NewHeatmap(HeatmapConfig{Location: time.UTC, Now: clock.Now},
		discovery.New([]string{root}, log), parser.New(log), log)
}

func TestHeatmapCompute(t *testing.T) {
	root := t.TempDir()
	now := time.Now().UTC().Truncate(time.Hour)

	a := now.Add(-48 * time.Hour)
	b := now.Add(-72 * time.Hour)
	writeSession(t, root, "s1",
		msg("user", a),
		msg("assistant", a.Add(time.Minute)),
		msg("assistant", a.Add(2*time.Minute)),
		`{"type":"summary","summary":"ignored"}`,
		msg("user", now.AddDate(0, 0, -40)),
	)
	writeSession(t, root, "s2", msg("user", b))
	writeSession(t, root, "s3", msg("user", now.AddDate(0, 0, -35)))

	h := newHeatmap(root, &testClock{t: now})
	data, err := h.Compute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, data.TotalMessages)
	assert.Equal(t, 2, data.TotalSessions, "sessions with only old messages do not count")

	sum := 0
	for day := range data.Grid {
		for _, c := range data.Grid[day] {
			sum += c
		}
	}
	assert.Equal(t, data.TotalMessages, sum)

	assert.Equal(t, 3, data.Grid[a.Weekday()][a.Hour()])
	assert.Equal(t, 3, data.Daily[a.Format("2006-01-02")])
	assert.Equal(t, Peak{Day: int(a.Weekday()), Hour: a.Hour(), Count: 3}, data.Peak)
}

func TestHeatmapSkipsMetaRecords(t *testing.T) {
	root := t.TempDir()
	now := time.Now().UTC().Truncate(time.Hour)
	at := now.Add(-time.Hour)

	writeSession(t, root, "s1",
		msg("user", at),
		fmt.Sprintf(`{"type":"user","isMeta":true,"timestamp":%q,"message":{"content":"caveat"}}`, at.Format(time.RFC3339)),
		msg("assistant", at.Add(time.Minute)),
	)

	data, err := newHeatmap(root, &testClock{t: now}).Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, data.TotalMessages)

	// Cost counts the same messages.
	log := logger.Noop()
	agg := cost.New(cost.Config{Location: time.UTC, Now: (&testClock{t: now}).Now},
		discovery.New([]string{root}, log), parser.New(log), log)
	summary, err := agg.Summary(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, summary.Sessions, 1)
	assert.Equal(t, data.TotalMessages, summary.Sessions[0].MessageCount)
}

func TestHeatmapCache(t *testing.T) {
	root := t.TempDir()
	now := time.Now().UTC()
	writeSession(t, root, "s1", msg("user", now.Add(-time.Hour)))

	clock := &testClock{t: now}
	h := newHeatmap(root, clock)

	first, err := h.Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalMessages)

	writeSession(t, root, "s2", msg("user", now.Add(-time.Hour)))

	clock.t = now.Add(4 * time.Minute)
	cached, err := h.Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cached.TotalMessages)

	clock.t = now.Add(5 * time.Minute)
	fresh, err := h.Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.TotalMessages)
}

func TestPeakTieBreak(t *testing.T) {
	var grid [7][24]int
	grid[3][10] = 5
	grid[1][20] = 5
	grid[1][4] = 2

	assert.Equal(t, Peak{Day: 1, Hour: 20, Count: 5}, peakOf(grid))
	assert.Equal(t, Peak{}, peakOf([7][24]int{}))
}

func TestRateWindows(t *testing.T) {
	root := t.TempDir()
	now := time.Now().UTC()

	writeSession(t, root, "s1",
		usageLine(now.Add(-10*time.Minute), "m1", 100, 50),
		usageLine(now.Add(-10*time.Minute), "m1", 100, 50), // streamed duplicate
		usageLine(now.Add(-2*time.Hour), "m2", 1000, 0),
		usageLine(now.Add(-6*time.Hour), "m3", 99999, 0),
		msg("user", now.Add(-5*time.Minute)),
	)
	writeSession(t, root, "s2", usageLine(now.Add(-59*time.Minute), "", 10, 10))

	log := logger.Noop()
	rw := NewRateWindows(discovery.New([]string{root}, log), parser.New(log), log, (&testClock{t: now}).Now)

	got, err := rw.Compute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Bucket{Tokens: 170, Requests: 2}, got.Rolling1h)
	assert.Equal(t, Bucket{Tokens: 1170, Requests: 3}, got.Rolling5h)
	assert.Equal(t, now, got.Timestamp)
}

func TestRateWindowsMissingRoot(t *testing.T) {
	log := logger.Noop()
	rw := NewRateWindows(discovery.New([]string{filepath.Join(t.TempDir(), "none")}, log), parser.New(log), log, nil)

	got, err := rw.Compute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.Rolling5h.Requests)
	assert.False(t, got.Timestamp.IsZero())
}
