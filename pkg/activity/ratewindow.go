package activity

import (
	"context"
	"time"

	"github.com/0xmhha/agentpulse/pkg/cache"
	"github.com/0xmhha/agentpulse/pkg/discovery"
	"github.com/0xmhha/agentpulse/pkg/logger"
	"github.com/0xmhha/agentpulse/pkg/parser"
)

// Bucket totals the usage inside one rolling window.
type Bucket struct {
	Tokens   int64 `json:"tokens"`
	Requests int   `json:"requests"`
}

// RateWindow is the usage of the last hour and the last five hours.
type RateWindow struct {
	Rolling1h Bucket    `json:"rolling1h"`
	Rolling5h Bucket    `json:"rolling5h"`
	Timestamp time.Time `json:"timestamp"`
}

// RateWindows computes RateWindow values. Results are never cached.
type RateWindows struct {
	discovery discovery.Discoverer
	parser    parser.Parser
	logger    logger.Logger
	now       cache.Clock
}

// NewRateWindows creates a RateWindows. A nil clock means time.Now.
func NewRateWindows(d discovery.Discoverer, p parser.Parser, log logger.Logger, now cache.Clock) *RateWindows {
	if now == nil {
		now = time.Now
	}
	return &RateWindows{discovery: d, parser: p, logger: log, now: now}
}

// Compute scans files modified within five hours and totals the tokens
// and requests of assistant records with usage.
func (w *RateWindows) Compute(ctx context.Context) (RateWindow, error) {
	now := w.now()
	since5h := now.Add(-5 * time.Hour)
	since1h := now.Add(-time.Hour)

	rw := RateWindow{Timestamp: now}

	files, err := w.discovery.ModifiedSince(ctx, since5h)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return RateWindow{}, ctxErr
		}
		w.logger.Warn("failed to discover session files", "error", err)
		return rw, nil
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return RateWindow{}, err
		}

		seen := make(map[string]struct{})
		_, err := w.parser.ParseFile(f.Path, func(r *parser.Record) {
			usage := r.Usage()
			if r.Type != parser.TypeAssistant || usage == nil || r.Timestamp.Before(since5h) {
				return
			}
			if id := r.Message.ID; id != "" {
				if _, dup := seen[id]; dup {
					return
				}
				seen[id] = struct{}{}
			}

			tokens := usage.Total()
			rw.Rolling5h.Tokens += tokens
			rw.Rolling5h.Requests++
			if !r.Timestamp.Before(since1h) {
				rw.Rolling1h.Tokens += tokens
				rw.Rolling1h.Requests++
			}
		})
		if err != nil {
			w.logger.Warn("failed to scan session file", "path", f.Path, "error", err)
		}
	}

	return rw, nil
}
