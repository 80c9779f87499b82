package cost

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/agentpulse/pkg/cache"
	"github.com/0xmhha/agentpulse/pkg/discovery"
	"github.com/0xmhha/agentpulse/pkg/logger"
	"github.com/0xmhha/agentpulse/pkg/parser"
	"github.com/0xmhha/agentpulse/pkg/pricing"
)

// Defaults for Config.
const (
	DefaultTTL         = 60 * time.Second
	DefaultBatchSize   = 50
	DefaultTopSessions = 20
	DefaultWindowDays  = 30
)

// Config contains aggregator configuration.
type Config struct {
	// TTL is how long a summary is served from cache. Default: 60s.
	TTL time.Duration

	// BatchSize is the number of files parsed concurrently. Default: 50.
	BatchSize int

	// TopSessions caps Summary.Sessions. Default: 20.
	TopSessions int

	// Location is used for calendar dates. Default: time.Local.
	Location *time.Location

	// Now overrides the clock, mainly for tests.
	Now cache.Clock
}

// Aggregator computes cost summaries.
type Aggregator struct {
	config    Config
	discovery discovery.Discoverer
	parser    parser.Parser
	logger    logger.Logger
	cache     *cache.Keyed[int, Summary]
}

// New creates an Aggregator.
func New(cfg Config, d discovery.Discoverer, p parser.Parser, log logger.Logger) *Aggregator {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.TopSessions <= 0 {
		cfg.TopSessions = DefaultTopSessions
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	return &Aggregator{
		config:    cfg,
		discovery: d,
		parser:    p,
		logger:    log,
		cache:     cache.NewKeyed[int, Summary](cfg.TTL, cfg.Now),
	}
}

// Summary returns the cost summary for files modified within the last
// windowDays days. Each window is cached separately for TTL, so asking for
// one window neither evicts nor answers another. Unreadable directories and files contribute
// nothing; only context cancellation is returned as an error.
func (a *Aggregator) Summary(ctx context.Context, windowDays int) (Summary, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	entry := a.cache.For(windowDays)
	if cached, _, ok := entry.Get(); ok {
		return cached, nil
	}

	now := a.cache.Now()
	cutoff := now.Add(-time.Duration(windowDays) * 24 * time.Hour)

	files, err := a.discovery.ModifiedSince(ctx, cutoff)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Summary{}, ctxErr
		}
		a.logger.Warn("failed to discover session files", "error", err)
		files = nil
	}

	scans, err := a.scanAll(ctx, files)
	if err != nil {
		return Summary{}, err
	}

	summary := a.build(scans, windowDays)
	summary.ComputedAt = now
	entry.Store(summary)

	a.logger.Debug("cost summary computed",
		"window_days", windowDays,
		"files", len(files),
		"sessions", summary.SessionCount,
		"total_cost", summary.TotalCost,
		"elapsed", a.cache.Now().Sub(now))

	return summary, nil
}

// Invalidate drops every cached summary.
func (a *Aggregator) Invalidate() {
	a.cache.Invalidate()
}

// scanAll parses files in batches of BatchSize, each batch concurrently.
func (a *Aggregator) scanAll(ctx context.Context, files []discovery.SessionFile) ([]sessionScan, error) {
	var scans []sessionScan

	for _, batch := range lo.Chunk(files, a.config.BatchSize) {
		results := make([]sessionScan, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, f := range batch {
			i, f := i, f
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				scan, err := a.scanFile(f)
				if err != nil {
					a.logger.Warn("failed to scan session file", "path", f.Path, "error", err)
					return nil
				}
				results[i] = scan
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, scan := range results {
			if scan.record.MessageCount > 0 {
				scans = append(scans, scan)
			}
		}
	}

	return scans, nil
}

// sessionScan is one parsed file: its record plus per-model totals.
type sessionScan struct {
	record  SessionRecord
	byModel map[string]ModelTotals
}

// scanFile parses one session file in full.
func (a *Aggregator) scanFile(f discovery.SessionFile) (sessionScan, error) {
	scan := sessionScan{
		record: SessionRecord{
			SessionID: f.SessionID,
			Project:   f.Project,
		},
		byModel: make(map[string]ModelTotals),
	}
	rec := &scan.record

	var first time.Time
	seen := make(map[string]struct{})

	_, err := a.parser.ParseFile(f.Path, func(r *parser.Record) {
		if !r.Timestamp.IsZero() {
			if first.IsZero() {
				first = r.Timestamp
			}
			if r.Timestamp.After(rec.LastActivity) {
				rec.LastActivity = r.Timestamp
			}
		}

		if r.IsMessage() && !r.IsMeta {
			rec.MessageCount++
		}

		model := r.Model()
		if model != "" {
			rec.Model = model
		}

		usage := r.Usage()
		if r.Type != parser.TypeAssistant || usage == nil {
			return
		}
		// Streaming writes repeat the same message with the same usage.
		if id := r.Message.ID; id != "" {
			if _, dup := seen[id]; dup {
				return
			}
			seen[id] = struct{}{}
		}

		if model == "" {
			model = rec.Model
		}
		c := pricing.Cost(model, *usage)

		rec.InputTokens += usage.InputTokens
		rec.OutputTokens += usage.OutputTokens
		rec.CacheReadTokens += usage.CacheReadInputTokens
		rec.CacheWriteTokens += usage.CacheCreationInputTokens
		rec.TotalCost += c
		rec.CacheSavings += pricing.CacheSavings(model, usage.CacheReadInputTokens)

		key := model
		if key == "" {
			key = "unknown"
		}
		totals := scan.byModel[key]
		totals.Cost += c
		totals.Tokens += usage.Total()
		totals.Messages++
		scan.byModel[key] = totals
	})
	if err != nil {
		return sessionScan{}, err
	}

	if !first.IsZero() {
		rec.Date = first.In(a.config.Location).Format("2006-01-02")
	}
	return scan, nil
}

// build folds session scans into a summary.
func (a *Aggregator) build(scans []sessionScan, windowDays int) Summary {
	s := Empty(windowDays)
	records := make([]SessionRecord, 0, len(scans))

	for _, scan := range scans {
		rec := scan.record
		records = append(records, rec)

		s.TotalCost += rec.TotalCost
		s.CacheSavings += rec.CacheSavings
		s.Tokens.Input += rec.InputTokens
		s.Tokens.Output += rec.OutputTokens
		s.Tokens.CacheRead += rec.CacheReadTokens
		s.Tokens.CacheWrite += rec.CacheWriteTokens

		if rec.Date != "" {
			s.Daily[rec.Date] += rec.TotalCost
		}

		for model, m := range scan.byModel {
			totals := s.ByModel[model]
			totals.Cost += m.Cost
			totals.Tokens += m.Tokens
			totals.Messages += m.Messages
			s.ByModel[model] = totals
		}
	}

	activeDays := len(lo.PickBy(s.Daily, func(_ string, c float64) bool { return c > 0 }))
	s.ActiveDays = max(1, activeDays)
	s.BurnRate = s.TotalCost / float64(s.ActiveDays)
	s.ProjectedMonthly = s.BurnRate * 30
	s.SessionCount = len(records)

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].LastActivity.After(records[j].LastActivity)
	})
	if len(records) > a.config.TopSessions {
		records = records[:a.config.TopSessions]
	}
	s.Sessions = records

	return s
}

// IsCanceled reports whether err came from a cancelled or expired context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
