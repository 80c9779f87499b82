// Package activity computes time-based views of session activity: a
// weekday-by-hour heatmap over the trailing month and rolling token windows
// over the last hours.
package activity

import (
	"context"
	"time"

	"github.com/0xmhha/agentpulse/pkg/cache"
	"github.com/0xmhha/agentpulse/pkg/discovery"
	"github.com/0xmhha/agentpulse/pkg/logger"
	"github.com/0xmhha/agentpulse/pkg/parser"
)

// Heatmap defaults.
const (
	DefaultHeatmapTTL  = 5 * time.Minute
	DefaultHeatmapDays = 30
)

// Peak is the busiest weekday/hour cell.
type Peak struct {
	Day   int `json:"day"`
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// HeatmapData counts messages by weekday (Sunday = 0) and local hour.
type HeatmapData struct {
	Grid          [7][24]int     `json:"grid"`
	Daily         map[string]int `json:"daily"`
	TotalSessions int            `json:"totalSessions"`
	TotalMessages int            `json:"totalMessages"`
	Peak          Peak           `json:"peak"`
	ComputedAt    time.Time      `json:"computedAt"`
}

// EmptyHeatmap returns a zero heatmap with initialized collections.
func EmptyHeatmap() HeatmapData {
	return HeatmapData{Daily: map[string]int{}}
}

// HeatmapConfig contains heatmap configuration.
type HeatmapConfig struct {
	// TTL is how long a computed heatmap is served from cache. Default: 5m.
	TTL time.Duration

	// Days is the trailing window. Default: 30.
	Days int

	// Location is used for weekdays, hours and dates. Default: time.Local.
	Location *time.Location

	// Now overrides the clock, mainly for tests.
	Now cache.Clock
}

// Heatmap computes and caches HeatmapData.
type Heatmap struct {
	config    HeatmapConfig
	discovery discovery.Discoverer
	parser    parser.Parser
	logger    logger.Logger
	cache     *cache.Value[HeatmapData]
}

// NewHeatmap creates a Heatmap.
func NewHeatmap(cfg HeatmapConfig, d discovery.Discoverer, p parser.Parser, log logger.Logger) *Heatmap {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultHeatmapTTL
	}
	if cfg.Days <= 0 {
		cfg.Days = DefaultHeatmapDays
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	return &Heatmap{
		config:    cfg,
		discovery: d,
		parser:    p,
		logger:    log,
		cache:     cache.New[HeatmapData](cfg.TTL, cfg.Now),
	}
}

// Compute returns the heatmap of user and assistant messages timestamped
// within the trailing window, from cache when fresh.
func (h *Heatmap) Compute(ctx context.Context) (HeatmapData, error) {
	if cached, _, ok := h.cache.Get(); ok {
		return cached, nil
	}

	now := h.cache.Now()
	cutoff := now.Add(-time.Duration(h.config.Days) * 24 * time.Hour)

	files, err := h.discovery.ModifiedSince(ctx, cutoff)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return HeatmapData{}, ctxErr
		}
		h.logger.Warn("failed to discover session files", "error", err)
		files = nil
	}

	data := EmptyHeatmap()
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return HeatmapData{}, err
		}

		contributed := false
		_, err := h.parser.ParseFile(f.Path, func(r *parser.Record) {
			if !r.IsMessage() || r.IsMeta || r.Timestamp.IsZero() || r.Timestamp.Before(cutoff) {
				return
			}
			local := r.Timestamp.In(h.config.Location)
			data.Grid[local.Weekday()][local.Hour()]++
			data.Daily[local.Format("2006-01-02")]++
			data.TotalMessages++
			contributed = true
		})
		if err != nil {
			h.logger.Warn("failed to scan session file", "path", f.Path, "error", err)
		}
		if contributed {
			data.TotalSessions++
		}
	}

	data.Peak = peakOf(data.Grid)
	data.ComputedAt = now
	h.cache.Store(data)

	h.logger.Debug("heatmap computed",
		"files", len(files),
		"messages", data.TotalMessages,
		"sessions", data.TotalSessions)

	return data, nil
}

// peakOf returns the largest cell; ties go to the first in day-then-hour order.
func peakOf(grid [7][24]int) Peak {
	var p Peak
	for day := range grid {
		for hour, count := range grid[day] {
			if count > p.Count {
				p = Peak{Day: day, Hour: hour, Count: count}
			}
		}
	}
	return p
}
