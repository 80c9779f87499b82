// Package cost aggregates token usage and spend across session files.
//
// A summary covers every session file modified within the requested window.
// Each file is parsed in full into one SessionRecord; records are rebuilt on
// every scan. The latest summary is cached for a fixed TTL.
//
// Example usage:
//
//	agg := cost.New(cost.Config{}, discoverer, parser.New(log), log)
//	summary, err := agg.Summary(ctx, 30)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("$%.2f over %d days\n", summary.TotalCost, summary.ActiveDays)
package cost

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionRecord is the usage of one session file.
type SessionRecord struct {
	SessionID string `json:"sessionId"`
	Project   string `json:"project"`

	// Model is the last real model name seen in the file.
	Model string `json:"model"`

	// Date is the local calendar date (YYYY-MM-DD) of the first
	// timestamped line.
	Date string `json:"date"`

	InputTokens      int64 `json:"inputTokens"`
	OutputTokens     int64 `json:"outputTokens"`
	CacheReadTokens  int64 `json:"cacheReadTokens"`
	CacheWriteTokens int64 `json:"cacheWriteTokens"`

	MessageCount int       `json:"messageCount"`
	LastActivity time.Time `json:"lastActivity"`

	TotalCost    float64 `json:"totalCost"`
	CacheSavings float64 `json:"cacheSavings"`
}

// Tokens totals token counts by kind.
type Tokens struct {
	Input      int64 `json:"input"`
	Output     int64 `json:"output"`
	CacheRead  int64 `json:"cacheRead"`
	CacheWrite int64 `json:"cacheWrite"`
}

// ModelTotals is the spend attributed to one model.
type ModelTotals struct {
	Cost     float64 `json:"cost"`
	Tokens   int64   `json:"tokens"`
	Messages int     `json:"messages"`
}

// Summary is the cost report for a window of days.
type Summary struct {
	TotalCost    float64                `json:"totalCost"`
	CacheSavings float64                `json:"cacheSavings"`
	Tokens       Tokens                 `json:"tokens"`
	Daily        map[string]float64     `json:"daily"`
	ByModel      map[string]ModelTotals `json:"byModel"`

	// Sessions holds the most recently active sessions.
	Sessions []SessionRecord `json:"sessions"`

	BurnRate         float64   `json:"burnRate"`
	ProjectedMonthly float64   `json:"projectedMonthly"`
	ActiveDays       int       `json:"activeDays"`
	SessionCount     int       `json:"sessionCount"`
	WindowDays       int       `json:"windowDays"`
	ComputedAt       time.Time `json:"computedAt"`
}

// Empty returns a zero summary with initialized collections, suitable as a
// degraded response.
func Empty(windowDays int) Summary {
	return Summary{
		Daily:      map[string]float64{},
		ByModel:    map[string]ModelTotals{},
		Sessions:   []SessionRecord{},
		ActiveDays: 1,
		WindowDays: windowDays,
	}
}

// Rounded returns a copy with every monetary value rounded to cents.
func (s Summary) Rounded() Summary {
	out := s
	out.TotalCost = roundCents(s.TotalCost)
	out.CacheSavings = roundCents(s.CacheSavings)
	out.BurnRate = roundCents(s.BurnRate)
	out.ProjectedMonthly = roundCents(s.ProjectedMonthly)

	out.Daily = make(map[string]float64, len(s.Daily))
	for date, c := range s.Daily {
		out.Daily[date] = roundCents(c)
	}

	out.ByModel = make(map[string]ModelTotals, len(s.ByModel))
	for model, m := range s.ByModel {
		m.Cost = roundCents(m.Cost)
		out.ByModel[model] = m
	}

	out.Sessions = make([]SessionRecord, len(s.Sessions))
	for i, rec := range s.Sessions {
		rec.TotalCost = roundCents(rec.TotalCost)
		rec.CacheSavings = roundCents(rec.CacheSavings)
		out.Sessions[i] = rec
	}

	return out
}

func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
