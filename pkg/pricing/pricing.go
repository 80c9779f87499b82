// Package pricing maps model identifiers to per-million-token prices.
//
// Lookup never fails: an unknown model falls back to its family (opus,
// haiku, sonnet) and then to the default sonnet rates.
package pricing

import (
	"strings"

	"github.com/0xmhha/agentpulse/pkg/parser"
)

// Entry holds USD prices per million tokens.
type Entry struct {
	Input      float64 `json:"input"`
	Output     float64 `json:"output"`
	CacheWrite float64 `json:"cacheWrite"`
	CacheRead  float64 `json:"cacheRead"`
}

// DefaultModel is the model whose rates apply when nothing else matches.
const DefaultModel = "claude-sonnet-4-6"

// Table maps model base names to their pricing.
var Table = map[string]Entry{
	"claude-opus-4-6":   {Input: 5.00, Output: 25.00, CacheWrite: 6.25, CacheRead: 0.50},
	"claude-opus-4-5":   {Input: 5.00, Output: 25.00, CacheWrite: 6.25, CacheRead: 0.50},
	"claude-opus-4-1":   {Input: 15.00, Output: 75.00, CacheWrite: 18.75, CacheRead: 1.50},
	"claude-opus-4":     {Input: 15.00, Output: 75.00, CacheWrite: 18.75, CacheRead: 1.50},
	"claude-sonnet-4-6": {Input: 3.00, Output: 15.00, CacheWrite: 3.75, CacheRead: 0.30},
	"claude-sonnet-4-5": {Input: 3.00, Output: 15.00, CacheWrite: 3.75, CacheRead: 0.30},
	"claude-sonnet-4":   {Input: 3.00, Output: 15.00, CacheWrite: 3.75, CacheRead: 0.30},
	"claude-haiku-4-5":  {Input: 1.00, Output: 5.00, CacheWrite: 1.25, CacheRead: 0.10},
	"claude-haiku-3-5":  {Input: 0.80, Output: 4.00, CacheWrite: 1.00, CacheRead: 0.08},
}

// families lists the fallback model per family, checked in order.
var families = []struct {
	name  string
	model string
}{
	{"opus", "claude-opus-4-6"},
	{"haiku", "claude-haiku-4-5"},
	{"sonnet", "claude-sonnet-4-6"},
}

// Normalize strips a trailing date suffix such as -20251101 when the
// remaining name is in the table.
func Normalize(model string) string {
	if _, ok := Table[model]; ok {
		return model
	}

	idx := strings.LastIndexByte(model, '-')
	if idx < 0 {
		return model
	}
	if suffix := model[idx+1:]; len(suffix) >= 8 && isAllDigits(suffix) {
		if _, ok := Table[model[:idx]]; ok {
			return model[:idx]
		}
	}
	return model
}

// Lookup returns the prices for model and whether they came from an exact
// (or date-stripped) table match.
func Lookup(model string) (Entry, bool) {
	if entry, ok := Table[Normalize(model)]; ok {
		return entry, true
	}

	lower := strings.ToLower(model)
	for _, f := range families {
		if strings.Contains(lower, f.name) {
			return Table[f.model], false
		}
	}
	return Table[DefaultModel], false
}

// Cost returns the USD cost of one usage block.
func Cost(model string, u parser.Usage) float64 {
	p, _ := Lookup(model)
	return (float64(u.InputTokens)*p.Input +
		float64(u.OutputTokens)*p.Output +
		float64(u.CacheCreationInputTokens)*p.CacheWrite +
		float64(u.CacheReadInputTokens)*p.CacheRead) / 1_000_000
}

// CacheSavings returns what cache reads saved compared to full input
// pricing. It is never negative.
func CacheSavings(model string, cacheReadTokens int64) float64 {
	p, _ := Lookup(model)
	saved := float64(cacheReadTokens) * (p.Input - p.CacheRead) / 1_000_000
	if saved < 0 {
		return 0
	}
	return saved
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
