package display

import (
	"fmt"
	"io"

	"github.com/0xmhha/agentpulse/pkg/activity"
	"github.com/0xmhha/agentpulse/pkg/cost"
)

// simpleFormatter formats output as simple text.
type simpleFormatter struct {
	config Config
}

// FormatCosts implements Formatter.FormatCosts.
func (f *simpleFormatter) FormatCosts(w io.Writer, s cost.Summary) error {
	if _, err := fmt.Fprintf(w, "Total: %s | Sessions: %d | Active days: %d | Burn: %s/day | Projected: %s/month | Saved: %s\n",
		formatMoney(s.TotalCost),
		s.SessionCount,
		s.ActiveDays,
		formatMoney(s.BurnRate),
		formatMoney(s.ProjectedMonthly),
		formatMoney(s.CacheSavings)); err != nil {
		return err
	}

	for _, model := range modelsByCost(s.ByModel) {
		m := s.ByModel[model]
		if _, err := fmt.Fprintf(w, "%s: %s in %d messages\n", model, formatMoney(m.Cost), m.Messages); err != nil {
			return err
		}
	}
	return nil
}

// FormatHeatmap implements Formatter.FormatHeatmap.
func (f *simpleFormatter) FormatHeatmap(w io.Writer, h activity.HeatmapData) error {
	_, err := fmt.Fprintf(w, "Messages: %s | Sessions: %s | Peak: %s %02d:00 (%d)\n",
		formatNumber(int64(h.TotalMessages)),
		formatNumber(int64(h.TotalSessions)),
		weekdays[h.Peak.Day], h.Peak.Hour, h.Peak.Count)
	return err
}

// FormatRateWindow implements Formatter.FormatRateWindow.
func (f *simpleFormatter) FormatRateWindow(w io.Writer, rw activity.RateWindow) error {
	_, err := fmt.Fprintf(w, "1h: %s tokens / %d requests | 5h: %s tokens / %d requests\n",
		formatNumber(rw.Rolling1h.Tokens), rw.Rolling1h.Requests,
		formatNumber(rw.Rolling5h.Tokens), rw.Rolling5h.Requests)
	return err
}
