package display

import (
	"encoding/json"
	"io"

	"github.com/0xmhha/agentpulse/pkg/activity"
	"github.com/0xmhha/agentpulse/pkg/cost"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

// FormatCosts implements Formatter.FormatCosts.
func (f *jsonFormatter) FormatCosts(w io.Writer, s cost.Summary) error {
	return f.encode(w, s.Rounded())
}

// FormatHeatmap implements Formatter.FormatHeatmap.
func (f *jsonFormatter) FormatHeatmap(w io.Writer, h activity.HeatmapData) error {
	return f.encode(w, h)
}

// FormatRateWindow implements Formatter.FormatRateWindow.
func (f *jsonFormatter) FormatRateWindow(w io.Writer, rw activity.RateWindow) error {
	return f.encode(w, rw)
}

func (f *jsonFormatter) encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}
