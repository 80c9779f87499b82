package display

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/0xmhha/agentpulse/pkg/cost"
)

// weekdays labels heatmap rows, Sunday first.
var weekdays = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// New creates a new formatter based on configuration.
func New(cfg Config) Formatter {
	if cfg.Format == "" {
		cfg.Format = FormatTable
	}

	switch cfg.Format {
	case FormatJSON:
		return &jsonFormatter{config: cfg}
	case FormatSimple:
		return &simpleFormatter{config: cfg}
	case FormatTable:
		fallthrough
	default:
		return &tableFormatter{config: cfg}
	}
}

// formatNumber formats a number with thousand separators.
func formatNumber(n int64) string {
	return humanize.Comma(n)
}

// formatFloat formats a float with specified precision.
func formatFloat(f float64, precision int) string {
	return decimal.NewFromFloat(f).StringFixed(int32(precision))
}

// formatMoney formats a dollar amount to the cent.
func formatMoney(v float64) string {
	return "$" + formatFloat(v, 2)
}

// modelsByCost returns model names ordered by descending cost, then name.
func modelsByCost(byModel map[string]cost.ModelTotals) []string {
	models := lo.Keys(byModel)
	sort.Slice(models, func(i, j int) bool {
		ci, cj := byModel[models[i]].Cost, byModel[models[j]].Cost
		if ci != cj {
			return ci > cj
		}
		return models[i] < models[j]
	})
	return models
}

// sortedDates returns the keys of a date map in ascending order.
func sortedDates[V any](m map[string]V) []string {
	dates := lo.Keys(m)
	sort.Strings(dates)
	return dates
}

// writeHeader writes a section header.
func writeHeader(w io.Writer, title string, compact bool) error {
	if compact {
		_, err := fmt.Fprintf(w, "%s\n", title)
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s\n%s\n\n", title, strings.Repeat("=", len(title)))
	return err
}
