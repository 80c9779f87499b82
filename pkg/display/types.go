// Package display renders cost, heatmap and rate window reports for the
// command line.
//
// It supports multiple output formats (table, JSON, simple text).
package display

import (
	"io"

	"github.com/0xmhha/agentpulse/pkg/activity"
	"github.com/0xmhha/agentpulse/pkg/cost"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays reports as bordered tables.
	FormatTable Format = "table"

	// FormatJSON displays reports as JSON.
	FormatJSON Format = "json"

	// FormatSimple displays reports as one-line summaries.
	FormatSimple Format = "simple"
)

// ParseFormat validates a format name. The empty string means FormatTable.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatSimple:
		return f, nil
	default:
		return "", ErrUnknownFormat
	}
}

// Formatter renders reports.
type Formatter interface {
	// FormatCosts renders a cost summary. Money is printed to the cent.
	FormatCosts(w io.Writer, s cost.Summary) error

	// FormatHeatmap renders a weekday by hour activity grid.
	FormatHeatmap(w io.Writer, h activity.HeatmapData) error

	// FormatRateWindow renders the rolling 1h and 5h usage.
	FormatRateWindow(w io.Writer, rw activity.RateWindow) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// Compact enables compact output (less whitespace, no borders).
	// Default: false.
	Compact bool
}
