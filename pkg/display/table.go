package display

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/0xmhha/agentpulse/pkg/activity"
	"github.com/0xmhha/agentpulse/pkg/cost"
)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatCosts implements Formatter.FormatCosts.
func (f *tableFormatter) FormatCosts(w io.Writer, s cost.Summary) error {
	if err := writeHeader(w, fmt.Sprintf("Cost Summary (last %d days)", s.WindowDays), f.config.Compact); err != nil {
		return err
	}

	overview := [][]string{
		{"Total Cost", formatMoney(s.TotalCost)},
		{"Cache Savings", formatMoney(s.CacheSavings)},
		{"Burn Rate / Day", formatMoney(s.BurnRate)},
		{"Projected Monthly", formatMoney(s.ProjectedMonthly)},
		{"Active Days", strconv.Itoa(s.ActiveDays)},
		{"Sessions", strconv.Itoa(s.SessionCount)},
		{"Input Tokens", formatNumber(s.Tokens.Input)},
		{"Output Tokens", formatNumber(s.Tokens.Output)},
		{"Cache Read Tokens", formatNumber(s.Tokens.CacheRead)},
		{"Cache Write Tokens", formatNumber(s.Tokens.CacheWrite)},
	}
	if err := f.writeTable(w, []string{"Metric", "Value"}, overview, 1); err != nil {
		return err
	}

	if err := writeHeader(w, "By Model", f.config.Compact); err != nil {
		return err
	}
	models := make([][]string, 0, len(s.ByModel))
	for _, model := range modelsByCost(s.ByModel) {
		m := s.ByModel[model]
		models = append(models, []string{model, formatNumber(int64(m.Messages)), formatNumber(m.Tokens), formatMoney(m.Cost)})
	}
	if err := f.writeTable(w, []string{"Model", "Messages", "Tokens", "Cost"}, models, 1); err != nil {
		return err
	}

	if err := writeHeader(w, "Daily", f.config.Compact); err != nil {
		return err
	}
	daily := make([][]string, 0, len(s.Daily))
	for _, date := range sortedDates(s.Daily) {
		daily = append(daily, []string{date, formatMoney(s.Daily[date])})
	}
	if err := f.writeTable(w, []string{"Date", "Cost"}, daily, 1); err != nil {
		return err
	}

	if err := writeHeader(w, "Recent Sessions", f.config.Compact); err != nil {
		return err
	}
	sessions := make([][]string, len(s.Sessions))
	for i, rec := range s.Sessions {
		sessions[i] = []string{
			fmt.Sprintf("#%d", i+1),
			rec.SessionID,
			rec.Project,
			rec.Model,
			rec.Date,
			formatNumber(int64(rec.MessageCount)),
			formatMoney(rec.TotalCost),
		}
	}
	return f.writeTable(w, []string{"Rank", "Session ID", "Project", "Model", "Date", "Messages", "Cost"}, sessions, 5)
}

// FormatHeatmap implements Formatter.FormatHeatmap.
func (f *tableFormatter) FormatHeatmap(w io.Writer, h activity.HeatmapData) error {
	if err := writeHeader(w, "Activity Heatmap", f.config.Compact); err != nil {
		return err
	}

	header := make([]string, 25)
	header[0] = "Day"
	for hour := 0; hour < 24; hour++ {
		header[hour+1] = fmt.Sprintf("%02d", hour)
	}

	rows := make([][]string, 0, 7)
	if h.TotalMessages > 0 {
		for day, counts := range h.Grid {
			row := make([]string, 25)
			row[0] = weekdays[day]
			for hour, c := range counts {
				row[hour+1] = strconv.Itoa(c)
			}
			rows = append(rows, row)
		}
	}
	if err := f.writeTable(w, header, rows, 1); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "Messages: %s | Sessions: %s | Peak: %s %02d:00 (%d)\n",
		formatNumber(int64(h.TotalMessages)),
		formatNumber(int64(h.TotalSessions)),
		weekdays[h.Peak.Day], h.Peak.Hour, h.Peak.Count)
	return err
}

// FormatRateWindow implements Formatter.FormatRateWindow.
func (f *tableFormatter) FormatRateWindow(w io.Writer, rw activity.RateWindow) error {
	if err := writeHeader(w, "Rate Windows", f.config.Compact); err != nil {
		return err
	}

	rows := [][]string{
		{"Last 1h", formatNumber(rw.Rolling1h.Tokens), formatNumber(int64(rw.Rolling1h.Requests))},
		{"Last 5h", formatNumber(rw.Rolling5h.Tokens), formatNumber(int64(rw.Rolling5h.Requests))},
	}
	return f.writeTable(w, []string{"Window", "Tokens", "Requests"}, rows, 1)
}

// writeTable renders rows with labelCols left-aligned leading columns and
// right-aligned values.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string, labelCols int) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	rendition := tw.Rendition{}
	if f.config.Compact {
		rendition.Borders = tw.BorderNone
	}
	table := tablewriter.NewTable(w, tablewriter.WithRenderer(renderer.NewBlueprint(rendition)))
	table.Header(header)

	alignments := make([]tw.Align, len(header))
	for i := range alignments {
		if i < labelCols {
			alignments[i] = tw.AlignLeft
		} else {
			alignments[i] = tw.AlignRight
		}
	}
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.PerColumn = alignments
	})

	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("table rows: %w", err)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}
