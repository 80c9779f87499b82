package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/0xmhha/agentpulse/pkg/activity"
	"github.com/0xmhha/agentpulse/pkg/config"
	"github.com/0xmhha/agentpulse/pkg/cost"
	"github.com/0xmhha/agentpulse/pkg/discovery"
	"github.com/0xmhha/agentpulse/pkg/display"
	"github.com/0xmhha/agentpulse/pkg/logger"
	"github.com/0xmhha/agentpulse/pkg/parser"
)

// reportCommand prints one-shot reports computed from the session logs.
type reportCommand struct {
	flags   *globalFlags
	days    int
	format  string
	compact bool

	config    *config.Config
	logger    logger.Logger
	parser    parser.Parser
	discovery discovery.Discoverer
	formatter display.Formatter
}

func newReportCommand(flags *globalFlags) *cobra.Command {
	c := &reportCommand{flags: flags}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print cost, heatmap or rate reports",
	}
	cmd.PersistentFlags().StringVarP(&c.format, "format", "f", "", "output format (table, json, simple); default table on a terminal, json otherwise")
	cmd.PersistentFlags().BoolVar(&c.compact, "compact", false, "compact output")

	costs := &cobra.Command{
		Use:   "costs",
		Short: "Print the cost summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, c.costs)
		},
	}
	costs.Flags().IntVarP(&c.days, "days", "d", 0, "window in days (default from config)")

	heatmap := &cobra.Command{
		Use:   "heatmap",
		Short: "Print the weekday by hour activity heatmap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, c.heatmap)
		},
	}
	heatmap.Flags().IntVarP(&c.days, "days", "d", 0, "window in days (default from config)")

	rates := &cobra.Command{
		Use:   "rates",
		Short: "Print token usage of the last hour and five hours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, c.rates)
		},
	}

	cmd.AddCommand(costs, heatmap, rates)
	return cmd
}

func (c *reportCommand) run(cmd *cobra.Command, report func(context.Context, io.Writer) error) error {
	out := cmd.OutOrStdout()
	if err := c.initialize(out); err != nil {
		return err
	}
	return report(cmd.Context(), out)
}

func (c *reportCommand) initialize(out io.Writer) error {
	cfg, err := c.flags.loadConfig(config.Overrides{})
	if err != nil {
		return err
	}
	c.config = cfg
	c.logger = newLogger(cfg)
	c.parser = parser.New(c.logger)
	c.discovery = discovery.New(allLogDirs(cfg), c.logger)

	format, err := c.resolveFormat(out)
	if err != nil {
		return err
	}
	c.formatter = display.New(display.Config{Format: format, Compact: c.compact})
	return nil
}

// resolveFormat returns the requested format, or table for terminals and
// json for pipes and files.
func (c *reportCommand) resolveFormat(out io.Writer) (display.Format, error) {
	if c.format != "" {
		format, err := display.ParseFormat(c.format)
		if err != nil {
			return "", fmt.Errorf("%w: %q", err, c.format)
		}
		return format, nil
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return display.FormatTable, nil
	}
	return display.FormatJSON, nil
}

func (c *reportCommand) costs(ctx context.Context, w io.Writer) error {
	days := c.days
	if days <= 0 {
		days = c.config.Costs.DefaultWindowDays
	}

	agg := cost.New(cost.Config{BatchSize: c.config.Costs.BatchSize}, c.discovery, c.parser, c.logger)
	summary, err := agg.Summary(ctx, days)
	if err != nil {
		return fmt.Errorf("failed to compute costs: %w", err)
	}
	return c.formatter.FormatCosts(w, summary)
}

func (c *reportCommand) heatmap(ctx context.Context, w io.Writer) error {
	days := c.days
	if days <= 0 {
		days = c.config.Heatmap.Days
	}

	h := activity.NewHeatmap(activity.HeatmapConfig{Days: days}, c.discovery, c.parser, c.logger)
	data, err := h.Compute(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute heatmap: %w", err)
	}
	return c.formatter.FormatHeatmap(w, data)
}

func (c *reportCommand) rates(ctx context.Context, w io.Writer) error {
	rw, err := activity.NewRateWindows(c.discovery, c.parser, c.logger, nil).Compute(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute rate windows: %w", err)
	}
	return c.formatter.FormatRateWindow(w, rw)
}
