package main

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/0xmhha/agentpulse/pkg/config"
	"github.com/0xmhha/agentpulse/pkg/logger"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "agentpulse",
		Short:         "Live telemetry for coding agent session logs",
		Long:          "agentpulse tails agent session logs and serves live events, costs, heatmaps, rate windows and host health over HTTP.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to configuration file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(flags),
		newReportCommand(flags),
		newConfigCommand(flags),
	)
	return root
}

// loadConfig loads configuration and applies flag overrides.
func (f *globalFlags) loadConfig(overrides config.Overrides) (*config.Config, error) {
	cfg, err := config.NewLoader(f.configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	overrides.LogLevel = f.logLevel
	if err := cfg.Apply(overrides); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logger.Logger {
	return logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// agentNames returns the configured agents, sorted.
func agentNames(cfg *config.Config) []string {
	names := lo.Keys(cfg.Agents)
	sort.Strings(names)
	return names
}

// allLogDirs returns the log directories of every agent without duplicates.
func allLogDirs(cfg *config.Config) []string {
	var dirs []string
	for _, name := range agentNames(cfg) {
		dirs = append(dirs, cfg.Agents[name].LogDirs...)
	}
	return lo.Uniq(dirs)
}
