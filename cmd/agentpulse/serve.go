package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/agentpulse/pkg/activity"
	"github.com/0xmhha/agentpulse/pkg/config"
	"github.com/0xmhha/agentpulse/pkg/cost"
	"github.com/0xmhha/agentpulse/pkg/discovery"
	"github.com/0xmhha/agentpulse/pkg/feed"
	"github.com/0xmhha/agentpulse/pkg/health"
	"github.com/0xmhha/agentpulse/pkg/logger"
	"github.com/0xmhha/agentpulse/pkg/parser"
	"github.com/0xmhha/agentpulse/pkg/reader"
	"github.com/0xmhha/agentpulse/pkg/server"
	"github.com/0xmhha/agentpulse/pkg/services"
	"github.com/0xmhha/agentpulse/pkg/watcher"
)

// serveCommand runs the HTTP server.
type serveCommand struct {
	flags *globalFlags
	addr  string

	config *config.Config
	logger logger.Logger
	parser parser.Parser

	db    *bolt.DB
	pumps []*feed.Pump
}

func newServeCommand(flags *globalFlags) *cobra.Command {
	c := &serveCommand{flags: flags}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and live feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.Execute(ctx)
		},
	}
	cmd.Flags().StringVar(&c.addr, "addr", "", "listen address (overrides config)")
	return cmd
}

// Execute runs the server until ctx is done.
func (c *serveCommand) Execute(ctx context.Context) error {
	if err := c.initialize(); err != nil {
		return err
	}
	defer c.cleanup()

	registry := feed.NewRegistry(c.config.Server.SubscriberBuffer, c.logger)
	defer registry.Close()

	for _, name := range agentNames(c.config) {
		if err := c.startAgent(ctx, registry, name); err != nil {
			return err
		}
	}

	// Aggregates cover the logs of every agent.
	all := discovery.New(allLogDirs(c.config), c.logger)

	recorder := health.NewRecorder(health.Config{
		Interval: c.config.Health.Interval,
		Capacity: c.config.Health.Capacity,
	}, health.NewSampler(c.config.Health.DiskPath), c.logger)
	go recorder.Run(ctx)

	srv := server.New(server.Config{
		Addr:              c.config.Server.Addr,
		HeartbeatInterval: c.config.Server.HeartbeatInterval,
		ShutdownTimeout:   c.config.Server.ShutdownTimeout,
		DefaultWindowDays: c.config.Costs.DefaultWindowDays,
	}, server.Deps{
		Feed: registry,
		Costs: cost.New(cost.Config{
			TTL:       c.config.Costs.TTL,
			BatchSize: c.config.Costs.BatchSize,
		}, all, c.parser, c.logger),
		Heatmap: activity.NewHeatmap(activity.HeatmapConfig{
			TTL:  c.config.Heatmap.TTL,
			Days: c.config.Heatmap.Days,
		}, all, c.parser, c.logger),
		Rates:    activity.NewRateWindows(all, c.parser, c.logger, nil),
		Health:   recorder,
		Services: services.New(services.Config{Timeout: c.config.Services.Timeout}, nil, c.logger),
	}, c.logger)

	c.logger.Info("agentpulse starting",
		"version", version,
		"addr", c.config.Server.Addr,
		"agents", agentNames(c.config),
		"offset_backend", c.config.Tail.OffsetBackend)

	return srv.Run(ctx)
}

func (c *serveCommand) initialize() error {
	cfg, err := c.flags.loadConfig(config.Overrides{Addr: c.addr})
	if err != nil {
		return err
	}
	c.config = cfg
	c.logger = newLogger(cfg)
	c.parser = parser.New(c.logger)

	if cfg.Tail.OffsetBackend == config.BackendBolt {
		if err := os.MkdirAll(filepath.Dir(cfg.Tail.OffsetDBPath), 0700); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
		db, err := bolt.Open(cfg.Tail.OffsetDBPath, 0600, &bolt.Options{Timeout: time.Second})
		if err != nil {
			return fmt.Errorf("failed to open offset database: %w", err)
		}
		c.db = db
	}
	return nil
}

// startAgent registers an agent and starts following its logs. An agent
// without any existing log directory is followed once one appears.
func (c *serveCommand) startAgent(ctx context.Context, registry *feed.Registry, name string) error {
	log := c.logger.With("agent", name)
	disc := discovery.New(c.config.Agents[name].LogDirs, log)
	hub := registry.Register(name, disc)

	store, err := c.offsetStore()
	if err != nil {
		return err
	}

	r, err := reader.New(reader.Config{
		Store:             store,
		Parser:            c.parser,
		MaxReadBytes:      c.config.Tail.MaxReadBytes,
		NewFilesFromStart: true,
	}, log)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to create reader for %s: %w", name, err)
	}

	w, err := watcher.New(watcher.Config{DebounceInterval: c.config.Tail.DebounceInterval}, log)
	if err != nil {
		_ = r.Close()
		return fmt.Errorf("failed to create watcher for %s: %w", name, err)
	}

	pump := feed.NewPump(hub, w, r, c.logger)
	live := func() { registry.SetLive(name, true) }
	if err := pump.Follow(ctx, disc, feed.DefaultRetryInterval, live); err != nil {
		if !errors.Is(err, feed.ErrUnavailable) {
			_ = pump.Close()
			return fmt.Errorf("failed to start feed for %s: %w", name, err)
		}
		log.Warn("no log directory yet, waiting for it to appear",
			"dirs", c.config.Agents[name].LogDirs,
			"retry_interval", feed.DefaultRetryInterval)
	}

	c.pumps = append(c.pumps, pump)
	return nil
}

// offsetStore returns a store for one agent. Bolt stores share one database.
func (c *serveCommand) offsetStore() (reader.OffsetStore, error) {
	if c.db == nil {
		return reader.NewMemoryOffsetStore(), nil
	}
	store, err := reader.NewBoltOffsetStore(c.db)
	if err != nil {
		return nil, fmt.Errorf("failed to create offset store: %w", err)
	}
	return store, nil
}

func (c *serveCommand) cleanup() {
	for _, p := range c.pumps {
		if err := p.Close(); err != nil {
			c.logger.Warn("failed to close feed", "error", err)
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Warn("failed to close offset database", "error", err)
		}
	}
}
