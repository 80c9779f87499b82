// Package server exposes the agentpulse views over HTTP.
//
// Routes:
//
//	GET  /api/feed?agent=claude            Server-Sent Events stream
//	GET  /api/costs?days=30                cost summary
//	GET  /api/system                       current snapshot, history, host facts
//	GET  /api/heatmap                      weekday/hour activity
//	GET  /api/rate-limits                  rolling 1h and 5h usage
//	GET  /api/services                     monitored processes
//	POST /api/services/{name}/restart      restart an allow-listed service
//	GET  /healthz                          liveness
//
// Example usage:
//
//	srv := server.New(server.Config{Addr: "127.0.0.1:4100"}, deps, log)
//	if err := srv.Run(ctx); err != nil {
//	    log.Error("server failed", "error", err)
//	}
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/0xmhha/agentpulse/pkg/activity"
	"github.com/0xmhha/agentpulse/pkg/cost"
	"github.com/0xmhha/agentpulse/pkg/feed"
	"github.com/0xmhha/agentpulse/pkg/health"
	"github.com/0xmhha/agentpulse/pkg/logger"
	"github.com/0xmhha/agentpulse/pkg/services"
)

// Defaults for Config.
const (
	DefaultAddr              = "127.0.0.1:4100"
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
	DefaultAgent             = "claude"
	MaxWindowDays            = 365
)

// FeedSource subscribes clients to an agent's live events.
type FeedSource interface {
	Subscribe(agent string) (*feed.Hub, *feed.Subscription, error)
}

// CostSource computes cost summaries.
type CostSource interface {
	Summary(ctx context.Context, windowDays int) (cost.Summary, error)
}

// HeatmapSource computes the activity heatmap.
type HeatmapSource interface {
	Compute(ctx context.Context) (activity.HeatmapData, error)
}

// RateSource computes rolling rate windows.
type RateSource interface {
	Compute(ctx context.Context) (activity.RateWindow, error)
}

// HealthSource reports host health.
type HealthSource interface {
	Current() health.Snapshot
	History() []health.Snapshot
	Host() health.HostInfo
}

// ServiceController lists and restarts services.
type ServiceController interface {
	List(ctx context.Context) []services.ServiceInfo
	Restart(ctx context.Context, name string) (services.RestartResult, error)
}

// Deps are the components behind the routes.
type Deps struct {
	Feed     FeedSource
	Costs    CostSource
	Heatmap  HeatmapSource
	Rates    RateSource
	Health   HealthSource
	Services ServiceController
}

// Config contains server configuration.
type Config struct {
	// Addr is the listen address. Default: 127.0.0.1:4100.
	Addr string

	// HeartbeatInterval is the SSE comment interval. Default: 30s.
	HeartbeatInterval time.Duration

	// ShutdownTimeout bounds graceful shutdown. Default: 5s.
	ShutdownTimeout time.Duration

	// DefaultAgent is streamed when /api/feed has no agent parameter.
	DefaultAgent string

	// DefaultWindowDays is used when /api/costs has no days parameter.
	DefaultWindowDays int
}

// Server serves the HTTP API.
type Server struct {
	config Config
	deps   Deps
	logger logger.Logger
	now    func() time.Time
}

// New creates a Server.
func New(cfg Config, deps Deps, log logger.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.DefaultAgent == "" {
		cfg.DefaultAgent = DefaultAgent
	}
	if cfg.DefaultWindowDays <= 0 {
		cfg.DefaultWindowDays = cost.DefaultWindowDays
	}

	return &Server{config: cfg, deps: deps, logger: log, now: time.Now}
}

// Handler returns the routed handler wrapped in the recover and access log
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/feed", s.handleFeed)
	mux.HandleFunc("GET /api/costs", s.handleCosts)
	mux.HandleFunc("GET /api/system", s.handleSystem)
	mux.HandleFunc("GET /api/heatmap", s.handleHeatmap)
	mux.HandleFunc("GET /api/rate-limits", s.handleRateLimits)
	mux.HandleFunc("GET /api/services", s.handleServices)
	mux.HandleFunc("POST /api/services/{name}/restart", s.handleRestart)

	return s.logRequests(s.recoverPanics(mux))
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
// Request contexts derive from ctx, so open streams end on shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          s.logger.StdLogger(),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
