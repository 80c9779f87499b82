// Package config provides configuration management for agentpulse.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. A .env file in the working directory
// 4. Configuration file
// 5. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Listening on %s\n", cfg.Server.Addr)
package config

import (
	"time"
)

// Config represents the complete application configuration.
//
// Invariants:
// - Agents must contain at least one agent
// - every duration and size must be > 0
// - Tail.OffsetBackend is "memory" or "bolt".
type Config struct {
	// Agents maps an agent name to the directories holding its session logs.
	Agents map[string]AgentConfig `yaml:"agents"`

	// HTTP server settings
	Server ServerConfig `yaml:"server"`

	// Log tailing settings
	Tail TailConfig `yaml:"tail"`

	// Cost aggregation settings
	Costs CostsConfig `yaml:"costs"`

	// Heatmap settings
	Heatmap HeatmapConfig `yaml:"heatmap"`

	// Host health settings
	Health HealthConfig `yaml:"health"`

	// Service monitor settings
	Services ServicesConfig `yaml:"services"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// AgentConfig describes one upstream agent.
type AgentConfig struct {
	// Directories containing one subdirectory per project.
	LogDirs []string `yaml:"log_dirs"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Listen address
	Addr string `yaml:"addr"`

	// Interval between SSE heartbeat comments
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// Per-subscriber event buffer
	SubscriberBuffer int `yaml:"subscriber_buffer"`

	// Grace period for in-flight requests on shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TailConfig contains log tailing settings.
type TailConfig struct {
	// Coalescing window for file change events
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// Upper bound on bytes read from one file per pass
	MaxReadBytes int64 `yaml:"max_read_bytes"`

	// Offset store backend (memory, bolt)
	OffsetBackend string `yaml:"offset_backend"`

	// Path to the BoltDB file used by the bolt backend
	OffsetDBPath string `yaml:"offset_db_path"`
}

// CostsConfig contains cost aggregation settings.
type CostsConfig struct {
	// How long a computed summary is served from cache
	TTL time.Duration `yaml:"ttl"`

	// Number of files processed per batch
	BatchSize int `yaml:"batch_size"`

	// Window used when a request does not name one
	DefaultWindowDays int `yaml:"default_window_days"`
}

// HeatmapConfig contains activity heatmap settings.
type HeatmapConfig struct {
	TTL  time.Duration `yaml:"ttl"`
	Days int           `yaml:"days"`
}

// HealthConfig contains host health sampling settings.
type HealthConfig struct {
	// Sampling interval
	Interval time.Duration `yaml:"interval"`

	// Number of snapshots retained
	Capacity int `yaml:"capacity"`

	// Filesystem reported as disk usage
	DiskPath string `yaml:"disk_path"`
}

// ServicesConfig contains service monitor settings.
type ServicesConfig struct {
	// Timeout applied to every subprocess call
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// Validate checks if the configuration satisfies all invariants.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return ErrNoAgents
	}
	for name, agent := range c.Agents {
		if name == "" || len(agent.LogDirs) == 0 {
			return ErrNoLogDirs
		}
	}

	if c.Server.Addr == "" {
		return ErrInvalidAddr
	}
	if c.Server.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeat
	}
	if c.Server.SubscriberBuffer <= 0 {
		return ErrInvalidSubscriberBuffer
	}

	if c.Tail.DebounceInterval <= 0 {
		return ErrInvalidDebounce
	}
	if c.Tail.MaxReadBytes <= 0 {
		return ErrInvalidMaxReadBytes
	}
	switch c.Tail.OffsetBackend {
	case BackendMemory:
	case BackendBolt:
		if c.Tail.OffsetDBPath == "" {
			return ErrMissingOffsetDB
		}
	default:
		return ErrInvalidOffsetBackend
	}

	if c.Costs.TTL <= 0 || c.Heatmap.TTL <= 0 {
		return ErrInvalidTTL
	}
	if c.Costs.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.Costs.DefaultWindowDays <= 0 || c.Heatmap.Days <= 0 {
		return ErrInvalidWindow
	}

	if c.Health.Interval <= 0 {
		return ErrInvalidHealthInterval
	}
	if c.Health.Capacity <= 0 {
		return ErrInvalidHealthCapacity
	}

	if c.Services.Timeout <= 0 {
		return ErrInvalidServiceTimeout
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// Offset store backends.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
)

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		Agents: map[string]AgentConfig{
			"claude": {LogDirs: defaultClaudeDirs()},
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:4100",
			HeartbeatInterval: 30 * time.Second,
			SubscriberBuffer:  64,
			ShutdownTimeout:   5 * time.Second,
		},
		Tail: TailConfig{
			DebounceInterval: 100 * time.Millisecond,
			MaxReadBytes:     8 << 20,
			OffsetBackend:    BackendMemory,
			OffsetDBPath:     defaultOffsetDBPath(),
		},
		Costs: CostsConfig{
			TTL:               60 * time.Second,
			BatchSize:         50,
			DefaultWindowDays: 30,
		},
		Heatmap: HeatmapConfig{
			TTL:  5 * time.Minute,
			Days: 30,
		},
		Health: HealthConfig{
			Interval: 5 * time.Minute,
			Capacity: 288, // 24h at the default interval
			DiskPath: "/",
		},
		Services: ServicesConfig{
			Timeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}
