package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables recognised by the loader.
const (
	EnvConfigPath    = "AGENTPULSE_CONFIG"
	EnvAddr          = "AGENTPULSE_ADDR"
	EnvLogLevel      = "AGENTPULSE_LOG_LEVEL"
	EnvOffsetBackend = "AGENTPULSE_OFFSET_BACKEND"
	EnvClaudeDirs    = "CLAUDE_CONFIG_DIR"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load merges defaults, the config file, the .env file and environment
	// variables, in increasing order of precedence, and validates the result.
	Load() (*Config, error)

	// LoadFromFile loads a config file on top of the defaults without
	// applying environment overrides or validation.
	LoadFromFile(path string) (*Config, error)

	// Path returns the config file Load uses, or "" when none was found.
	Path() string
}

// loader implements the Loader interface.
type loader struct {
	configPath string
	envFile    string
	lookupEnv  func(string) (string, bool)
}

// Option configures a Loader.
type Option func(*loader)

// WithEnvFile sets the dotenv file consulted for overrides. Default: ".env".
func WithEnvFile(path string) Option {
	return func(l *loader) { l.envFile = path }
}

// WithLookupEnv replaces os.LookupEnv, mainly for tests.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(l *loader) { l.lookupEnv = fn }
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, searches for config file in:
// 1. $AGENTPULSE_CONFIG
// 2. ./agentpulse.yaml (current directory)
// 3. ~/.config/agentpulse/config.yaml.
func NewLoader(configPath string, opts ...Option) Loader {
	l := &loader{
		configPath: configPath,
		envFile:    ".env",
		lookupEnv:  os.LookupEnv,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	cfg := Default()

	if configPath := l.Path(); configPath != "" {
		fileCfg, err := l.LoadFromFile(configPath)
		if err != nil {
			// An explicitly requested file must load; a discovered one may be skipped.
			if l.configPath != "" || !errors.Is(err, ErrConfigNotFound) {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		} else {
			cfg = fileCfg
		}
	}

	env, err := l.environment()
	if err != nil {
		return nil, err
	}
	l.applyEnvVars(cfg, env)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Decoding onto the defaults keeps every key the file leaves out.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return cfg, nil
}

// Path implements Loader.Path.
func (l *loader) Path() string {
	if l.configPath != "" {
		return l.configPath
	}
	if p, ok := l.lookupEnv(EnvConfigPath); ok && p != "" {
		return p
	}

	candidates := []string{
		"./agentpulse.yaml",
		DefaultConfigPath(),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// environment returns a lookup that prefers real environment variables and
// falls back to the dotenv file.
func (l *loader) environment() (func(string) string, error) {
	dotenv := map[string]string{}
	if l.envFile != "" {
		values, err := godotenv.Read(l.envFile)
		switch {
		case err == nil:
			dotenv = values
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read %s: %w", l.envFile, err)
		}
	}

	return func(key string) string {
		if v, ok := l.lookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}, nil
}

// applyEnvVars applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - CLAUDE_CONFIG_DIR: Comma-separated list of Claude project directories
//   - AGENTPULSE_ADDR: HTTP listen address
//   - AGENTPULSE_LOG_LEVEL: Log level
//   - AGENTPULSE_OFFSET_BACKEND: memory or bolt
func (l *loader) applyEnvVars(cfg *Config, getenv func(string) string) {
	if envDirs := getenv(EnvClaudeDirs); envDirs != "" {
		var dirs []string
		for _, dir := range strings.Split(envDirs, ",") {
			if dir = strings.TrimSpace(dir); dir != "" {
				dirs = append(dirs, dir)
			}
		}
		if cfg.Agents == nil {
			cfg.Agents = map[string]AgentConfig{}
		}
		cfg.Agents["claude"] = AgentConfig{LogDirs: dirs}
	}

	if addr := getenv(EnvAddr); addr != "" {
		cfg.Server.Addr = addr
	}

	if logLevel := getenv(EnvLogLevel); logLevel != "" {
		cfg.Logging.Level = strings.ToLower(logLevel)
	}

	if backend := getenv(EnvOffsetBackend); backend != "" {
		cfg.Tail.OffsetBackend = strings.ToLower(backend)
	}
}

// Overrides carries command-line flag values. Empty fields are ignored.
type Overrides struct {
	Addr     string
	LogLevel string
}

// Apply applies flag overrides and re-validates the configuration.
func (c *Config) Apply(o Overrides) error {
	if o.Addr != "" {
		c.Server.Addr = o.Addr
	}
	if o.LogLevel != "" {
		c.Logging.Level = strings.ToLower(o.LogLevel)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Load is a convenience function that creates a loader and loads configuration.
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// Save writes the configuration to a YAML file.
//
// Creates parent directories if they don't exist.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
