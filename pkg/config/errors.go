package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrNoAgents is returned when no agents are configured.
	ErrNoAgents = errors.New("no agents configured")

	// ErrNoLogDirs is returned when an agent has no log directories.
	ErrNoLogDirs = errors.New("agent has no log directories")

	// ErrInvalidAddr is returned when the listen address is empty.
	ErrInvalidAddr = errors.New("invalid server address")

	// ErrInvalidHeartbeat is returned when the heartbeat interval is <= 0.
	ErrInvalidHeartbeat = errors.New("invalid heartbeat interval: must be > 0")

	// ErrInvalidSubscriberBuffer is returned when the subscriber buffer is <= 0.
	ErrInvalidSubscriberBuffer = errors.New("invalid subscriber buffer: must be > 0")

	// ErrInvalidDebounce is returned when the debounce interval is <= 0.
	ErrInvalidDebounce = errors.New("invalid debounce interval: must be > 0")

	// ErrInvalidMaxReadBytes is returned when the per-pass read bound is <= 0.
	ErrInvalidMaxReadBytes = errors.New("invalid max read bytes: must be > 0")

	// ErrInvalidOffsetBackend is returned when the offset backend is not recognized.
	ErrInvalidOffsetBackend = errors.New("invalid offset backend: must be memory or bolt")

	// ErrMissingOffsetDB is returned when the bolt backend has no database path.
	ErrMissingOffsetDB = errors.New("bolt offset backend requires offset_db_path")

	// ErrInvalidTTL is returned when a cache TTL is <= 0.
	ErrInvalidTTL = errors.New("invalid cache ttl: must be > 0")

	// ErrInvalidBatchSize is returned when the cost batch size is <= 0.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be > 0")

	// ErrInvalidWindow is returned when a day window is <= 0.
	ErrInvalidWindow = errors.New("invalid window: days must be > 0")

	// ErrInvalidHealthInterval is returned when the health interval is <= 0.
	ErrInvalidHealthInterval = errors.New("invalid health interval: must be > 0")

	// ErrInvalidHealthCapacity is returned when the health capacity is <= 0.
	ErrInvalidHealthCapacity = errors.New("invalid health capacity: must be > 0")

	// ErrInvalidServiceTimeout is returned when the subprocess timeout is <= 0.
	ErrInvalidServiceTimeout = errors.New("invalid service timeout: must be > 0")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
