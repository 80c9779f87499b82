package feed

import "errors"

// Common errors returned by the feed package.
var (
	// ErrUnavailable is returned when an agent has no log source to follow.
	ErrUnavailable = errors.New("agent log source unavailable")

	// ErrPumpRunning is returned when Start is called on a running pump.
	ErrPumpRunning = errors.New("pump is already running")

	// ErrPumpClosed is returned when operating on a closed pump.
	ErrPumpClosed = errors.New("pump is closed")
)
