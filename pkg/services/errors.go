package services

import "errors"

// Common errors returned by the services package.
var (
	// ErrNotAllowed is returned when restarting a service that is not on
	// the restart allow-list.
	ErrNotAllowed = errors.New("service restart not allowed")

	// ErrEmptyCommand is returned when a runner is given no command.
	ErrEmptyCommand = errors.New("empty command")
)
