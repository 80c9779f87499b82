package discovery

import "errors"

// ErrProjectNotFound is returned when a project directory does not exist.
var ErrProjectNotFound = errors.New("project directory not found")
