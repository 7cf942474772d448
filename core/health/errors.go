package health

import "errors"

var (
	ErrMissingAddress       = errors.New("health server address is required")
	ErrNilHandler           = errors.New("health server handler is nil")
	ErrServerAlreadyRunning = errors.New("health server is already running")
)
