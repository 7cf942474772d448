package agent

import "errors"

var (
	// ErrNilTransport is returned when an agent is created without a transport.
	ErrNilTransport = errors.New("transport is nil")

	// ErrNilRegistry is returned when an agent is created without a registry.
	ErrNilRegistry = errors.New("registry is nil")

	// ErrInvalidRole is returned for roles other than publisher and subscriber.
	ErrInvalidRole = errors.New("invalid agent role")

	// ErrNoConfig is returned when Initialize has no configuration to load.
	ErrNoConfig = errors.New("no agent configuration provided")

	// ErrInvalidState is returned when a lifecycle step is called in the wrong state.
	ErrInvalidState = errors.New("invalid agent state")

	// ErrNotInitialized is returned by StartAgent when the agent is not initialized.
	ErrNotInitialized = errors.New("agent is not initialized")

	// ErrInvalidVersion is returned when the protocol version cannot be parsed.
	ErrInvalidVersion = errors.New("invalid protocol version")

	// ErrAlreadyRegistered is returned when an object type is registered twice.
	ErrAlreadyRegistered = errors.New("object type already registered")

	// ErrUnknownObjectType is returned when a configured object type has no factory.
	ErrUnknownObjectType = errors.New("no factory registered for object type")

	// ErrNilFactory is returned when registering a nil factory.
	ErrNilFactory = errors.New("factory is nil")

	// ErrHealthcheckFailed is returned when the agent health check fails.
	ErrHealthcheckFailed = errors.New("agent healthcheck failed")
)
