package broadcast

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingObjectType is returned when an engine or query is built without an object type.
	ErrMissingObjectType = errors.New("object type is required")

	// ErrMissingProtocolVersion is returned when a subscriber is built without a protocol version.
	ErrMissingProtocolVersion = errors.New("protocol version is required")

	// ErrNilSourceFactory is returned when a publisher is built without a source factory.
	ErrNilSourceFactory = errors.New("source factory is nil")

	// ErrNilRecordFactory is returned when a subscriber is built without a record factory.
	ErrNilRecordFactory = errors.New("record factory is nil")

	// ErrNilRecord is returned when a change event is built from a nil record.
	ErrNilRecord = errors.New("record is nil")

	// ErrNilEvent is reported when a source yields no event after announcing one.
	ErrNilEvent = errors.New("source returned nil item after has-next reported true")

	// ErrInvalidAction is returned for event actions outside Add, Change and Delete.
	ErrInvalidAction = errors.New("invalid event action")

	// ErrInvalidOperator is returned for unknown query condition operators.
	ErrInvalidOperator = errors.New("invalid condition operator")

	// ErrInvalidMatchMode is returned for match modes other than "and" and "or".
	ErrInvalidMatchMode = errors.New("invalid match mode")

	// ErrQueryFrozen is returned when a query is modified after it was handed to a zone.
	ErrQueryFrozen = errors.New("query is frozen")

	// ErrObjectTypeMismatch is returned when a record does not belong to the engine's object type.
	ErrObjectTypeMismatch = errors.New("record object type mismatch")

	// ErrNilZone is returned when a nil zone is passed to an engine operation.
	ErrNilZone = errors.New("zone is nil")

	// ErrAlreadyStarted is returned when starting an engine that is already running.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrNotStarted is returned when stopping an engine that is not running.
	ErrNotStarted = errors.New("engine not started")

	// ErrHealthcheckFailed is returned when an engine health check fails.
	ErrHealthcheckFailed = errors.New("broadcast engine healthcheck failed")
)

// ConfigurationError reports a required setting that is missing or malformed.
// It is fatal to agent startup.
type ConfigurationError struct {
	Setting string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Setting == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Setting, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IteratorError wraps a failure raised by a record source outside of per-item reads.
// It ends the current pass for one zone.
type IteratorError struct {
	ObjectType string
	ZoneID     string
	Op         string
	Err        error
}

func (e *IteratorError) Error() string {
	return fmt.Sprintf("iterator %s failed for %s in zone %s: %v", e.Op, e.ObjectType, e.ZoneID, e.Err)
}

func (e *IteratorError) Unwrap() error { return e.Err }

// BroadcastError reports a single event or record that could not be delivered to a zone.
type BroadcastError struct {
	ObjectType string
	ZoneID     string
	Action     EventAction
	Err        error
}

func (e *BroadcastError) Error() string {
	if e.Action.Valid() {
		return fmt.Sprintf("failed to report %s %s event to zone %s: %v", e.ObjectType, e.Action, e.ZoneID, e.Err)
	}
	return fmt.Sprintf("failed to send %s record to zone %s: %v", e.ObjectType, e.ZoneID, e.Err)
}

func (e *BroadcastError) Unwrap() error { return e.Err }

// ConnectionError reports a zone that failed to connect during agent start.
type ConnectionError struct {
	ZoneID string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to zone %s: %v", e.ZoneID, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError is an error object returned by a zone in answer to a query.
// It is data carried by a delivery, not a failure of the engine.
type ProtocolError struct {
	Category     int
	Code         int
	Desc         string
	ExtendedDesc string
}

func (e *ProtocolError) Error() string {
	if e.ExtendedDesc != "" {
		return fmt.Sprintf("protocol error %d/%d: %s (%s)", e.Category, e.Code, e.Desc, e.ExtendedDesc)
	}
	return fmt.Sprintf("protocol error %d/%d: %s", e.Category, e.Code, e.Desc)
}
