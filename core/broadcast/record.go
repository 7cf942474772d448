package broadcast

import (
	"encoding"
	"fmt"
	"strings"
)

// Record is one unit of exchanged data. The engine treats it as opaque:
// it only reads the object type and never mutates the value.
type Record interface {
	ObjectType() string
	encoding.TextMarshaler
}

// TypedRecord is a record that can also be decoded from its text form.
// Zones use it to materialize inbound payloads for a subscriber.
type TypedRecord interface {
	Record
	encoding.TextUnmarshaler
}

// RecordFactory returns a fresh, empty record of one object type.
type RecordFactory func() TypedRecord

// FieldReader is implemented by records whose fields can be addressed by path.
// Queries with conditions can only match records that implement it.
type FieldReader interface {
	Field(path string) (string, bool)
}

// EventAction describes what happened to a record.
type EventAction uint8

const (
	ActionAdd EventAction = iota + 1
	ActionChange
	ActionDelete
)

// Valid reports whether a is one of the known actions.
func (a EventAction) Valid() bool {
	return a >= ActionAdd && a <= ActionDelete
}

func (a EventAction) String() string {
	switch a {
	case ActionAdd:
		return "Add"
	case ActionChange:
		return "Change"
	case ActionDelete:
		return "Delete"
	default:
		return fmt.Sprintf("EventAction(%d)", uint8(a))
	}
}

// ParseEventAction parses a case-insensitive action name.
func ParseEventAction(s string) (EventAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add":
		return ActionAdd, nil
	case "change":
		return ActionChange, nil
	case "delete":
		return ActionDelete, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}

// ChangeEvent pairs a record with the action its producer assigned to it.
type ChangeEvent struct {
	Record Record
	Action EventAction
}

// NewChangeEvent builds an event. The action is never inferred.
func NewChangeEvent(record Record, action EventAction) (*ChangeEvent, error) {
	if record == nil {
		return nil, ErrNilRecord
	}
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAction, action)
	}
	return &ChangeEvent{Record: record, Action: action}, nil
}

// ObjectType returns the object type of the wrapped record.
func (e *ChangeEvent) ObjectType() string {
	if e == nil || e.Record == nil {
		return ""
	}
	return e.Record.ObjectType()
}
