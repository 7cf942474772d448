package broadcast

import (
	"context"
	"fmt"
)

// EventSource produces change events for one pass of a publisher over one zone.
//
// BeforeEvent and AfterEvent bracket every step of the pass. HasNextEvent must not
// move the position and must report false exactly when NextEvent has nothing left.
// NextEvent must advance the position even when it fails, so a failed item is never
// read twice.
type EventSource interface {
	BeforeEvent(ctx context.Context) error
	HasNextEvent(ctx context.Context) (bool, error)
	NextEvent(ctx context.Context) (*ChangeEvent, error)
	AfterEvent(ctx context.Context) error
}

// ResponseSource produces the records that answer one inbound query.
// It follows the same rules as EventSource with its own independent position.
type ResponseSource interface {
	BeforeResponse(ctx context.Context) error
	HasNextResponse(ctx context.Context) (bool, error)
	NextResponse(ctx context.Context) (Record, error)
	AfterResponse(ctx context.Context) error
}

// IterationMode selects what a source does once its sequence is exhausted.
type IterationMode uint8

const (
	// ModeOnce exhausts the sequence permanently.
	ModeOnce IterationMode = iota
	// ModeRepeat ends the current pass and starts over on the next one.
	ModeRepeat
)

func (m IterationMode) String() string {
	switch m {
	case ModeOnce:
		return "once"
	case ModeRepeat:
		return "repeat"
	default:
		return fmt.Sprintf("IterationMode(%d)", uint8(m))
	}
}

// ParseIterationMode parses "once" or "repeat". An empty string means ModeOnce.
func ParseIterationMode(s string) (IterationMode, error) {
	switch s {
	case "", "once":
		return ModeOnce, nil
	case "repeat", "repeating":
		return ModeRepeat, nil
	default:
		return 0, fmt.Errorf("unknown iteration mode %q", s)
	}
}

// Cursor is a position over a sequence of known length.
// Sources keep one cursor per role; a cursor is not safe for concurrent use.
//
// In ModeRepeat an exhausted cursor reports false once, which ends the pass,
// and rewinds on the next Begin.
type Cursor struct {
	mode   IterationMode
	pos    int
	rewind bool
}

// NewCursor returns a cursor positioned at the start.
func NewCursor(mode IterationMode) *Cursor {
	return &Cursor{mode: mode}
}

// Mode returns the cursor's iteration mode.
func (c *Cursor) Mode() IterationMode { return c.mode }

// Pos returns the index of the next item.
func (c *Cursor) Pos() int { return c.pos }

// Begin is called from a source's before hook.
func (c *Cursor) Begin() {
	if c.rewind {
		c.pos = 0
		c.rewind = false
	}
}

// HasNext reports whether an item is left in a sequence of n items.
func (c *Cursor) HasNext(n int) bool {
	if c.pos < n {
		return true
	}
	if c.mode == ModeRepeat && n > 0 {
		c.rewind = true
	}
	return false
}

// Advance returns the current index and moves past it.
func (c *Cursor) Advance() int {
	i := c.pos
	c.pos++
	return i
}
