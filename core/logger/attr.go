package logger

import (
	"log/slog"
	"time"
)

// Attribute helpers return an empty Attr for empty input, so calls like
// log.Info("msg", logger.Error(err)) need no nil checks.

// Error creates an attribute for a single error under "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// ============================================================================
// Timing
// ============================================================================

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed logs the time since start.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// Interval creates an attribute for a timer interval.
func Interval(d time.Duration) slog.Attr {
	return slog.Duration("interval", d)
}

// ============================================================================
// Broadcast domain
// ============================================================================

// Agent creates an attribute for the agent identity.
func Agent(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("agent", id)
}

// Zone creates an attribute for a zone identifier.
func Zone(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("zone", id)
}

// ObjectType creates an attribute for a record object type.
func ObjectType(t string) slog.Attr {
	return slog.String("object_type", t)
}

// Action creates an attribute for an event action.
func Action(action string) slog.Attr {
	return slog.String("action", action)
}

// MessageID creates an attribute for an inbound message identifier.
func MessageID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("message_id", id)
}

// Succeeded counts items that went through.
func Succeeded(n int) slog.Attr {
	return slog.Int("succeeded", n)
}

// Failed counts items that did not.
func Failed(n int) slog.Attr {
	return slog.Int("failed", n)
}

// State creates an attribute for a lifecycle state.
func State(s string) slog.Attr {
	return slog.String("state", s)
}

// ============================================================================
// Generic metadata
// ============================================================================

// Component creates an attribute for component names.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Count creates a generic counter attribute.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Version creates an attribute for version information.
func Version(v string) slog.Attr {
	return slog.String("version", v)
}

// Key creates a generic key-value attribute.
func Key(key string, value any) slog.Attr {
	if value == nil {
		return slog.Attr{}
	}
	return slog.Any(key, value)
}
