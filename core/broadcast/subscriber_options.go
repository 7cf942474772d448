package broadcast

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
)

type subscriberOptions struct {
	version         string
	frequency       time.Duration
	gate            RequestGate
	requestHook     QueryHook
	syncHook        QueryHook
	eventFilter     EventFilter
	responseFilter  ResponseFilter
	onEvent         EventHandlerFunc
	onResponse      ResponseHandlerFunc
	overlap         OverlapPolicy
	shutdownTimeout time.Duration
	logger          *slog.Logger
	meter           metric.Meter
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*subscriberOptions)

// WithProtocolVersion sets the version stamped on every query. Required.
func WithProtocolVersion(v string) SubscriberOption {
	return func(o *subscriberOptions) {
		o.version = v
	}
}

// WithRequestFrequency sets the periodic request interval.
// Zero or a negative value disables periodic requests.
func WithRequestFrequency(d time.Duration) SubscriberOption {
	return func(o *subscriberOptions) {
		o.frequency = d
	}
}

// WithRequestGate sets the per-zone gate evaluated on every tick.
func WithRequestGate(g RequestGate) SubscriberOption {
	return func(o *subscriberOptions) {
		if g != nil {
			o.gate = g
		}
	}
}

// WithRequestQueryHook extends queries sent by periodic requests.
func WithRequestQueryHook(h QueryHook) SubscriberOption {
	return func(o *subscriberOptions) {
		o.requestHook = h
	}
}

// WithSyncQueryHook extends queries sent by Sync.
func WithSyncQueryHook(h QueryHook) SubscriberOption {
	return func(o *subscriberOptions) {
		o.syncHook = h
	}
}

// WithEventFilter sets the pre-filter for inbound events.
func WithEventFilter(f EventFilter) SubscriberOption {
	return func(o *subscriberOptions) {
		o.eventFilter = f
	}
}

// WithResponseFilter sets the pre-filter for inbound response records.
func WithResponseFilter(f ResponseFilter) SubscriberOption {
	return func(o *subscriberOptions) {
		o.responseFilter = f
	}
}

// WithEventHandler sets the handler for inbound events.
func WithEventHandler(h EventHandlerFunc) SubscriberOption {
	return func(o *subscriberOptions) {
		o.onEvent = h
	}
}

// WithResponseHandler sets the handler for inbound response records.
func WithResponseHandler(h ResponseHandlerFunc) SubscriberOption {
	return func(o *subscriberOptions) {
		o.onResponse = h
	}
}

// WithSubscriberOverlap sets what happens when a tick fires during a running tick.
func WithSubscriberOverlap(p OverlapPolicy) SubscriberOption {
	return func(o *subscriberOptions) {
		o.overlap = p
	}
}

// WithSubscriberShutdownTimeout bounds how long Stop waits for the running tick.
func WithSubscriberShutdownTimeout(d time.Duration) SubscriberOption {
	return func(o *subscriberOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithSubscriberLogger sets a custom logger.
func WithSubscriberLogger(l *slog.Logger) SubscriberOption {
	return func(o *subscriberOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSubscriberMeter sets the meter used for subscriber counters.
func WithSubscriberMeter(m metric.Meter) SubscriberOption {
	return func(o *subscriberOptions) {
		if m != nil {
			o.meter = m
		}
	}
}
