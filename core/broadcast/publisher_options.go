package broadcast

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
)

type publisherOptions struct {
	frequency       time.Duration
	versions        []string
	overlap         OverlapPolicy
	shutdownTimeout time.Duration
	logger          *slog.Logger
	meter           metric.Meter
}

// PublisherOption configures a Publisher.
type PublisherOption func(*publisherOptions)

// WithEventFrequency sets the periodic broadcast interval.
// Zero or a negative value disables periodic broadcasting.
func WithEventFrequency(d time.Duration) PublisherOption {
	return func(o *publisherOptions) {
		o.frequency = d
	}
}

// WithPublisherVersions sets the protocol versions the publisher answers for.
func WithPublisherVersions(versions ...string) PublisherOption {
	return func(o *publisherOptions) {
		o.versions = append([]string(nil), versions...)
	}
}

// WithPublisherOverlap sets what happens when a tick fires during a running pass.
func WithPublisherOverlap(p OverlapPolicy) PublisherOption {
	return func(o *publisherOptions) {
		o.overlap = p
	}
}

// WithPublisherShutdownTimeout bounds how long Stop waits for the running pass.
func WithPublisherShutdownTimeout(d time.Duration) PublisherOption {
	return func(o *publisherOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithPublisherLogger sets a custom logger.
func WithPublisherLogger(l *slog.Logger) PublisherOption {
	return func(o *publisherOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPublisherMeter sets the meter used for publisher counters.
func WithPublisherMeter(m metric.Meter) PublisherOption {
	return func(o *publisherOptions) {
		if m != nil {
			o.meter = m
		}
	}
}
