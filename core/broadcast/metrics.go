package broadcast

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/dmitrymomot/zonecast/core/broadcast"

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeSkipped = "filtered"
)

func defaultMeter() metric.Meter {
	return noop.NewMeterProvider().Meter(meterName)
}

type publisherInstruments struct {
	events    metric.Int64Counter
	responses metric.Int64Counter
	passes    metric.Int64Counter
}

func newPublisherInstruments(m metric.Meter) (*publisherInstruments, error) {
	events, err := m.Int64Counter("zonecast.publisher.events",
		metric.WithDescription("Change events processed by broadcast passes"),
		metric.WithUnit("{event}"))
	if err != nil {
		return nil, err
	}
	responses, err := m.Int64Counter("zonecast.publisher.responses",
		metric.WithDescription("Records processed while answering queries"),
		metric.WithUnit("{record}"))
	if err != nil {
		return nil, err
	}
	passes, err := m.Int64Counter("zonecast.publisher.passes",
		metric.WithDescription("Broadcast passes run per zone"),
		metric.WithUnit("{pass}"))
	if err != nil {
		return nil, err
	}
	return &publisherInstruments{events: events, responses: responses, passes: passes}, nil
}

type subscriberInstruments struct {
	queries metric.Int64Counter
	records metric.Int64Counter
}

func newSubscriberInstruments(m metric.Meter) (*subscriberInstruments, error) {
	queries, err := m.Int64Counter("zonecast.subscriber.queries",
		metric.WithDescription("Queries submitted to zones"),
		metric.WithUnit("{query}"))
	if err != nil {
		return nil, err
	}
	records, err := m.Int64Counter("zonecast.subscriber.records",
		metric.WithDescription("Inbound records by kind and outcome"),
		metric.WithUnit("{record}"))
	if err != nil {
		return nil, err
	}
	return &subscriberInstruments{queries: queries, records: records}, nil
}

func countWith(ctx context.Context, c metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if n == 0 {
		return
	}
	c.Add(ctx, n, metric.WithAttributes(attrs...))
}
