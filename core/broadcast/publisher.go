package broadcast

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dmitrymomot/zonecast/core/logger"
)

// SourceFactory creates fresh sources for a publisher.
// Returning a nil source with a nil error means there is nothing to offer.
type SourceFactory interface {
	EventSource(ctx context.Context, z Zone) (EventSource, error)
	ResponseSource(ctx context.Context, q *Query, z Zone) (ResponseSource, error)
}

// SourceFuncs adapts plain functions to SourceFactory. Nil fields yield nil sources.
type SourceFuncs struct {
	Events    func(ctx context.Context, z Zone) (EventSource, error)
	Responses func(ctx context.Context, q *Query, z Zone) (ResponseSource, error)
}

func (f SourceFuncs) EventSource(ctx context.Context, z Zone) (EventSource, error) {
	if f.Events == nil {
		return nil, nil
	}
	return f.Events(ctx, z)
}

func (f SourceFuncs) ResponseSource(ctx context.Context, q *Query, z Zone) (ResponseSource, error) {
	if f.Responses == nil {
		return nil, nil
	}
	return f.Responses(ctx, q, z)
}

// Publisher emits change events for one object type and answers queries for it.
type Publisher struct {
	objectType string
	factory    SourceFactory
	versions   []string
	logger     *slog.Logger
	metrics    *publisherInstruments
	task       *periodicTask

	passes            atomic.Int64
	eventsSucceeded   atomic.Int64
	eventsFailed      atomic.Int64
	requests          atomic.Int64
	responsesSent     atomic.Int64
	responsesFailed   atomic.Int64
	responsesFiltered atomic.Int64
	lastPassAt        atomic.Int64
}

// PublisherStats is a snapshot of publisher counters.
type PublisherStats struct {
	Passes            int64
	EventsSucceeded   int64
	EventsFailed      int64
	Requests          int64
	ResponsesSent     int64
	ResponsesFailed   int64
	ResponsesFiltered int64
	SkippedTicks      int64
	IsRunning         bool
	LastPassAt        time.Time
}

// NewPublisher creates a publisher for objectType backed by factory.
//
// Example:
//
//	pub, err := broadcast.NewPublisher("StudentPersonal", sources,
//	    broadcast.WithEventFrequency(30*time.Second),
//	    broadcast.WithPublisherLogger(log),
//	)
func NewPublisher(objectType string, factory SourceFactory, opts ...PublisherOption) (*Publisher, error) {
	if objectType == "" {
		return nil, &ConfigurationError{Setting: "object_type", Err: ErrMissingObjectType}
	}
	if factory == nil {
		return nil, &ConfigurationError{Setting: objectType, Err: ErrNilSourceFactory}
	}

	o := &publisherOptions{
		shutdownTimeout: 30 * time.Second,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		meter:           defaultMeter(),
	}
	for _, opt := range opts {
		opt(o)
	}

	metrics, err := newPublisherInstruments(o.meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher instruments: %w", err)
	}

	log := o.logger.With(logger.Component("publisher"), logger.ObjectType(objectType))

	return &Publisher{
		objectType: objectType,
		factory:    factory,
		versions:   o.versions,
		logger:     log,
		metrics:    metrics,
		task: &periodicTask{
			name:            "publish " + objectType,
			interval:        o.frequency,
			overlap:         o.overlap,
			shutdownTimeout: o.shutdownTimeout,
			logger:          log,
		},
	}, nil
}

// ObjectType returns the object type this publisher owns.
func (p *Publisher) ObjectType() string { return p.objectType }

// Frequency returns the broadcast interval. Zero or less disables periodic broadcasting.
func (p *Publisher) Frequency() time.Duration { return p.task.interval }

// Options returns the options the publisher registers with zones.
func (p *Publisher) Options() PublishOptions {
	return PublishOptions{Versions: p.versions}
}

// Register installs the publisher as the publish handler of z.
func (p *Publisher) Register(z Zone) {
	z.SetPublisher(p, p.objectType, p.Options())
}

// Start runs periodic broadcasts over a snapshot of zones until ctx is cancelled or
// Stop is called. It returns immediately when the frequency is zero or less.
func (p *Publisher) Start(ctx context.Context, zones []Zone) error {
	return p.task.start(ctx, zones, p.broadcastTick)
}

// Stop stops periodic broadcasting and waits for the running pass.
func (p *Publisher) Stop() error {
	return p.task.stop()
}

// Run provides errgroup compatibility.
func (p *Publisher) Run(ctx context.Context, zones []Zone) func() error {
	return p.task.run(ctx, zones, p.broadcastTick)
}

func (p *Publisher) broadcastTick(ctx context.Context, zones []Zone) {
	p.Broadcast(ctx, zones)
}

// Broadcast runs one pass for every connected zone, one zone after another.
func (p *Publisher) Broadcast(ctx context.Context, zones []Zone) []PassResult {
	results := make([]PassResult, 0, len(zones))
	for _, z := range zones {
		if z == nil {
			continue
		}
		if !z.Connected() {
			p.logger.DebugContext(ctx, "zone not connected, skipped", logger.Zone(z.ID()))
			continue
		}
		results = append(results, p.BroadcastZone(ctx, z))
	}
	p.lastPassAt.Store(time.Now().UnixNano())
	return results
}

// BroadcastZone drains a fresh event source into z.
func (p *Publisher) BroadcastZone(ctx context.Context, z Zone) PassResult {
	res := PassResult{ZoneID: z.ID()}
	log := p.logger.With(logger.Zone(z.ID()))
	start := time.Now()
	p.passes.Add(1)
	p.metrics.passes.Add(ctx, 1)

	src, err := protectValue(func() (EventSource, error) { return p.factory.EventSource(ctx, z) })
	if err != nil {
		res.Err = &IteratorError{ObjectType: p.objectType, ZoneID: z.ID(), Op: "open events", Err: err}
		log.ErrorContext(ctx, "failed to open event source", logger.Error(res.Err))
		return res
	}
	if src == nil {
		log.InfoContext(ctx, "no event source, zone skipped for this pass")
		return res
	}

	pass := drain(ctx,
		role[*ChangeEvent]{
			before:  src.BeforeEvent,
			hasNext: src.HasNextEvent,
			next:    src.NextEvent,
			after:   src.AfterEvent,
			isNil:   func(ev *ChangeEvent) bool { return ev == nil || ev.Record == nil },
		},
		func(ctx context.Context, ev *ChangeEvent) (deliverResult, error) {
			if !ev.Action.Valid() {
				return delivered, fmt.Errorf("%w: %d", ErrInvalidAction, ev.Action)
			}
			if err := z.ReportEvent(ctx, ev.Record, ev.Action); err != nil {
				return delivered, &BroadcastError{ObjectType: p.objectType, ZoneID: z.ID(), Action: ev.Action, Err: err}
			}
			return delivered, nil
		},
		func(err error) {
			log.WarnContext(ctx, "event discarded", logger.Error(err))
		},
	)
	pass.ZoneID = res.ZoneID

	if pass.Err != nil {
		pass.Err = &IteratorError{ObjectType: p.objectType, ZoneID: z.ID(), Op: "events", Err: pass.Err}
		log.ErrorContext(ctx, "event source failed, pass ended early", logger.Error(pass.Err))
	}

	p.eventsSucceeded.Add(int64(pass.Succeeded))
	p.eventsFailed.Add(int64(pass.Failed))
	zoneAttr := attribute.String("zone", z.ID())
	countWith(ctx, p.metrics.events, int64(pass.Succeeded), zoneAttr, attribute.String("outcome", outcomeSuccess))
	countWith(ctx, p.metrics.events, int64(pass.Failed), zoneAttr, attribute.String("outcome", outcomeFailure))

	if pass.Empty() {
		log.InfoContext(ctx, "no events found")
	} else {
		log.InfoContext(ctx, "events broadcast",
			logger.Succeeded(pass.Succeeded),
			logger.Failed(pass.Failed),
			logger.Elapsed(start))
	}
	return pass
}

// OnRequest answers an inbound query by streaming matching records to out.
func (p *Publisher) OnRequest(ctx context.Context, out OutputStream, q *Query, z Zone, info MessageInfo) {
	p.requests.Add(1)
	log := p.logger.With(logger.Zone(z.ID()), logger.MessageID(info.MessageID))

	src, err := protectValue(func() (ResponseSource, error) { return p.factory.ResponseSource(ctx, q, z) })
	if err != nil {
		err = &IteratorError{ObjectType: p.objectType, ZoneID: z.ID(), Op: "open responses", Err: err}
		log.ErrorContext(ctx, "failed to open response source", logger.Error(err))
		return
	}
	if src == nil {
		log.WarnContext(ctx, "no response source, request not answered")
		return
	}

	pass := drain(ctx,
		role[Record]{
			before:  src.BeforeResponse,
			hasNext: src.HasNextResponse,
			next:    src.NextResponse,
			after:   src.AfterResponse,
			isNil:   func(r Record) bool { return r == nil },
		},
		func(ctx context.Context, r Record) (deliverResult, error) {
			if !q.Matches(r) {
				return filtered, nil
			}
			if err := out.Write(ctx, r); err != nil {
				return delivered, &BroadcastError{ObjectType: p.objectType, ZoneID: z.ID(), Err: err}
			}
			return delivered, nil
		},
		func(err error) {
			log.WarnContext(ctx, "response record discarded", logger.Error(err))
		},
	)

	if pass.Err != nil {
		err := &IteratorError{ObjectType: p.objectType, ZoneID: z.ID(), Op: "responses", Err: pass.Err}
		log.ErrorContext(ctx, "response source failed, response ended early", logger.Error(err))
	}

	p.responsesSent.Add(int64(pass.Succeeded))
	p.responsesFailed.Add(int64(pass.Failed))
	p.responsesFiltered.Add(int64(pass.Filtered))
	zoneAttr := attribute.String("zone", z.ID())
	countWith(ctx, p.metrics.responses, int64(pass.Succeeded), zoneAttr, attribute.String("outcome", outcomeSuccess))
	countWith(ctx, p.metrics.responses, int64(pass.Failed), zoneAttr, attribute.String("outcome", outcomeFailure))
	countWith(ctx, p.metrics.responses, int64(pass.Filtered), zoneAttr, attribute.String("outcome", outcomeSkipped))

	if pass.Empty() {
		log.InfoContext(ctx, "no records found for request", slog.Any("query", q))
	} else {
		log.InfoContext(ctx, "request answered",
			logger.Succeeded(pass.Succeeded),
			logger.Failed(pass.Failed),
			logger.Count("filtered", pass.Filtered))
	}
}

// Stats returns a snapshot of publisher counters.
func (p *Publisher) Stats() PublisherStats {
	var last time.Time
	if ns := p.lastPassAt.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}
	return PublisherStats{
		Passes:            p.passes.Load(),
		EventsSucceeded:   p.eventsSucceeded.Load(),
		EventsFailed:      p.eventsFailed.Load(),
		Requests:          p.requests.Load(),
		ResponsesSent:     p.responsesSent.Load(),
		ResponsesFailed:   p.responsesFailed.Load(),
		ResponsesFiltered: p.responsesFiltered.Load(),
		SkippedTicks:      p.task.skipped.Load(),
		IsRunning:         p.task.running(),
		LastPassAt:        last,
	}
}

// Healthcheck fails when periodic broadcasting is enabled but not running.
func (p *Publisher) Healthcheck(ctx context.Context) error {
	if p.task.interval > 0 && !p.task.running() {
		return fmt.Errorf("%w: publisher %s is not running", ErrHealthcheckFailed, p.objectType)
	}
	return nil
}
