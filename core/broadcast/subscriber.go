package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dmitrymomot/zonecast/core/logger"
)

// RequestGate decides, once per zone per tick, whether a periodic query is sent.
// Gates may keep state; they are called from the engine's tick goroutine.
type RequestGate func(ctx context.Context, z Zone) bool

// QueryHook adds conditions to a query before it is submitted.
type QueryHook func(q *Query, z Zone) error

// EventFilter decides whether an inbound event reaches the event handler.
type EventFilter func(ctx context.Context, ev *ChangeEvent, z Zone) bool

// ResponseFilter decides whether an inbound response record reaches the response handler.
type ResponseFilter func(ctx context.Context, r Record, z Zone) bool

// EventHandlerFunc processes one inbound change event.
type EventHandlerFunc func(ctx context.Context, ev *ChangeEvent, z Zone, info MessageInfo) error

// ResponseHandlerFunc processes one record received in answer to a query.
type ResponseHandlerFunc func(ctx context.Context, r Record, z Zone, info MessageInfo) error

// AlwaysRequest is a gate that never blocks a request.
func AlwaysRequest(context.Context, Zone) bool { return true }

// MaxRequests returns a gate that lets the first n ticks through for every zone.
func MaxRequests(n int) RequestGate {
	var mu sync.Mutex
	sent := make(map[string]int)
	return func(_ context.Context, z Zone) bool {
		mu.Lock()
		defer mu.Unlock()
		if sent[z.ID()] >= n {
			return false
		}
		sent[z.ID()]++
		return true
	}
}

// Subscriber requests records of one object type and reacts to inbound events and responses.
type Subscriber struct {
	objectType     string
	newRecord      RecordFactory
	version        string
	gate           RequestGate
	requestHook    QueryHook
	syncHook       QueryHook
	eventFilter    EventFilter
	responseFilter ResponseFilter
	onEvent        EventHandlerFunc
	onResponse     ResponseHandlerFunc
	logger         *slog.Logger
	metrics        *subscriberInstruments
	task           *periodicTask

	queries          atomic.Int64
	queryFailures    atomic.Int64
	eventsHandled    atomic.Int64
	eventsFailed     atomic.Int64
	eventsFiltered   atomic.Int64
	responsesHandled atomic.Int64
	responsesFailed  atomic.Int64
	protocolErrors   atomic.Int64
	lastTickAt       atomic.Int64
}

// SubscriberStats is a snapshot of subscriber counters.
type SubscriberStats struct {
	Queries          int64
	QueryFailures    int64
	EventsHandled    int64
	EventsFailed     int64
	EventsFiltered   int64
	ResponsesHandled int64
	ResponsesFailed  int64
	ProtocolErrors   int64
	SkippedTicks     int64
	IsRunning        bool
	LastTickAt       time.Time
}

// NewSubscriber creates a subscriber for objectType. newRecord decodes inbound payloads.
//
// Example:
//
//	sub, err := broadcast.NewSubscriber("StudentPersonal", record.Factory("StudentPersonal"),
//	    broadcast.WithProtocolVersion("2.0"),
//	    broadcast.WithRequestFrequency(time.Minute),
//	    broadcast.WithRequestGate(broadcast.MaxRequests(2)),
//	    broadcast.WithEventHandler(printEvent),
//	)
func NewSubscriber(objectType string, newRecord RecordFactory, opts ...SubscriberOption) (*Subscriber, error) {
	if objectType == "" {
		return nil, &ConfigurationError{Setting: "object_type", Err: ErrMissingObjectType}
	}
	if newRecord == nil {
		return nil, &ConfigurationError{Setting: objectType, Err: ErrNilRecordFactory}
	}

	o := &subscriberOptions{
		gate:            AlwaysRequest,
		shutdownTimeout: 30 * time.Second,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		meter:           defaultMeter(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.version == "" {
		return nil, &ConfigurationError{Setting: objectType + ".version", Err: ErrMissingProtocolVersion}
	}

	metrics, err := newSubscriberInstruments(o.meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber instruments: %w", err)
	}

	log := o.logger.With(logger.Component("subscriber"), logger.ObjectType(objectType))

	return &Subscriber{
		objectType:     objectType,
		newRecord:      newRecord,
		version:        o.version,
		gate:           o.gate,
		requestHook:    o.requestHook,
		syncHook:       o.syncHook,
		eventFilter:    o.eventFilter,
		responseFilter: o.responseFilter,
		onEvent:        o.onEvent,
		onResponse:     o.onResponse,
		logger:         log,
		metrics:        metrics,
		task: &periodicTask{
			name:            "request " + objectType,
			interval:        o.frequency,
			overlap:         o.overlap,
			shutdownTimeout: o.shutdownTimeout,
			logger:          log,
		},
	}, nil
}

// ObjectType returns the object type this subscriber owns.
func (s *Subscriber) ObjectType() string { return s.objectType }

// Version returns the protocol version stamped on every query.
func (s *Subscriber) Version() string { return s.version }

// Frequency returns the request interval. Zero or less disables periodic requests.
func (s *Subscriber) Frequency() time.Duration { return s.task.interval }

// Register installs the subscriber as both the event handler and the query
// results handler of z.
func (s *Subscriber) Register(z Zone) {
	z.SetSubscriber(s, s.objectType, SubscribeOptions{NewRecord: s.newRecord})
	z.SetQueryResultsHandler(s, s.objectType, QueryResultsOptions{NewRecord: s.newRecord})
}

// Start runs periodic requests over a snapshot of zones until ctx is cancelled or
// Stop is called. It returns immediately when the frequency is zero or less.
func (s *Subscriber) Start(ctx context.Context, zones []Zone) error {
	return s.task.start(ctx, zones, s.requestTick)
}

// Stop stops periodic requests and waits for the running tick.
func (s *Subscriber) Stop() error {
	return s.task.stop()
}

// Run provides errgroup compatibility.
func (s *Subscriber) Run(ctx context.Context, zones []Zone) func() error {
	return s.task.run(ctx, zones, s.requestTick)
}

func (s *Subscriber) requestTick(ctx context.Context, zones []Zone) {
	s.Request(ctx, zones)
}

// Request evaluates the gate for every zone and submits a query where it allows.
// It returns the number of queries submitted successfully.
func (s *Subscriber) Request(ctx context.Context, zones []Zone) int {
	sent := 0
	for _, z := range zones {
		if z == nil {
			continue
		}
		if !s.gate(ctx, z) {
			continue
		}
		if err := s.submit(ctx, z, s.requestHook, "request"); err != nil {
			continue
		}
		sent++
	}
	s.lastTickAt.Store(time.Now().UnixNano())
	return sent
}

// Sync submits one query to z built with the sync hook. It ignores the gate and the timer.
func (s *Subscriber) Sync(ctx context.Context, z Zone) error {
	if z == nil {
		return ErrNilZone
	}
	return s.submit(ctx, z, s.syncHook, "sync")
}

// NewQuery builds a query for the subscriber's object type stamped with its version.
func (s *Subscriber) NewQuery() *Query {
	return NewQuery(s.objectType, s.version)
}

func (s *Subscriber) submit(ctx context.Context, z Zone, hook QueryHook, kind string) error {
	log := s.logger.With(logger.Zone(z.ID()), slog.String("kind", kind))

	q := s.NewQuery()
	if hook != nil {
		if err := protect(func() error { return hook(q, z) }); err != nil {
			s.queryFailures.Add(1)
			log.ErrorContext(ctx, "query hook failed, query not sent", logger.Error(err))
			return fmt.Errorf("%s query hook: %w", kind, err)
		}
	}
	q.Freeze()

	attrs := []attribute.KeyValue{attribute.String("zone", z.ID()), attribute.String("kind", kind)}
	if err := z.Query(ctx, q); err != nil {
		s.queryFailures.Add(1)
		countWith(ctx, s.metrics.queries, 1, append(attrs, attribute.String("outcome", outcomeFailure))...)
		log.ErrorContext(ctx, "failed to submit query", logger.Error(err))
		return fmt.Errorf("submit %s query to zone %s: %w", kind, z.ID(), err)
	}

	s.queries.Add(1)
	countWith(ctx, s.metrics.queries, 1, append(attrs, attribute.String("outcome", outcomeSuccess))...)
	log.InfoContext(ctx, "query submitted", slog.Any("query", q))
	return nil
}

// OnEvent handles an inbound event delivery, which may batch several records.
func (s *Subscriber) OnEvent(ctx context.Context, d EventDelivery, z Zone) {
	log := s.logger.With(logger.Zone(z.ID()), logger.MessageID(d.Info.MessageID))

	if !d.Action.Valid() {
		log.ErrorContext(ctx, "event delivery discarded", logger.Error(fmt.Errorf("%w: %d", ErrInvalidAction, d.Action)))
		return
	}

	var handled, failed, skipped int
	s.drainDelivery(ctx, d.Records, log, func(r Record) {
		ev := &ChangeEvent{Record: r, Action: d.Action}
		if s.eventFilter != nil && !s.eventFilter(ctx, ev, z) {
			skipped++
			return
		}
		if s.onEvent == nil {
			handled++
			return
		}
		if err := protect(func() error { return s.onEvent(ctx, ev, z, d.Info) }); err != nil {
			failed++
			log.WarnContext(ctx, "event handler failed", logger.Action(d.Action.String()), logger.Error(err))
			return
		}
		handled++
	}, &failed)

	s.eventsHandled.Add(int64(handled))
	s.eventsFailed.Add(int64(failed))
	s.eventsFiltered.Add(int64(skipped))
	s.countRecords(ctx, z, "event", handled, failed, skipped)

	log.InfoContext(ctx, "event delivery processed",
		logger.Action(d.Action.String()),
		logger.Succeeded(handled),
		logger.Failed(failed),
		logger.Count("filtered", skipped))
}

// OnQueryResults handles a response to a query. A delivery carrying a protocol
// error is logged and its records are never read.
func (s *Subscriber) OnQueryResults(ctx context.Context, d QueryResultsDelivery, z Zone) {
	log := s.logger.With(logger.Zone(z.ID()), logger.MessageID(d.Info.MessageID))

	if d.Err != nil {
		s.protocolErrors.Add(1)
		log.ErrorContext(ctx, "query returned protocol error",
			slog.Int("category", d.Err.Category),
			slog.Int("code", d.Err.Code),
			slog.String("desc", d.Err.Desc),
			slog.String("extended_desc", d.Err.ExtendedDesc))
		return
	}

	var handled, failed, skipped int
	s.drainDelivery(ctx, d.Records, log, func(r Record) {
		if s.responseFilter != nil && !s.responseFilter(ctx, r, z) {
			skipped++
			return
		}
		if s.onResponse == nil {
			handled++
			return
		}
		if err := protect(func() error { return s.onResponse(ctx, r, z, d.Info) }); err != nil {
			failed++
			log.WarnContext(ctx, "response handler failed", logger.Error(err))
			return
		}
		handled++
	}, &failed)

	total := s.responsesHandled.Add(int64(handled))
	s.responsesFailed.Add(int64(failed))
	s.countRecords(ctx, z, "response", handled, failed, skipped)

	log.InfoContext(ctx, "query results processed",
		logger.Succeeded(handled),
		logger.Failed(failed),
		logger.Count("filtered", skipped),
		slog.Int64("total", total))

	if d.Info.MorePackets {
		log.InfoContext(ctx, "more packets expected for this response")
	}
}

// OnQueryPending is called when a zone acknowledges a query that has no results yet.
func (s *Subscriber) OnQueryPending(ctx context.Context, info MessageInfo, z Zone) {
	s.logger.InfoContext(ctx, "query pending",
		logger.Zone(z.ID()),
		logger.MessageID(info.MessageID),
		slog.String("source", info.SourceID))
}

// drainDelivery reads every available record and passes it to handle.
// A read failure or a nil record stops the drain.
func (s *Subscriber) drainDelivery(ctx context.Context, data DataStream, log *slog.Logger, handle func(Record), failed *int) {
	if data == nil {
		return
	}
	for data.Available() {
		r, err := protectValue(func() (Record, error) { return data.Read(ctx) })
		if err != nil {
			*failed++
			log.WarnContext(ctx, "failed to read record from delivery", logger.Error(err))
			return
		}
		if r == nil {
			*failed++
			log.WarnContext(ctx, "delivery yielded nil record", logger.Error(ErrNilRecord))
			return
		}
		if r.ObjectType() != s.objectType {
			*failed++
			log.WarnContext(ctx, "record discarded",
				logger.Error(errors.Join(ErrObjectTypeMismatch, fmt.Errorf("got %q", r.ObjectType()))))
			continue
		}
		handle(r)
	}
}

func (s *Subscriber) countRecords(ctx context.Context, z Zone, kind string, handled, failed, skipped int) {
	zone := attribute.String("zone", z.ID())
	k := attribute.String("kind", kind)
	countWith(ctx, s.metrics.records, int64(handled), zone, k, attribute.String("outcome", outcomeSuccess))
	countWith(ctx, s.metrics.records, int64(failed), zone, k, attribute.String("outcome", outcomeFailure))
	countWith(ctx, s.metrics.records, int64(skipped), zone, k, attribute.String("outcome", outcomeSkipped))
}

// Stats returns a snapshot of subscriber counters.
func (s *Subscriber) Stats() SubscriberStats {
	var last time.Time
	if ns := s.lastTickAt.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}
	return SubscriberStats{
		Queries:          s.queries.Load(),
		QueryFailures:    s.queryFailures.Load(),
		EventsHandled:    s.eventsHandled.Load(),
		EventsFailed:     s.eventsFailed.Load(),
		EventsFiltered:   s.eventsFiltered.Load(),
		ResponsesHandled: s.responsesHandled.Load(),
		ResponsesFailed:  s.responsesFailed.Load(),
		ProtocolErrors:   s.protocolErrors.Load(),
		SkippedTicks:     s.task.skipped.Load(),
		IsRunning:        s.task.running(),
		LastTickAt:       last,
	}
}

// Healthcheck fails when periodic requests are enabled but not running.
func (s *Subscriber) Healthcheck(ctx context.Context) error {
	if s.task.interval > 0 && !s.task.running() {
		return fmt.Errorf("%w: subscriber %s is not running", ErrHealthcheckFailed, s.objectType)
	}
	return nil
}
