// Package broadcast is the publish/subscribe engine that moves typed records
// between record sources and remote message zones.
//
// A Publisher owns one object type. On a timer it drains a fresh EventSource for
// every connected zone and reports each change event to that zone. When a zone
// forwards a query from a remote peer, the publisher drains a ResponseSource and
// streams matching records back.
//
// A Subscriber owns one object type as well. On a timer it asks a gate whether to
// query each zone, and it handles inbound events and query results by calling the
// handlers it was configured with.
//
// # Sources
//
// Sources implement a four-step contract per item:
//
//	BeforeEvent -> HasNextEvent -> NextEvent -> AfterEvent
//
// The before and after hooks run around every step, also when NextEvent fails.
// An item counts as a success only when every step for it succeeded. A failure
// in HasNextEvent ends the pass for that zone. A nil event returned after
// HasNextEvent reported true counts as one failure and ends the pass. Any other
// failure is counted against its item and the pass moves on.
//
// Sources keep their own cursors. Cursor implements both iteration modes:
//
//	src := broadcast.Records(broadcast.ModeRepeat, broadcast.ActionChange, r1, r2)
//
// ModeOnce exhausts the sequence for good. ModeRepeat ends every pass at the end
// of the sequence and starts over on the next pass.
//
// # Publishing
//
//	pub, err := broadcast.NewPublisher("StudentPersonal", broadcast.SourceFuncs{
//		Events: func(ctx context.Context, z broadcast.Zone) (broadcast.EventSource, error) {
//			return loadChanges(ctx)
//		},
//		Responses: func(ctx context.Context, q *broadcast.Query, z broadcast.Zone) (broadcast.ResponseSource, error) {
//			return loadAll(ctx)
//		},
//	}, broadcast.WithEventFrequency(30*time.Second))
//
//	pub.Register(zone)
//	// connect zones, then:
//	g.Go(pub.Run(ctx, zones))
//
// Responses pass through a post-filter: a record that does not match the inbound
// query is dropped even if the source did not filter it.
//
// # Subscribing
//
//	sub, err := broadcast.NewSubscriber("StudentPersonal", newStudent,
//		broadcast.WithProtocolVersion("2.0"),
//		broadcast.WithRequestFrequency(time.Minute),
//		broadcast.WithRequestGate(broadcast.MaxRequests(2)),
//		broadcast.WithEventHandler(func(ctx context.Context, ev *broadcast.ChangeEvent, z broadcast.Zone, info broadcast.MessageInfo) error {
//			return store(ctx, ev)
//		}),
//	)
//
// Every query carries the subscriber's object type and protocol version before
// any hook adds conditions. The query is frozen before it is submitted.
// A query results delivery that carries a ProtocolError is logged and its
// records are never read.
//
// # Scheduling
//
// Start blocks until the context is cancelled or Stop is called; Run wraps both
// for errgroup. The zone list is copied when the timer starts. With a frequency
// of zero or less Start returns at once and no pass ever runs. By default a tick
// that fires while the previous pass of the same engine is still running is
// skipped (OverlapSkip); OverlapAllow lets passes overlap.
//
// # Errors
//
// ConfigurationError, IteratorError, BroadcastError and ConnectionError wrap their
// cause and work with errors.As. ProtocolError is data received from a zone.
// Per-item failures never stop a pass; they are counted and logged.
package broadcast
