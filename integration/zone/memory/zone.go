package memory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/zonecast/core/broadcast"
	"github.com/dmitrymomot/zonecast/core/logger"
)

// Zone is one agent's handle on a hub zone.
type Zone struct {
	hub     *Hub
	id      string
	agentID string
	logger  *slog.Logger

	mu          sync.RWMutex
	connected   bool
	publishers  map[string]publisherEntry
	subscribers map[string]subscriberEntry
	results     map[string]resultsEntry
}

type publisherEntry struct {
	handler broadcast.PublishHandler
	opts    broadcast.PublishOptions
}

type subscriberEntry struct {
	handler broadcast.EventHandler
	opts    broadcast.SubscribeOptions
}

type resultsEntry struct {
	handler broadcast.QueryResultsHandler
	opts    broadcast.QueryResultsOptions
}

var _ broadcast.Zone = (*Zone)(nil)

// NewZone creates a handle on zoneID for agentID. Most callers get zones from a Transport.
func NewZone(hub *Hub, zoneID, agentID string) (*Zone, error) {
	if hub == nil {
		return nil, ErrNilHub
	}
	if zoneID == "" {
		return nil, ErrEmptyZoneID
	}
	return &Zone{
		hub:         hub,
		id:          zoneID,
		agentID:     agentID,
		logger:      hub.logger.With(logger.Component("memory_zone"), logger.Zone(zoneID), logger.Agent(agentID)),
		publishers:  make(map[string]publisherEntry),
		subscribers: make(map[string]subscriberEntry),
		results:     make(map[string]resultsEntry),
	}, nil
}

func (z *Zone) ID() string { return z.id }

// Connect joins the hub zone. FlagRegister also records the agent as registered.
func (z *Zone) Connect(ctx context.Context, flags broadcast.ProvisioningFlags) error {
	z.mu.Lock()
	z.connected = true
	z.mu.Unlock()

	z.hub.join(z, flags.Has(broadcast.FlagRegister))
	z.logger.DebugContext(ctx, "zone connected", slog.String("flags", flags.String()))
	return nil
}

// Disconnect leaves the hub zone. FlagUnprovide drops the publish handlers,
// FlagUnsubscribe drops the event and results handlers and FlagUnregister removes
// the agent registration.
func (z *Zone) Disconnect(ctx context.Context, flags broadcast.ProvisioningFlags) error {
	z.hub.leave(z, flags.Has(broadcast.FlagUnregister))

	z.mu.Lock()
	z.connected = false
	if flags.Has(broadcast.FlagUnprovide) {
		clear(z.publishers)
	}
	if flags.Has(broadcast.FlagUnsubscribe) {
		clear(z.subscribers)
		clear(z.results)
	}
	z.mu.Unlock()

	z.logger.DebugContext(ctx, "zone disconnected", slog.String("flags", flags.String()))
	return nil
}

func (z *Zone) Connected() bool {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.connected
}

func (z *Zone) SetPublisher(h broadcast.PublishHandler, objectType string, opts broadcast.PublishOptions) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if h == nil {
		delete(z.publishers, objectType)
		return
	}
	z.publishers[objectType] = publisherEntry{handler: h, opts: opts}
}

func (z *Zone) SetSubscriber(h broadcast.EventHandler, objectType string, opts broadcast.SubscribeOptions) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if h == nil {
		delete(z.subscribers, objectType)
		return
	}
	z.subscribers[objectType] = subscriberEntry{handler: h, opts: opts}
}

func (z *Zone) SetQueryResultsHandler(h broadcast.QueryResultsHandler, objectType string, opts broadcast.QueryResultsOptions) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if h == nil {
		delete(z.results, objectType)
		return
	}
	z.results[objectType] = resultsEntry{handler: h, opts: opts}
}

// ReportEvent sends r to every other connected handle subscribed to its object type.
// Delivery is asynchronous; Hub.Wait blocks until it is done.
func (z *Zone) ReportEvent(ctx context.Context, r broadcast.Record, action broadcast.EventAction) error {
	if r == nil {
		return broadcast.ErrNilRecord
	}
	if !action.Valid() {
		return fmt.Errorf("%w: %d", broadcast.ErrInvalidAction, action)
	}
	if !z.Connected() {
		return fmt.Errorf("%w: %s", ErrNotConnected, z.id)
	}

	payload, err := r.MarshalText()
	if err != nil {
		return fmt.Errorf("encode %s record: %w", r.ObjectType(), err)
	}

	objectType := r.ObjectType()
	info := broadcast.MessageInfo{MessageID: uuid.NewString(), SourceID: z.agentID}
	dctx := context.WithoutCancel(ctx)

	for _, peer := range z.hub.peers(z) {
		entry, ok := peer.subscriber(objectType)
		if !ok {
			continue
		}
		rec, err := decode(payload, r, entry.opts.NewRecord)
		if err != nil {
			peer.logger.WarnContext(ctx, "dropping undecodable event",
				logger.ObjectType(objectType), logger.MessageID(info.MessageID), logger.Error(err))
			continue
		}
		z.hub.dispatch(func() {
			entry.handler.OnEvent(dctx, broadcast.EventDelivery{
				Action:  action,
				Records: broadcast.NewRecordStream(rec),
				Info:    info,
			}, peer)
		})
	}
	return nil
}

// Query routes q to every other connected handle providing its object type and
// delivers the answers to this handle's results handler.
func (z *Zone) Query(ctx context.Context, q *broadcast.Query) error {
	if q == nil {
		return ErrNilQuery
	}
	if !z.Connected() {
		return fmt.Errorf("%w: %s", ErrNotConnected, z.id)
	}
	results, ok := z.resultsHandler(q.ObjectType())
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoResultsHandler, q.ObjectType())
	}

	info := broadcast.MessageInfo{MessageID: uuid.NewString(), SourceID: z.agentID}
	dctx := context.WithoutCancel(ctx)

	var (
		providers  []*Zone
		versionMis bool
	)
	for _, peer := range z.hub.peers(z) {
		entry, ok := peer.publisher(q.ObjectType())
		if !ok {
			continue
		}
		if !versionsMatch(entry.opts.Versions, q.Versions()) {
			versionMis = true
			continue
		}
		providers = append(providers, peer)
	}

	z.logger.DebugContext(ctx, "query routed",
		logger.ObjectType(q.ObjectType()),
		logger.MessageID(info.MessageID),
		logger.Count("providers", len(providers)))

	z.hub.dispatch(func() {
		results.handler.OnQueryPending(dctx, info, z)

		if len(providers) == 0 {
			perr := &broadcast.ProtocolError{
				Category: CategoryProvisioning,
				Code:     CodeNoProvider,
				Desc:     "no provider",
				ExtendedDesc: fmt.Sprintf("no provider for %s in zone %s",
					q.ObjectType(), z.id),
			}
			if versionMis {
				perr.Category = CategoryRequest
				perr.Code = CodeUnsupportedVersion
				perr.Desc = "unsupported version"
				perr.ExtendedDesc = fmt.Sprintf("no provider for %s supports %v", q.ObjectType(), q.Versions())
			}
			results.handler.OnQueryResults(dctx, broadcast.QueryResultsDelivery{Err: perr, Info: info}, z)
			return
		}

		for _, peer := range providers {
			z.answer(dctx, peer, q, info, results)
		}
	})
	return nil
}

// answer asks one provider and delivers its records in packets.
func (z *Zone) answer(ctx context.Context, peer *Zone, q *broadcast.Query, info broadcast.MessageInfo, results resultsEntry) {
	entry, ok := peer.publisher(q.ObjectType())
	if !ok {
		return
	}

	var buf broadcast.RecordBuffer
	entry.handler.OnRequest(ctx, &buf, q, peer, info)

	reply := broadcast.MessageInfo{MessageID: info.MessageID, SourceID: peer.agentID}
	records := make([]broadcast.Record, 0, buf.Len())
	for _, r := range buf.Records() {
		payload, err := r.MarshalText()
		if err == nil {
			var rec broadcast.Record
			if rec, err = decode(payload, r, results.opts.NewRecord); err == nil {
				records = append(records, rec)
				continue
			}
		}
		results.handler.OnQueryResults(ctx, broadcast.QueryResultsDelivery{
			Err: &broadcast.ProtocolError{
				Category:     CategoryRequest,
				Code:         CodeEncoding,
				Desc:         "response could not be encoded",
				ExtendedDesc: err.Error(),
			},
			Info: reply,
		}, z)
		return
	}

	packets := split(records, z.hub.packetSize)
	for i, packet := range packets {
		pinfo := reply
		pinfo.MorePackets = i < len(packets)-1
		results.handler.OnQueryResults(ctx, broadcast.QueryResultsDelivery{
			Records: broadcast.NewRecordStream(packet...),
			Info:    pinfo,
		}, z)
	}
}

func (z *Zone) publisher(objectType string) (publisherEntry, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	e, ok := z.publishers[objectType]
	return e, ok && z.connected
}

func (z *Zone) subscriber(objectType string) (subscriberEntry, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	e, ok := z.subscribers[objectType]
	return e, ok && z.connected
}

func (z *Zone) resultsHandler(objectType string) (resultsEntry, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	e, ok := z.results[objectType]
	return e, ok
}

// decode turns payload back into a record with factory. Without a factory the
// original record is passed through.
func decode(payload []byte, original broadcast.Record, factory broadcast.RecordFactory) (broadcast.Record, error) {
	if factory == nil {
		return original, nil
	}
	rec := factory()
	if err := rec.UnmarshalText(payload); err != nil {
		return nil, err
	}
	return rec, nil
}

func versionsMatch(supported, requested []string) bool {
	if len(supported) == 0 || len(requested) == 0 {
		return true
	}
	for _, v := range requested {
		if slices.Contains(supported, v) {
			return true
		}
	}
	return false
}

// split always returns at least one packet so empty answers are still delivered.
func split(records []broadcast.Record, size int) [][]broadcast.Record {
	if size <= 0 || len(records) <= size {
		return [][]broadcast.Record{records}
	}
	return slices.Collect(slices.Chunk(records, size))
}
