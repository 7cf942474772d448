package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/zonecast/core/broadcast"
	"github.com/dmitrymomot/zonecast/core/logger"
)

// Zone is a zone carried over Redis pub/sub. Each object type has its own event
// and request channel; answers go to a per-agent response channel.
type Zone struct {
	client     redis.UniversalClient
	id         string
	agentID    string
	packetSize int
	logger     *slog.Logger

	mu          sync.RWMutex
	pubsub      *redis.PubSub
	done        chan struct{}
	wg          sync.WaitGroup
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

func newZone(client redis.UniversalClient, zoneID, agentID string, packetSize int, log *slog.Logger) *Zone {
	return &Zone{
		client:      client,
		id:          zoneID,
		agentID:     agentID,
		packetSize:  packetSize,
		logger:      log.With(logger.Component("redis_zone"), logger.Zone(zoneID)),
		publishers:  make(map[string]publisherEntry),
		subscribers: make(map[string]subscriberEntry),
		results:     make(map[string]resultsEntry),
	}
}

func (z *Zone) ID() string { return z.id }

// Connect subscribes to the channels of every handler set so far and starts the
// receive loop. FlagRegister adds the agent to the zone's agent set.
func (z *Zone) Connect(ctx context.Context, flags broadcast.ProvisioningFlags) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.pubsub != nil {
		return nil
	}

	if flags.Has(broadcast.FlagRegister) {
		if err := z.client.SAdd(ctx, agentsKey(z.id), z.agentID).Err(); err != nil {
			return fmt.Errorf("register agent in zone %s: %w", z.id, err)
		}
	}

	channels := z.channelsLocked()
	ps := z.client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("subscribe zone %s: %w", z.id, err)
	}

	z.pubsub = ps
	z.done = make(chan struct{})
	z.wg.Add(1)
	go z.receive(ps.Channel(), z.done)

	z.logger.InfoContext(ctx, "zone connected", slog.String("flags", flags.String()), logger.Count("channels", len(channels)))
	return nil
}

// Disconnect stops the receive loop. FlagUnprovide and FlagUnsubscribe drop the
// matching handlers and FlagUnregister removes the agent from the zone's agent set.
func (z *Zone) Disconnect(ctx context.Context, flags broadcast.ProvisioningFlags) error {
	z.mu.Lock()
	ps, done := z.pubsub, z.done
	z.pubsub, z.done = nil, nil
	if flags.Has(broadcast.FlagUnprovide) {
		clear(z.publishers)
	}
	if flags.Has(broadcast.FlagUnsubscribe) {
		clear(z.subscribers)
		clear(z.results)
	}
	z.mu.Unlock()

	var err error
	if ps != nil {
		close(done)
		err = ps.Close()
		z.wg.Wait()
	}
	if flags.Has(broadcast.FlagUnregister) {
		if rerr := z.client.SRem(ctx, agentsKey(z.id), z.agentID).Err(); rerr != nil && err == nil {
			err = fmt.Errorf("unregister agent from zone %s: %w", z.id, rerr)
		}
	}

	z.logger.InfoContext(ctx, "zone disconnected", slog.String("flags", flags.String()), logger.Error(err))
	return err
}

func (z *Zone) Connected() bool {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.pubsub != nil
}

func (z *Zone) SetPublisher(h broadcast.PublishHandler, objectType string, opts broadcast.PublishOptions) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if h == nil {
		delete(z.publishers, objectType)
		return
	}
	z.publishers[objectType] = publisherEntry{handler: h, opts: opts}
	z.subscribeLocked(requestChannel(z.id, objectType))
}

func (z *Zone) SetSubscriber(h broadcast.EventHandler, objectType string, opts broadcast.SubscribeOptions) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if h == nil {
		delete(z.subscribers, objectType)
		return
	}
	z.subscribers[objectType] = subscriberEntry{handler: h, opts: opts}
	z.subscribeLocked(eventChannel(z.id, objectType))
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

// subscribeLocked adds a channel to a live subscription. Before Connect the
// channel is picked up by channelsLocked.
func (z *Zone) subscribeLocked(channel string) {
	if z.pubsub == nil {
		return
	}
	if err := z.pubsub.Subscribe(context.Background(), channel); err != nil {
		z.logger.Warn("subscribe failed", slog.String("channel", channel), logger.Error(err))
	}
}

func (z *Zone) channelsLocked() []string {
	channels := []string{responseChannel(z.id, z.agentID)}
	for objectType := range z.publishers {
		channels = append(channels, requestChannel(z.id, objectType))
	}
	for objectType := range z.subscribers {
		channels = append(channels, eventChannel(z.id, objectType))
	}
	return channels
}

// ReportEvent publishes r on the event channel of its object type.
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

	records, err := encodeRecords(r)
	if err != nil {
		return err
	}
	return z.publish(ctx, eventChannel(z.id, r.ObjectType()), envelope{
		ID:         uuid.NewString(),
		Source:     z.agentID,
		Kind:       kindEvent,
		ObjectType: r.ObjectType(),
		Action:     action.String(),
		Records:    records,
	})
}

// Query publishes q on the request channel of its object type. When nobody
// listens the results handler receives a no provider protocol error.
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

	env := envelope{
		ID:         uuid.NewString(),
		Source:     z.agentID,
		Kind:       kindRequest,
		ObjectType: q.ObjectType(),
		Query:      q,
		ReplyTo:    responseChannel(z.id, z.agentID),
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode query: %w", err)
	}
	receivers, err := z.client.Publish(ctx, requestChannel(z.id, q.ObjectType()), body).Result()
	if err != nil {
		return fmt.Errorf("publish query: %w", err)
	}

	info := broadcast.MessageInfo{MessageID: env.ID, SourceID: z.agentID}
	results.handler.OnQueryPending(ctx, info, z)
	if receivers == 0 {
		results.handler.OnQueryResults(ctx, broadcast.QueryResultsDelivery{
			Err: &broadcast.ProtocolError{
				Category:     CategoryProvisioning,
				Code:         CodeNoProvider,
				Desc:         "no provider",
				ExtendedDesc: fmt.Sprintf("no provider for %s in zone %s", q.ObjectType(), z.id),
			},
			Info: info,
		}, z)
	}
	return nil
}

func (z *Zone) publish(ctx context.Context, channel string, env envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", env.Kind, err)
	}
	if err := z.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s message: %w", env.Kind, err)
	}
	return nil
}

func (z *Zone) receive(messages <-chan *redis.Message, done <-chan struct{}) {
	defer z.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			z.handle(ctx, msg.Payload)
		}
	}
}

func (z *Zone) handle(ctx context.Context, payload string) {
	env, err := decodeEnvelope(payload)
	if err != nil {
		z.logger.WarnContext(ctx, "dropping message", logger.Error(err))
		return
	}
	info := broadcast.MessageInfo{MessageID: env.ID, SourceID: env.Source, MorePackets: env.MorePackets}

	switch env.Kind {
	case kindEvent:
		if env.Source == z.agentID {
			return
		}
		entry, ok := z.subscriber(env.ObjectType)
		if !ok {
			return
		}
		action, err := broadcast.ParseEventAction(env.Action)
		if err != nil {
			z.logger.WarnContext(ctx, "dropping event", logger.MessageID(env.ID), logger.Error(err))
			return
		}
		entry.handler.OnEvent(ctx, broadcast.EventDelivery{
			Action:  action,
			Records: &payloadStream{objectType: env.ObjectType, payloads: env.Records, factory: entry.opts.NewRecord},
			Info:    info,
		}, z)

	case kindRequest:
		entry, ok := z.publisher(env.ObjectType)
		if !ok {
			return
		}
		z.answer(ctx, env, entry, info)

	case kindResponse:
		entry, ok := z.resultsHandler(env.ObjectType)
		if !ok {
			return
		}
		d := broadcast.QueryResultsDelivery{Err: env.Error.toBroadcast(), Info: info}
		if d.Err == nil {
			d.Records = &payloadStream{objectType: env.ObjectType, payloads: env.Records, factory: entry.opts.NewRecord}
		}
		entry.handler.OnQueryResults(ctx, d, z)
	}
}

// answer runs the publish handler for one request and sends the records back in packets.
func (z *Zone) answer(ctx context.Context, req *envelope, entry publisherEntry, info broadcast.MessageInfo) {
	reply := envelope{
		ID:         req.ID,
		Source:     z.agentID,
		Kind:       kindResponse,
		ObjectType: req.ObjectType,
	}

	if !versionsMatch(entry.opts.Versions, req.Query.Versions()) {
		reply.Error = &protocolError{
			Category:     CategoryRequest,
			Code:         CodeUnsupportedVersion,
			Desc:         "unsupported version",
			ExtendedDesc: fmt.Sprintf("%s supports %v", req.ObjectType, entry.opts.Versions),
		}
		z.reply(ctx, req.ReplyTo, reply)
		return
	}

	var buf broadcast.RecordBuffer
	entry.handler.OnRequest(ctx, &buf, req.Query, z, info)

	records, err := encodeRecords(buf.Records()...)
	if err != nil {
		reply.Error = &protocolError{
			Category:     CategoryRequest,
			Code:         CodeEncoding,
			Desc:         "response could not be encoded",
			ExtendedDesc: err.Error(),
		}
		z.reply(ctx, req.ReplyTo, reply)
		return
	}

	packets := split(records, z.packetSize)
	for i, packet := range packets {
		p := reply
		p.Records = packet
		p.MorePackets = i < len(packets)-1
		z.reply(ctx, req.ReplyTo, p)
	}
}

func (z *Zone) reply(ctx context.Context, channel string, env envelope) {
	if err := z.publish(ctx, channel, env); err != nil {
		z.logger.WarnContext(ctx, "response not sent", logger.MessageID(env.ID), logger.Error(err))
	}
}

func (z *Zone) publisher(objectType string) (publisherEntry, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	e, ok := z.publishers[objectType]
	return e, ok
}

func (z *Zone) subscriber(objectType string) (subscriberEntry, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	e, ok := z.subscribers[objectType]
	return e, ok
}

func (z *Zone) resultsHandler(objectType string) (resultsEntry, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	e, ok := z.results[objectType]
	return e, ok
}
