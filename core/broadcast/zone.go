package broadcast

import (
	"context"
	"strings"
	"sync"
)

// ProvisioningFlags tell a zone which provisioning step to perform on connect or disconnect.
type ProvisioningFlags uint8

const (
	FlagNone     ProvisioningFlags = 0
	FlagRegister ProvisioningFlags = 1 << iota
	FlagUnregister
	FlagUnprovide
	FlagUnsubscribe
)

// Has reports whether all bits of other are set.
func (f ProvisioningFlags) Has(other ProvisioningFlags) bool {
	return other != 0 && f&other == other
}

func (f ProvisioningFlags) String() string {
	if f == FlagNone {
		return "none"
	}
	var parts []string
	for _, v := range []struct {
		flag ProvisioningFlags
		name string
	}{
		{FlagRegister, "register"},
		{FlagUnregister, "unregister"},
		{FlagUnprovide, "unprovide"},
		{FlagUnsubscribe, "unsubscribe"},
	} {
		if f.Has(v.flag) {
			parts = append(parts, v.name)
		}
	}
	return strings.Join(parts, "|")
}

// Zone is a connection to a remote message bus.
// Handlers must be set before Connect; deliveries arrive on goroutines owned by the zone.
type Zone interface {
	ID() string
	Connect(ctx context.Context, flags ProvisioningFlags) error
	Disconnect(ctx context.Context, flags ProvisioningFlags) error
	Connected() bool
	ReportEvent(ctx context.Context, record Record, action EventAction) error
	Query(ctx context.Context, q *Query) error
	SetPublisher(h PublishHandler, objectType string, opts PublishOptions)
	SetSubscriber(h EventHandler, objectType string, opts SubscribeOptions)
	SetQueryResultsHandler(h QueryResultsHandler, objectType string, opts QueryResultsOptions)
}

// PublishOptions are passed to a zone together with a publish handler.
type PublishOptions struct {
	// Versions the publisher can answer queries for. Empty means any.
	Versions []string
}

// SubscribeOptions are passed to a zone together with an event handler.
type SubscribeOptions struct {
	// NewRecord decodes inbound payloads of the subscribed object type.
	NewRecord RecordFactory
}

// QueryResultsOptions are passed to a zone together with a query results handler.
type QueryResultsOptions struct {
	NewRecord RecordFactory
}

// MessageInfo describes the message a delivery came from.
type MessageInfo struct {
	MessageID string
	SourceID  string
	// MorePackets is set when the response continues in a later delivery.
	MorePackets bool
}

// DataStream yields the records carried by one delivery.
type DataStream interface {
	Available() bool
	Read(ctx context.Context) (Record, error)
}

// OutputStream receives the records of a query response.
type OutputStream interface {
	Write(ctx context.Context, r Record) error
}

// EventDelivery is one inbound event message. It may batch several records.
type EventDelivery struct {
	Action  EventAction
	Records DataStream
	Info    MessageInfo
}

// QueryResultsDelivery is one inbound response message. Err and Records are
// mutually exclusive: when Err is set the records must not be read.
type QueryResultsDelivery struct {
	Records DataStream
	Err     *ProtocolError
	Info    MessageInfo
}

// PublishHandler answers inbound queries.
type PublishHandler interface {
	OnRequest(ctx context.Context, out OutputStream, q *Query, z Zone, info MessageInfo)
}

// EventHandler receives inbound event deliveries.
type EventHandler interface {
	OnEvent(ctx context.Context, d EventDelivery, z Zone)
}

// QueryResultsHandler receives responses to queries this agent submitted.
type QueryResultsHandler interface {
	OnQueryResults(ctx context.Context, d QueryResultsDelivery, z Zone)
	OnQueryPending(ctx context.Context, info MessageInfo, z Zone)
}

// RecordStream is a DataStream over an in-memory slice.
type RecordStream struct {
	mu      sync.Mutex
	records []Record
	pos     int
}

// NewRecordStream returns a stream over records.
func NewRecordStream(records ...Record) *RecordStream {
	return &RecordStream{records: records}
}

func (s *RecordStream) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos < len(s.records)
}

func (s *RecordStream) Read(context.Context) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.records) {
		return nil, nil
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

// RecordBuffer is an OutputStream that collects records in memory.
type RecordBuffer struct {
	mu      sync.Mutex
	records []Record
}

func (b *RecordBuffer) Write(_ context.Context, r Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, r)
	return nil
}

// Records returns a copy of the collected records.
func (b *RecordBuffer) Records() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// Len returns the number of collected records.
func (b *RecordBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}
