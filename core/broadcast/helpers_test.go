package broadcast_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrymomot/zonecast/core/broadcast"
)

const studentType = "StudentPersonal"

type testRecord struct {
	typ    string
	id     string
	fields map[string]string
}

func newRecord(id string, fields ...string) *testRecord {
	r := &testRecord{typ: studentType, id: id, fields: map[string]string{"RefId": id}}
	for i := 0; i+1 < len(fields); i += 2 {
		r.fields[fields[i]] = fields[i+1]
	}
	return r
}

func newTestRecord() broadcast.TypedRecord {
	return &testRecord{typ: studentType, fields: map[string]string{}}
}

func (r *testRecord) ObjectType() string { return r.typ }

func (r *testRecord) MarshalText() ([]byte, error) {
	return []byte(r.typ + ":" + r.id), nil
}

func (r *testRecord) UnmarshalText(b []byte) error {
	typ, id, ok := strings.Cut(string(b), ":")
	if !ok {
		return errors.New("malformed record")
	}
	r.typ, r.id = typ, id
	r.fields = map[string]string{"RefId": id}
	return nil
}

func (r *testRecord) Field(path string) (string, bool) {
	v, ok := r.fields[path]
	return v, ok
}

// fakeZone records every call made by the engines.
type fakeZone struct {
	mu         sync.Mutex
	id         string
	connected  bool
	reportErr  func(r broadcast.Record) error
	queryErr   error
	reported   []broadcast.ChangeEvent
	queries    []*broadcast.Query
	publisher  broadcast.PublishHandler
	subscriber broadcast.EventHandler
	results    broadcast.QueryResultsHandler
}

func newFakeZone(id string) *fakeZone {
	return &fakeZone{id: id, connected: true}
}

func (z *fakeZone) ID() string { return z.id }

func (z *fakeZone) Connect(context.Context, broadcast.ProvisioningFlags) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.connected = true
	return nil
}

func (z *fakeZone) Disconnect(context.Context, broadcast.ProvisioningFlags) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.connected = false
	return nil
}

func (z *fakeZone) Connected() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.connected
}

func (z *fakeZone) ReportEvent(_ context.Context, r broadcast.Record, a broadcast.EventAction) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.reportErr != nil {
		if err := z.reportErr(r); err != nil {
			return err
		}
	}
	z.reported = append(z.reported, broadcast.ChangeEvent{Record: r, Action: a})
	return nil
}

func (z *fakeZone) Query(_ context.Context, q *broadcast.Query) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.queryErr != nil {
		return z.queryErr
	}
	z.queries = append(z.queries, q)
	return nil
}

func (z *fakeZone) SetPublisher(h broadcast.PublishHandler, _ string, _ broadcast.PublishOptions) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.publisher = h
}

func (z *fakeZone) SetSubscriber(h broadcast.EventHandler, _ string, _ broadcast.SubscribeOptions) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.subscriber = h
}

func (z *fakeZone) SetQueryResultsHandler(h broadcast.QueryResultsHandler, _ string, _ broadcast.QueryResultsOptions) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.results = h
}

func (z *fakeZone) Reported() []broadcast.ChangeEvent {
	z.mu.Lock()
	defer z.mu.Unlock()
	out := make([]broadcast.ChangeEvent, len(z.reported))
	copy(out, z.reported)
	return out
}

func (z *fakeZone) Queries() []*broadcast.Query {
	z.mu.Lock()
	defer z.mu.Unlock()
	out := make([]*broadcast.Query, len(z.queries))
	copy(out, z.queries)
	return out
}

// scriptedSource is an EventSource driven by a list of steps.
// Each step is an event, an error, or nil.
type scriptedSource struct {
	mu        sync.Mutex
	steps     []any
	pos       int
	hasNextAt map[int]error
	beforeErr error
	afterErr  error
	panicAt   int

	hasNextCalls int
	nextCalls    int
	beforeCalls  int
	afterCalls   int
}

func newScriptedSource(steps ...any) *scriptedSource {
	return &scriptedSource{steps: steps, hasNextAt: map[int]error{}, panicAt: -1}
}

func (s *scriptedSource) BeforeEvent(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeCalls++
	return s.beforeErr
}

func (s *scriptedSource) HasNextEvent(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasNextCalls++
	if err := s.hasNextAt[s.pos]; err != nil {
		return false, err
	}
	return s.pos < len(s.steps), nil
}

func (s *scriptedSource) NextEvent(context.Context) (*broadcast.ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCalls++
	if s.pos >= len(s.steps) {
		return nil, fmt.Errorf("read past end at %d", s.pos)
	}
	i := s.pos
	s.pos++
	if i == s.panicAt {
		panic("corrupt row")
	}
	switch v := s.steps[i].(type) {
	case broadcast.ChangeEvent:
		return &v, nil
	case error:
		return nil, v
	default:
		return nil, nil
	}
}

func (s *scriptedSource) AfterEvent(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterCalls++
	return s.afterErr
}

func (s *scriptedSource) counts() (hasNext, next, before, after int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasNextCalls, s.nextCalls, s.beforeCalls, s.afterCalls
}

func eventsOnly(src broadcast.EventSource) broadcast.SourceFactory {
	return broadcast.SourceFuncs{
		Events: func(context.Context, broadcast.Zone) (broadcast.EventSource, error) {
			return src, nil
		},
	}
}

func add(r broadcast.Record) broadcast.ChangeEvent {
	return broadcast.ChangeEvent{Record: r, Action: broadcast.ActionAdd}
}

func change(r broadcast.Record) broadcast.ChangeEvent {
	return broadcast.ChangeEvent{Record: r, Action: broadcast.ActionChange}
}
