package agent_test

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrymomot/zonecast/core/agent"
	"github.com/dmitrymomot/zonecast/core/broadcast"
)

// fakeZone tracks connection state and the flags it was called with.
type fakeZone struct {
	mu          sync.Mutex
	id          string
	connectErr  error
	connected   bool
	connects    []broadcast.ProvisioningFlags
	disconnects []broadcast.ProvisioningFlags
	publishers  []string
	subscribers []string
}

func (z *fakeZone) ID() string { return z.id }

func (z *fakeZone) Connect(_ context.Context, flags broadcast.ProvisioningFlags) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.connects = append(z.connects, flags)
	if z.connectErr != nil {
		return z.connectErr
	}
	z.connected = true
	return nil
}

func (z *fakeZone) Disconnect(_ context.Context, flags broadcast.ProvisioningFlags) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.disconnects = append(z.disconnects, flags)
	z.connected = false
	return nil
}

func (z *fakeZone) Connected() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.connected
}

func (z *fakeZone) ReportEvent(context.Context, broadcast.Record, broadcast.EventAction) error {
	return nil
}

func (z *fakeZone) Query(context.Context, *broadcast.Query) error { return nil }

func (z *fakeZone) SetPublisher(_ broadcast.PublishHandler, objectType string, _ broadcast.PublishOptions) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.publishers = append(z.publishers, objectType)
}

func (z *fakeZone) SetSubscriber(_ broadcast.EventHandler, objectType string, _ broadcast.SubscribeOptions) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.subscribers = append(z.subscribers, objectType)
}

func (z *fakeZone) SetQueryResultsHandler(broadcast.QueryResultsHandler, string, broadcast.QueryResultsOptions) {
}

func (z *fakeZone) Disconnects() []broadcast.ProvisioningFlags {
	z.mu.Lock()
	defer z.mu.Unlock()
	return append([]broadcast.ProvisioningFlags(nil), z.disconnects...)
}

func (z *fakeZone) Publishers() []string {
	z.mu.Lock()
	defer z.mu.Unlock()
	return append([]string(nil), z.publishers...)
}

func (z *fakeZone) Subscribers() []string {
	z.mu.Lock()
	defer z.mu.Unlock()
	return append([]string(nil), z.subscribers...)
}

// fakeTransport hands out fakeZones and records its lifecycle.
type fakeTransport struct {
	mu          sync.Mutex
	initErr     error
	failConnect map[string]error
	zones       map[string]*fakeZone
	identity    agent.Identity
	initialized int
	shutdowns   []broadcast.ProvisioningFlags
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		failConnect: make(map[string]error),
		zones:       make(map[string]*fakeZone),
	}
}

func (t *fakeTransport) Initialize(_ context.Context, id agent.Identity) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.initErr != nil {
		return t.initErr
	}
	t.identity = id
	t.initialized++
	return nil
}

func (t *fakeTransport) NewZone(_ context.Context, cfg agent.ZoneConfig) (broadcast.Zone, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cfg.URL == "invalid" {
		return nil, errors.New("bad zone url")
	}
	z := &fakeZone{id: cfg.ID, connectErr: t.failConnect[cfg.ID]}
	t.zones[cfg.ID] = z
	return z, nil
}

func (t *fakeTransport) Shutdown(_ context.Context, flags broadcast.ProvisioningFlags) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shutdowns = append(t.shutdowns, flags)
	return nil
}

func (t *fakeTransport) zone(id string) *fakeZone {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.zones[id]
}

func (t *fakeTransport) Shutdowns() []broadcast.ProvisioningFlags {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]broadcast.ProvisioningFlags(nil), t.shutdowns...)
}
