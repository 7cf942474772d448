package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrymomot/zonecast/core/agent"
	"github.com/dmitrymomot/zonecast/core/broadcast"
	"github.com/dmitrymomot/zonecast/core/logger"
)

// Transport creates memory zones on a shared hub for one agent.
type Transport struct {
	hub *Hub

	mu          sync.Mutex
	identity    agent.Identity
	initialized bool
	zones       []*Zone
}

var _ agent.Transport = (*Transport)(nil)

// NewTransport returns a transport backed by hub.
func NewTransport(hub *Hub) *Transport {
	return &Transport{hub: hub}
}

// Initialize records the agent identity.
func (t *Transport) Initialize(ctx context.Context, id agent.Identity) error {
	if t.hub == nil {
		return ErrNilHub
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.identity = id
	t.initialized = true
	t.hub.logger.InfoContext(ctx, "memory transport initialized", logger.Agent(id.ID))
	return nil
}

// NewZone creates a zone handle. The zone URL is ignored.
func (t *Transport) NewZone(_ context.Context, cfg agent.ZoneConfig) (broadcast.Zone, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		return nil, ErrNotInitialized
	}
	z, err := NewZone(t.hub, cfg.ID, t.identity.ID)
	if err != nil {
		return nil, err
	}
	t.zones = append(t.zones, z)
	return z, nil
}

// Shutdown disconnects every zone still connected with flags.
func (t *Transport) Shutdown(ctx context.Context, flags broadcast.ProvisioningFlags) error {
	t.mu.Lock()
	zones := t.zones
	t.zones = nil
	t.initialized = false
	t.mu.Unlock()

	var errs []error
	for _, z := range zones {
		if !z.Connected() {
			continue
		}
		if err := z.Disconnect(ctx, flags); err != nil {
			errs = append(errs, fmt.Errorf("disconnect %s: %w", z.ID(), err))
		}
	}
	return errors.Join(errs...)
}
