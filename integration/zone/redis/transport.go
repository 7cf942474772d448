package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/zonecast/core/agent"
	"github.com/dmitrymomot/zonecast/core/broadcast"
	"github.com/dmitrymomot/zonecast/core/logger"
)

// Transport creates Redis zones for one agent over a shared client.
type Transport struct {
	client     redis.UniversalClient
	packetSize int
	logger     *slog.Logger

	mu          sync.Mutex
	identity    agent.Identity
	initialized bool
	zones       []*Zone
}

var _ agent.Transport = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport)

// WithPacketSize splits query responses into messages of at most n records.
func WithPacketSize(n int) Option {
	return func(t *Transport) {
		t.packetSize = n
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTransport returns a transport using client.
func NewTransport(client redis.UniversalClient, opts ...Option) *Transport {
	t := &Transport{
		client: client,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Initialize pings Redis and records the agent identity.
func (t *Transport) Initialize(ctx context.Context, id agent.Identity) error {
	if t.client == nil {
		return ErrNilClient
	}
	if err := t.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis transport: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.identity = id
	t.initialized = true
	t.logger.InfoContext(ctx, "redis transport initialized", logger.Agent(id.ID))
	return nil
}

// NewZone creates a zone. The zone URL is ignored; all zones share the client.
func (t *Transport) NewZone(_ context.Context, cfg agent.ZoneConfig) (broadcast.Zone, error) {
	if cfg.ID == "" {
		return nil, ErrEmptyZoneID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		return nil, ErrNotInitialized
	}
	z := newZone(t.client, cfg.ID, t.identity.ID, t.packetSize, t.logger)
	t.zones = append(t.zones, z)
	return z, nil
}

// Shutdown disconnects every zone still connected with flags. The client is
// owned by the caller and stays open.
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
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
