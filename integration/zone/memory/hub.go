package memory

import (
	"io"
	"log/slog"
	"slices"
	"sync"
)

// Hub is an in-process message bus shared by every memory zone of a process.
// Zones with the same id that are connected to the same hub see each other's
// events and queries.
type Hub struct {
	mu         sync.RWMutex
	zones      map[string]*zoneMembers
	wg         sync.WaitGroup
	packetSize int
	logger     *slog.Logger
}

type zoneMembers struct {
	members    []*Zone
	registered map[string]struct{}
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithPacketSize splits query responses into deliveries of at most n records.
// Zero or less sends each response in one delivery.
func WithPacketSize(n int) HubOption {
	return func(h *Hub) {
		h.packetSize = n
	}
}

// WithHubLogger sets a custom logger.
func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		zones:  make(map[string]*zoneMembers),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Wait blocks until every in-flight delivery has been handled.
func (h *Hub) Wait() {
	h.wg.Wait()
}

// Members returns how many zone handles are connected to zoneID.
func (h *Hub) Members(zoneID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if zm, ok := h.zones[zoneID]; ok {
		return len(zm.members)
	}
	return 0
}

// Registered returns the agents registered in zoneID, sorted.
func (h *Hub) Registered(zoneID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	zm, ok := h.zones[zoneID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(zm.registered))
	for id := range zm.registered {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (h *Hub) join(z *Zone, register bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	zm, ok := h.zones[z.id]
	if !ok {
		zm = &zoneMembers{registered: make(map[string]struct{})}
		h.zones[z.id] = zm
	}
	if !slices.Contains(zm.members, z) {
		zm.members = append(zm.members, z)
	}
	if register {
		zm.registered[z.agentID] = struct{}{}
	}
}

func (h *Hub) leave(z *Zone, unregister bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	zm, ok := h.zones[z.id]
	if !ok {
		return
	}
	zm.members = slices.DeleteFunc(zm.members, func(m *Zone) bool { return m == z })
	if unregister {
		delete(zm.registered, z.agentID)
	}
}

// peers returns the other handles connected to the zone of z.
func (h *Hub) peers(z *Zone) []*Zone {
	h.mu.RLock()
	defer h.mu.RUnlock()
	zm, ok := h.zones[z.id]
	if !ok {
		return nil
	}
	out := make([]*Zone, 0, len(zm.members))
	for _, m := range zm.members {
		if m != z {
			out = append(out, m)
		}
	}
	return out
}

// dispatch runs fn on its own goroutine, tracked by Wait.
func (h *Hub) dispatch(fn func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn()
	}()
}
