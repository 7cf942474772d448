package broadcast

import (
	"context"
	"sync"
)

// PerZone is a SourceFactory that keeps one event source per zone, so a
// once-only source stays exhausted across passes and a repeating one keeps its
// position. Response sources are opened fresh for every request.
type PerZone struct {
	newEvents    func(ctx context.Context, z Zone) (EventSource, error)
	newResponses func(ctx context.Context, q *Query, z Zone) (ResponseSource, error)

	mu     sync.Mutex
	events map[string]EventSource
}

var _ SourceFactory = (*PerZone)(nil)

// NewPerZone returns a factory. Either constructor may be nil.
func NewPerZone(
	events func(ctx context.Context, z Zone) (EventSource, error),
	responses func(ctx context.Context, q *Query, z Zone) (ResponseSource, error),
) *PerZone {
	return &PerZone{
		newEvents:    events,
		newResponses: responses,
		events:       make(map[string]EventSource),
	}
}

// EventSource returns the zone's source, creating it on first use.
func (f *PerZone) EventSource(ctx context.Context, z Zone) (EventSource, error) {
	if f.newEvents == nil {
		return nil, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if src, ok := f.events[z.ID()]; ok {
		return src, nil
	}
	src, err := f.newEvents(ctx, z)
	if err != nil || src == nil {
		return src, err
	}
	f.events[z.ID()] = src
	return src, nil
}

// ResponseSource opens a new source for q.
func (f *PerZone) ResponseSource(ctx context.Context, q *Query, z Zone) (ResponseSource, error) {
	if f.newResponses == nil {
		return nil, nil
	}
	return f.newResponses(ctx, q, z)
}

// Reset forgets the source kept for zoneID.
func (f *PerZone) Reset(zoneID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.events, zoneID)
}
