package agent

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/metric"

	"github.com/dmitrymomot/zonecast/core/broadcast"
)

// Settings are handed to factories when the agent builds its engines.
type Settings struct {
	Identity Identity
	Object   ObjectConfig
	WorkDir  string
	Logger   *slog.Logger
	Meter    metric.Meter
}

// PublisherFactory builds the publisher for one object type.
type PublisherFactory func(ctx context.Context, objectType string, s Settings) (*broadcast.Publisher, error)

// SubscriberFactory builds the subscriber for one object type.
type SubscriberFactory func(ctx context.Context, objectType string, s Settings) (*broadcast.Subscriber, error)

// Registry maps object types to the factories that build their engines.
// It is populated at process start.
type Registry struct {
	mu          sync.RWMutex
	publishers  map[string]PublisherFactory
	subscribers map[string]SubscriberFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		publishers:  make(map[string]PublisherFactory),
		subscribers: make(map[string]SubscriberFactory),
	}
}

// RegisterPublisher adds a publisher factory for objectType.
func (r *Registry) RegisterPublisher(objectType string, f PublisherFactory) error {
	if objectType == "" {
		return broadcast.ErrMissingObjectType
	}
	if f == nil {
		return ErrNilFactory
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.publishers[objectType]; ok {
		return fmt.Errorf("%w: publisher %s", ErrAlreadyRegistered, objectType)
	}
	r.publishers[objectType] = f
	return nil
}

// RegisterSubscriber adds a subscriber factory for objectType.
func (r *Registry) RegisterSubscriber(objectType string, f SubscriberFactory) error {
	if objectType == "" {
		return broadcast.ErrMissingObjectType
	}
	if f == nil {
		return ErrNilFactory
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subscribers[objectType]; ok {
		return fmt.Errorf("%w: subscriber %s", ErrAlreadyRegistered, objectType)
	}
	r.subscribers[objectType] = f
	return nil
}

// PublisherTypes returns the registered publisher object types, sorted.
func (r *Registry) PublisherTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.publishers))
}

// SubscriberTypes returns the registered subscriber object types, sorted.
func (r *Registry) SubscriberTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.subscribers))
}

// Publisher returns the factory for objectType.
func (r *Registry) Publisher(objectType string) (PublisherFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.publishers[objectType]
	return f, ok
}

// Subscriber returns the factory for objectType.
func (r *Registry) Subscriber(objectType string) (SubscriberFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.subscribers[objectType]
	return f, ok
}

// resolve picks the object types to run. An explicit list wins and every entry
// must be registered. Without one, every registered type enabled in objects runs.
func resolve(registered []string, explicit []string, objects map[string]ObjectConfig) ([]string, error) {
	if len(explicit) > 0 {
		out := make([]string, 0, len(explicit))
		for _, name := range explicit {
			if !slices.Contains(registered, name) {
				return nil, &broadcast.ConfigurationError{
					Setting: name,
					Err:     ErrUnknownObjectType,
				}
			}
			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
		return out, nil
	}

	var out []string
	for _, name := range registered {
		if objects[name].Enabled {
			out = append(out, name)
		}
	}
	return out, nil
}
