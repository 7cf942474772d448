package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/zonecast/core/broadcast"
	"github.com/dmitrymomot/zonecast/core/logger"
)

// Transport owns the connection to the message infrastructure and hands out zones.
type Transport interface {
	Initialize(ctx context.Context, id Identity) error
	NewZone(ctx context.Context, cfg ZoneConfig) (broadcast.Zone, error)
	Shutdown(ctx context.Context, flags broadcast.ProvisioningFlags) error
}

// Agent provisions zones and runs the publishers or subscribers of one process.
type Agent struct {
	role       Role
	transport  Transport
	registry   *Registry
	loadConfig func(context.Context) (*Config, error)
	logger     *slog.Logger
	meter      metric.Meter

	mu          sync.Mutex
	state       State
	cfg         *Config
	zones       []broadcast.Zone
	publishers  []*broadcast.Publisher
	subscribers []*broadcast.Subscriber
	cancel      context.CancelFunc
	group       *errgroup.Group
	transportUp bool
}

// New creates an agent for role.
func New(role Role, transport Transport, registry *Registry, opts ...Option) (*Agent, error) {
	if role != RolePublisher && role != RoleSubscriber {
		return nil, ErrInvalidRole
	}
	if transport == nil {
		return nil, ErrNilTransport
	}
	if registry == nil {
		return nil, ErrNilRegistry
	}

	a := &Agent{
		role:      role,
		transport: transport,
		registry:  registry,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		meter:     noop.NewMeterProvider().Meter("zonecast/agent"),
		loadConfig: func(context.Context) (*Config, error) {
			return nil, &broadcast.ConfigurationError{Err: ErrNoConfig}
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(logger.Component("agent"), slog.String("role", role.String()))
	return a, nil
}

// Role returns the agent role.
func (a *Agent) Role() Role { return a.role }

// State returns the current lifecycle state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Config returns the loaded configuration, or nil before Initialize.
func (a *Agent) Config() *Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Zones returns the zones created from configuration.
func (a *Agent) Zones() []broadcast.Zone {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]broadcast.Zone, len(a.zones))
	copy(out, a.zones)
	return out
}

// Publishers returns the publishers built during Initialize.
func (a *Agent) Publishers() []*broadcast.Publisher {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*broadcast.Publisher, len(a.publishers))
	copy(out, a.publishers)
	return out
}

// Subscribers returns the subscribers built during Initialize.
func (a *Agent) Subscribers() []*broadcast.Subscriber {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*broadcast.Subscriber, len(a.subscribers))
	copy(out, a.subscribers)
	return out
}

// Initialize loads configuration, brings up the transport and zones, builds the
// engines and starts the agent. Calling it on an initialized agent does nothing.
// If starting fails the agent is shut down and the error is returned.
func (a *Agent) Initialize(ctx context.Context) error {
	a.mu.Lock()
	switch a.state {
	case StateInitialized, StateStarted:
		a.mu.Unlock()
		a.logger.InfoContext(ctx, "agent already initialized")
		return nil
	case StateCreated:
		a.state = StateInitializing
	default:
		state := a.state
		a.mu.Unlock()
		return fmt.Errorf("%w: cannot initialize from %s", ErrInvalidState, state)
	}
	a.mu.Unlock()

	if err := a.initialize(ctx); err != nil {
		a.abort(ctx)
		return err
	}

	a.setState(StateInitialized)

	if err := a.StartAgent(ctx); err != nil {
		a.logger.ErrorContext(ctx, "agent failed to start, shutting down", logger.Error(err))
		_ = a.Shutdown(ctx)
		return err
	}
	return nil
}

func (a *Agent) initialize(ctx context.Context) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	id := cfg.Identity()

	if err := a.transport.Initialize(ctx, id); err != nil {
		return fmt.Errorf("initialize transport: %w", err)
	}
	a.mu.Lock()
	a.cfg = cfg
	a.transportUp = true
	a.mu.Unlock()

	zones := make([]broadcast.Zone, 0, len(cfg.Zones))
	for _, zc := range cfg.Zones {
		z, err := a.transport.NewZone(ctx, zc)
		if err != nil {
			return &broadcast.ConfigurationError{Setting: "zones." + zc.ID, Err: err}
		}
		zones = append(zones, z)
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work directory %s: %w", cfg.WorkDir, err)
	}

	a.logger.InfoContext(ctx, "agent properties",
		logger.Agent(id.ID),
		slog.String("name", id.Name),
		logger.Version(id.Version),
		slog.String("home_dir", cfg.HomeDir),
		slog.String("work_dir", cfg.WorkDir),
		slog.String("transport", cfg.Transport.Kind),
		logger.Count("zones", len(zones)))

	settings := func(objectType string) Settings {
		return Settings{
			Identity: id,
			Object:   cfg.Object(objectType),
			WorkDir:  cfg.WorkDir,
			Logger:   a.logger,
			Meter:    a.meter,
		}
	}

	var (
		publishers  []*broadcast.Publisher
		subscribers []*broadcast.Subscriber
	)
	switch a.role {
	case RolePublisher:
		types, err := resolve(a.registry.PublisherTypes(), cfg.Publishers, cfg.Objects)
		if err != nil {
			return err
		}
		for _, t := range types {
			f, _ := a.registry.Publisher(t)
			p, err := f(ctx, t, settings(t))
			if err != nil {
				return fmt.Errorf("build publisher %s: %w", t, err)
			}
			publishers = append(publishers, p)
		}
	case RoleSubscriber:
		types, err := resolve(a.registry.SubscriberTypes(), cfg.Subscribers, cfg.Objects)
		if err != nil {
			return err
		}
		for _, t := range types {
			f, _ := a.registry.Subscriber(t)
			s, err := f(ctx, t, settings(t))
			if err != nil {
				return fmt.Errorf("build subscriber %s: %w", t, err)
			}
			subscribers = append(subscribers, s)
		}
	}

	a.mu.Lock()
	a.zones = zones
	a.publishers = publishers
	a.subscribers = subscribers
	a.mu.Unlock()
	return nil
}

// abort undoes a failed Initialize.
func (a *Agent) abort(ctx context.Context) {
	a.mu.Lock()
	up := a.transportUp
	a.state = StateShutdown
	a.mu.Unlock()

	if up {
		if err := a.transport.Shutdown(ctx, a.role.ShutdownFlags()); err != nil {
			a.logger.WarnContext(ctx, "transport shutdown after failed initialize", logger.Error(err))
		}
	}
}

// StartAgent registers every engine with every zone, connects the zones and
// starts the engine timers. If any zone fails to connect, the zones that did
// connect are disconnected before the ConnectionError is returned.
func (a *Agent) StartAgent(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateInitialized {
		state := a.state
		a.mu.Unlock()
		return fmt.Errorf("%w: state is %s", ErrNotInitialized, state)
	}
	zones := make([]broadcast.Zone, len(a.zones))
	copy(zones, a.zones)
	publishers := a.publishers
	subscribers := a.subscribers
	a.mu.Unlock()

	if len(zones) == 0 {
		a.logger.WarnContext(ctx, "no zones configured, nothing to start")
		return nil
	}

	for _, z := range zones {
		for _, p := range publishers {
			p.Register(z)
		}
		for _, s := range subscribers {
			s.Register(z)
		}
	}

	connected := make([]broadcast.Zone, 0, len(zones))
	for _, z := range zones {
		if err := z.Connect(ctx, broadcast.FlagRegister); err != nil {
			connErr := &broadcast.ConnectionError{ZoneID: z.ID(), Err: err}
			a.logger.ErrorContext(ctx, "zone connect failed, rolling back",
				logger.Zone(z.ID()),
				logger.Count("connected", len(connected)),
				logger.Error(err))
			a.rollback(ctx, connected)
			return connErr
		}
		a.logger.InfoContext(ctx, "zone connected", logger.Zone(z.ID()))
		connected = append(connected, z)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(runCtx)
	for _, p := range publishers {
		g.Go(p.Run(gctx, zones))
	}
	for _, s := range subscribers {
		g.Go(s.Run(gctx, zones))
	}

	a.mu.Lock()
	a.cancel = cancel
	a.group = g
	a.state = StateStarted
	a.mu.Unlock()

	a.logger.InfoContext(ctx, "agent started",
		logger.Count("zones", len(zones)),
		logger.Count("publishers", len(publishers)),
		logger.Count("subscribers", len(subscribers)))
	return nil
}

func (a *Agent) rollback(ctx context.Context, connected []broadcast.Zone) {
	flags := a.role.rollbackFlags()
	for _, z := range connected {
		if err := z.Disconnect(ctx, flags); err != nil {
			a.logger.WarnContext(ctx, "rollback disconnect failed", logger.Zone(z.ID()), logger.Error(err))
		}
	}
}

// Shutdown stops the engines, leaves every zone and shuts the transport down.
// It only acts on an initialized agent that is not shut down yet, and it never
// returns the errors it meets; they are logged.
func (a *Agent) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateInitialized && a.state != StateStarted {
		state := a.state
		a.mu.Unlock()
		a.logger.DebugContext(ctx, "shutdown ignored", logger.State(state.String()))
		return nil
	}
	a.state = StateShuttingDown
	cancel, group := a.cancel, a.group
	a.cancel, a.group = nil, nil
	zones := a.zones
	timeout := 30 * time.Second
	if a.cfg != nil && a.cfg.ShutdownTimeout > 0 {
		timeout = a.cfg.ShutdownTimeout
	}
	a.mu.Unlock()

	a.logger.InfoContext(ctx, "agent shutting down")

	if cancel != nil {
		cancel()
		done := make(chan error, 1)
		go func() { done <- group.Wait() }()
		select {
		case err := <-done:
			if err != nil {
				a.logger.WarnContext(ctx, "engine stopped with error", logger.Error(err))
			}
		case <-time.After(timeout):
			a.logger.WarnContext(ctx, "engines did not stop in time", logger.Duration(timeout))
		}
	}

	flags := a.role.ShutdownFlags()
	for _, z := range zones {
		if !z.Connected() {
			continue
		}
		if err := z.Disconnect(ctx, flags); err != nil {
			a.logger.WarnContext(ctx, "zone disconnect failed", logger.Zone(z.ID()), logger.Error(err))
		}
	}

	if err := a.transport.Shutdown(ctx, flags); err != nil {
		a.logger.WarnContext(ctx, "transport shutdown failed", logger.Error(err))
	}

	a.setState(StateShutdown)
	a.logger.InfoContext(ctx, "agent shut down")
	return nil
}

// Run initializes the agent, waits for ctx to be cancelled and shuts down.
// Shutdown runs even when initialization fails.
func (a *Agent) Run(ctx context.Context) error {
	defer func() {
		_ = a.Shutdown(context.WithoutCancel(ctx))
	}()

	if err := a.Initialize(ctx); err != nil {
		a.logger.ErrorContext(ctx, "agent fatal error", logger.Error(err))
		return err
	}

	<-ctx.Done()
	return nil
}

// Healthcheck reports whether the agent is started, its zones are connected and
// its engines are running.
func (a *Agent) Healthcheck(ctx context.Context) error {
	a.mu.Lock()
	state := a.state
	zones := a.zones
	publishers := a.publishers
	subscribers := a.subscribers
	a.mu.Unlock()

	if state != StateStarted {
		return fmt.Errorf("%w: agent is %s", ErrHealthcheckFailed, state)
	}

	var errs []error
	for _, z := range zones {
		if !z.Connected() {
			errs = append(errs, fmt.Errorf("zone %s is not connected", z.ID()))
		}
	}
	for _, p := range publishers {
		if err := p.Healthcheck(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, s := range subscribers {
		if err := s.Healthcheck(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrHealthcheckFailed}, errs...)...)
	}
	return nil
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = s
	a.logger.Debug("agent state changed", logger.State(s.String()))
}
