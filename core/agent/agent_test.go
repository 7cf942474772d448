package agent_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/zonecast/core/agent"
	"github.com/dmitrymomot/zonecast/core/broadcast"
	"github.com/dmitrymomot/zonecast/core/record"
)

const studentType = "StudentPersonal"

func testConfig(t *testing.T, zones ...string) *agent.Config {
	t.Helper()
	cfg := &agent.Config{
		ID:      "agent-1",
		Version: "2.0",
		HomeDir: t.TempDir(),
		Objects: map[string]agent.ObjectConfig{studentType: {Enabled: true}},
	}
	for _, z := range zones {
		cfg.Zones = append(cfg.Zones, agent.ZoneConfig{ID: z})
	}
	return cfg
}

func publisherRegistry(t *testing.T) *agent.Registry {
	t.Helper()
	reg := agent.NewRegistry()
	require.NoError(t, reg.RegisterPublisher(studentType,
		func(_ context.Context, objectType string, s agent.Settings) (*broadcast.Publisher, error) {
			return broadcast.NewPublisher(objectType, broadcast.SourceFuncs{},
				broadcast.WithPublisherLogger(s.Logger))
		}))
	return reg
}

func subscriberRegistry(t *testing.T) *agent.Registry {
	t.Helper()
	reg := agent.NewRegistry()
	require.NoError(t, reg.RegisterSubscriber(studentType,
		func(_ context.Context, objectType string, s agent.Settings) (*broadcast.Subscriber, error) {
			return broadcast.NewSubscriber(objectType, record.Factory(objectType),
				broadcast.WithProtocolVersion(s.Identity.Version))
		}))
	return reg
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := agent.New(0, newFakeTransport(), agent.NewRegistry())
	assert.ErrorIs(t, err, agent.ErrInvalidRole)

	_, err = agent.New(agent.RolePublisher, nil, agent.NewRegistry())
	assert.ErrorIs(t, err, agent.ErrNilTransport)

	_, err = agent.New(agent.RolePublisher, newFakeTransport(), nil)
	assert.ErrorIs(t, err, agent.ErrNilRegistry)

	a, err := agent.New(agent.RoleSubscriber, newFakeTransport(), agent.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, agent.StateCreated, a.State())
	assert.Equal(t, agent.RoleSubscriber, a.Role())
}

func TestAgent_Initialize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("publisher connects every zone and starts", func(t *testing.T) {
		t.Parallel()
		tr := newFakeTransport()
		cfg := testConfig(t, "A", "B")
		a, err := agent.New(agent.RolePublisher, tr, publisherRegistry(t), agent.WithConfig(cfg))
		require.NoError(t, err)

		require.NoError(t, a.Initialize(ctx))
		assert.Equal(t, agent.StateStarted, a.State())
		assert.Len(t, a.Zones(), 2)
		assert.Len(t, a.Publishers(), 1)
		assert.Empty(t, a.Subscribers())
		assert.Equal(t, "agent-1", tr.identity.Name)
		assert.DirExists(t, filepath.Join(cfg.HomeDir, "work"))

		for _, id := range []string{"A", "B"} {
			z := tr.zone(id)
			assert.True(t, z.Connected(), id)
			assert.Equal(t, []string{studentType}, z.Publishers(), id)
		}
		require.NoError(t, a.Healthcheck(ctx))

		require.NoError(t, a.Shutdown(ctx))
		assert.Equal(t, agent.StateShutdown, a.State())
		for _, id := range []string{"A", "B"} {
			assert.Equal(t,
				[]broadcast.ProvisioningFlags{broadcast.FlagUnregister | broadcast.FlagUnprovide},
				tr.zone(id).Disconnects(), id)
		}
		assert.Equal(t, []broadcast.ProvisioningFlags{broadcast.FlagUnregister | broadcast.FlagUnprovide}, tr.Shutdowns())
	})

	t.Run("subscriber leaves zones with unsubscribe", func(t *testing.T) {
		t.Parallel()
		tr := newFakeTransport()
		a, err := agent.New(agent.RoleSubscriber, tr, subscriberRegistry(t), agent.WithConfig(testConfig(t, "A")))
		require.NoError(t, err)

		require.NoError(t, a.Initialize(ctx))
		assert.Equal(t, []string{studentType}, tr.zone("A").Subscribers())

		require.NoError(t, a.Shutdown(ctx))
		assert.Equal(t, []broadcast.ProvisioningFlags{broadcast.FlagUnsubscribe}, tr.zone("A").Disconnects())
	})

	t.Run("second call is a no-op", func(t *testing.T) {
		t.Parallel()
		tr := newFakeTransport()
		a, err := agent.New(agent.RolePublisher, tr, publisherRegistry(t), agent.WithConfig(testConfig(t, "A")))
		require.NoError(t, err)

		require.NoError(t, a.Initialize(ctx))
		require.NoError(t, a.Initialize(ctx))
		assert.Equal(t, 1, tr.initialized)
		require.NoError(t, a.Shutdown(ctx))
	})

	t.Run("without configuration", func(t *testing.T) {
		t.Parallel()
		a, err := agent.New(agent.RolePublisher, newFakeTransport(), publisherRegistry(t))
		require.NoError(t, err)

		err = a.Initialize(ctx)
		var cfgErr *broadcast.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.ErrorIs(t, err, agent.ErrNoConfig)
		assert.Equal(t, agent.StateShutdown, a.State())

		assert.ErrorIs(t, a.Initialize(ctx), agent.ErrInvalidState)
	})

	t.Run("transport failure", func(t *testing.T) {
		t.Parallel()
		tr := newFakeTransport()
		tr.initErr = errors.New("broker down")
		a, err := agent.New(agent.RolePublisher, tr, publisherRegistry(t), agent.WithConfig(testConfig(t, "A")))
		require.NoError(t, err)

		assert.ErrorContains(t, a.Initialize(ctx), "broker down")
		assert.Empty(t, tr.Shutdowns())
	})

	t.Run("zone creation failure shuts the transport down", func(t *testing.T) {
		t.Parallel()
		tr := newFakeTransport()
		cfg := testConfig(t)
		cfg.Zones = []agent.ZoneConfig{{ID: "A", URL: "invalid"}}
		a, err := agent.New(agent.RolePublisher, tr, publisherRegistry(t), agent.WithConfig(cfg))
		require.NoError(t, err)

		var cfgErr *broadcast.ConfigurationError
		require.ErrorAs(t, a.Initialize(ctx), &cfgErr)
		assert.Equal(t, "zones.A", cfgErr.Setting)
		assert.Len(t, tr.Shutdowns(), 1)
	})

	t.Run("unknown explicit object type", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t, "A")
		cfg.Publishers = []string{"SchoolInfo"}
		a, err := agent.New(agent.RolePublisher, newFakeTransport(), publisherRegistry(t), agent.WithConfig(cfg))
		require.NoError(t, err)

		assert.ErrorIs(t, a.Initialize(ctx), agent.ErrUnknownObjectType)
	})

	t.Run("no zones starts nothing", func(t *testing.T) {
		t.Parallel()
		a, err := agent.New(agent.RolePublisher, newFakeTransport(), publisherRegistry(t), agent.WithConfig(testConfig(t)))
		require.NoError(t, err)

		require.NoError(t, a.Initialize(ctx))
		assert.Equal(t, agent.StateInitialized, a.State())
		assert.ErrorIs(t, a.Healthcheck(ctx), agent.ErrHealthcheckFailed)
		require.NoError(t, a.Shutdown(ctx))
	})
}

func TestAgent_ConnectRollback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr := newFakeTransport()
	tr.failConnect["B"] = errors.New("zone refused")
	a, err := agent.New(agent.RolePublisher, tr, publisherRegistry(t), agent.WithConfig(testConfig(t, "A", "B")))
	require.NoError(t, err)

	err = a.Initialize(ctx)
	var connErr *broadcast.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "B", connErr.ZoneID)

	zoneA := tr.zone("A")
	assert.False(t, zoneA.Connected())
	assert.Equal(t, broadcast.FlagUnregister, zoneA.Disconnects()[0])
	assert.Equal(t, agent.StateShutdown, a.State())
	assert.Len(t, tr.Shutdowns(), 1)
}

func TestAgent_StartAgent(t *testing.T) {
	t.Parallel()

	a, err := agent.New(agent.RolePublisher, newFakeTransport(), publisherRegistry(t))
	require.NoError(t, err)
	assert.ErrorIs(t, a.StartAgent(context.Background()), agent.ErrNotInitialized)
}

func TestAgent_Shutdown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("before initialize does nothing", func(t *testing.T) {
		t.Parallel()
		tr := newFakeTransport()
		a, err := agent.New(agent.RolePublisher, tr, publisherRegistry(t))
		require.NoError(t, err)

		require.NoError(t, a.Shutdown(ctx))
		assert.Equal(t, agent.StateCreated, a.State())
		assert.Empty(t, tr.Shutdowns())
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()
		tr := newFakeTransport()
		a, err := agent.New(agent.RolePublisher, tr, publisherRegistry(t), agent.WithConfig(testConfig(t, "A")))
		require.NoError(t, err)
		require.NoError(t, a.Initialize(ctx))

		require.NoError(t, a.Shutdown(ctx))
		require.NoError(t, a.Shutdown(ctx))
		assert.Len(t, tr.Shutdowns(), 1)
		assert.Len(t, tr.zone("A").Disconnects(), 1)
	})
}

func TestAgent_Run(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	a, err := agent.New(agent.RolePublisher, tr, publisherRegistry(t), agent.WithConfig(testConfig(t, "A")))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.State() == agent.StateStarted }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, agent.StateShutdown, a.State())
	assert.False(t, tr.zone("A").Connected())
}
