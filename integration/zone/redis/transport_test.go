package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/zonecast/core/agent"
	"github.com/dmitrymomot/zonecast/core/broadcast"
	"github.com/dmitrymomot/zonecast/integration/zone/redis"
)

func TestTransport_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr := redis.NewTransport(nil)
	assert.ErrorIs(t, tr.Initialize(ctx, agent.Identity{ID: "a"}), redis.ErrNilClient)

	_, err := tr.NewZone(ctx, agent.ZoneConfig{ID: "district"})
	assert.ErrorIs(t, err, redis.ErrNotInitialized)

	_, err = tr.NewZone(ctx, agent.ZoneConfig{})
	assert.ErrorIs(t, err, redis.ErrEmptyZoneID)

	assert.NoError(t, tr.Shutdown(ctx, 0))
}

func TestTransport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv, client := newServer(t)

	tr := redis.NewTransport(client)
	require.NoError(t, tr.Initialize(ctx, agent.Identity{ID: "pub"}))

	z, err := tr.NewZone(ctx, agent.ZoneConfig{ID: zoneID})
	require.NoError(t, err)
	assert.Equal(t, zoneID, z.ID())
	require.NoError(t, z.Connect(ctx, broadcast.FlagRegister))

	members, err := srv.SMembers(agentsKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"pub"}, members)

	require.NoError(t, tr.Shutdown(ctx, broadcast.FlagUnregister|broadcast.FlagUnprovide))
	assert.False(t, z.Connected())
	assert.False(t, srv.Exists(agentsKey), "last member removed")

	_, err = tr.NewZone(ctx, agent.ZoneConfig{ID: zoneID})
	assert.ErrorIs(t, err, redis.ErrNotInitialized, "shutdown resets the transport")
}

func TestTransport_InitializeUnreachable(t *testing.T) {
	t.Parallel()
	srv, client := newServer(t)
	srv.Close()

	err := redis.NewTransport(client).Initialize(context.Background(), agent.Identity{ID: "pub"})
	assert.Error(t, err)
}
