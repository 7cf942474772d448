package broadcast_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/zonecast/core/broadcast"
)

func TestCursor(t *testing.T) {
	t.Parallel()

	t.Run("once exhausts for good", func(t *testing.T) {
		t.Parallel()
		c := broadcast.NewCursor(broadcast.ModeOnce)
		for i := range 2 {
			c.Begin()
			require.True(t, c.HasNext(2))
			assert.Equal(t, i, c.Advance())
		}
		c.Begin()
		assert.False(t, c.HasNext(2))
		c.Begin()
		assert.False(t, c.HasNext(2))
	})

	t.Run("repeat ends the pass then starts over", func(t *testing.T) {
		t.Parallel()
		c := broadcast.NewCursor(broadcast.ModeRepeat)
		c.Advance()
		assert.False(t, c.HasNext(1))
		assert.False(t, c.HasNext(1), "has-next stays false until the next pass begins")
		c.Begin()
		assert.True(t, c.HasNext(1))
		assert.Equal(t, 0, c.Pos())
	})

	t.Run("repeat over nothing", func(t *testing.T) {
		t.Parallel()
		c := broadcast.NewCursor(broadcast.ModeRepeat)
		c.Begin()
		assert.False(t, c.HasNext(0))
	})
}

func TestParseIterationMode(t *testing.T) {
	t.Parallel()
	m, err := broadcast.ParseIterationMode("")
	require.NoError(t, err)
	assert.Equal(t, broadcast.ModeOnce, m)

	m, err = broadcast.ParseIterationMode("repeat")
	require.NoError(t, err)
	assert.Equal(t, broadcast.ModeRepeat, m)
	assert.Equal(t, "repeat", m.String())

	_, err = broadcast.ParseIterationMode("forever")
	assert.Error(t, err)
}

func TestSliceSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("roles keep independent cursors", func(t *testing.T) {
		t.Parallel()
		src := broadcast.Records(broadcast.ModeOnce, broadcast.ActionAdd, newRecord("a"), newRecord("b"))

		ev, err := src.NextEvent(ctx)
		require.NoError(t, err)
		assert.Equal(t, "a", ev.Record.(*testRecord).id)

		r, err := src.NextResponse(ctx)
		require.NoError(t, err)
		assert.Equal(t, "a", r.(*testRecord).id)

		ev, err = src.NextEvent(ctx)
		require.NoError(t, err)
		assert.Equal(t, "b", ev.Record.(*testRecord).id)

		has, err := src.HasNextEvent(ctx)
		require.NoError(t, err)
		assert.False(t, has)

		has, err = src.HasNextResponse(ctx)
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("repeating source serves every pass", func(t *testing.T) {
		t.Parallel()
		src := broadcast.Records(broadcast.ModeRepeat, broadcast.ActionChange, newRecord("a"), newRecord("b"))
		pub, err := broadcast.NewPublisher(studentType, eventsOnly(src))
		require.NoError(t, err)
		zone := newFakeZone("Z")

		for range 3 {
			res := pub.BroadcastZone(ctx, zone)
			assert.Equal(t, 2, res.Succeeded)
		}
		assert.Len(t, zone.Reported(), 6)
	})

	t.Run("once source serves one pass", func(t *testing.T) {
		t.Parallel()
		src := broadcast.Records(broadcast.ModeOnce, broadcast.ActionChange, newRecord("a"))
		pub, err := broadcast.NewPublisher(studentType, eventsOnly(src))
		require.NoError(t, err)
		zone := newFakeZone("Z")

		assert.Equal(t, 1, pub.BroadcastZone(ctx, zone).Succeeded)
		assert.True(t, pub.BroadcastZone(ctx, zone).Empty())
	})
}

func TestChangeEvent(t *testing.T) {
	t.Parallel()

	_, err := broadcast.NewChangeEvent(nil, broadcast.ActionAdd)
	assert.ErrorIs(t, err, broadcast.ErrNilRecord)

	_, err = broadcast.NewChangeEvent(newRecord("a"), 0)
	assert.ErrorIs(t, err, broadcast.ErrInvalidAction)

	ev, err := broadcast.NewChangeEvent(newRecord("a"), broadcast.ActionDelete)
	require.NoError(t, err)
	assert.Equal(t, studentType, ev.ObjectType())
	assert.Equal(t, "Delete", ev.Action.String())

	action, err := broadcast.ParseEventAction(" change ")
	require.NoError(t, err)
	assert.Equal(t, broadcast.ActionChange, action)
	_, err = broadcast.ParseEventAction("upsert")
	assert.ErrorIs(t, err, broadcast.ErrInvalidAction)
}

func TestProvisioningFlags(t *testing.T) {
	t.Parallel()
	f := broadcast.FlagUnregister | broadcast.FlagUnprovide
	assert.True(t, f.Has(broadcast.FlagUnprovide))
	assert.False(t, f.Has(broadcast.FlagRegister))
	assert.False(t, f.Has(broadcast.FlagNone))
	assert.Equal(t, "unregister|unprovide", f.String())
	assert.Equal(t, "none", broadcast.FlagNone.String())
}
