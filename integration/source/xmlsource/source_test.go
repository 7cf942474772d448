package xmlsource_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/zonecast/core/broadcast"
	"github.com/dmitrymomot/zonecast/core/record"
	"github.com/dmitrymomot/zonecast/integration/source/xmlsource"
)

const studentType = "StudentPersonal"

const batch = `<?xml version="1.0"?>
<StudentPersonals xmlns="http://www.sifinfo.org/au/datamodel/1.3">
  <StudentPersonal RefId="s1"><Grade>7</Grade></StudentPersonal>
  <StudentPersonal RefId="s2"><Grade>8</Grade></StudentPersonal>
</StudentPersonals>`

// recordingZone captures reported events.
type recordingZone struct {
	broadcast.Zone
	reported []string
}

func (z *recordingZone) ID() string { return "Z" }

func (z *recordingZone) ReportEvent(_ context.Context, r broadcast.Record, a broadcast.EventAction) error {
	z.reported = append(z.reported, r.(*record.Document).RefID()+":"+a.String())
	return nil
}

func TestSplit(t *testing.T) {
	t.Parallel()

	docs, err := xmlsource.Split([]byte(batch), studentType)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, `<StudentPersonal RefId="s1"><Grade>7</Grade></StudentPersonal>`, string(docs[0]))

	docs, err = xmlsource.Split([]byte(`<StudentPersonal RefId="x"/>`), studentType)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = xmlsource.Split([]byte(`<SchoolInfo/>`), studentType)
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = xmlsource.Split([]byte(`<StudentPersonal>`), studentType)
	assert.ErrorIs(t, err, xmlsource.ErrMalformedXML)
}

func TestSource_Events(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("once only", func(t *testing.T) {
		t.Parallel()
		pub, err := broadcast.NewPublisher(studentType, xmlsource.Factory(studentType,
			xmlsource.Strings(`<StudentPersonal RefId="s1"/>`, `<StudentPersonal RefId="s2"/>`)))
		require.NoError(t, err)
		z := &recordingZone{}

		assert.Equal(t, 2, pub.BroadcastZone(ctx, z).Succeeded)
		assert.True(t, pub.BroadcastZone(ctx, z).Empty())
		assert.Equal(t, []string{"s1:Add", "s2:Add"}, z.reported)
	})

	t.Run("repeating with action", func(t *testing.T) {
		t.Parallel()
		pub, err := broadcast.NewPublisher(studentType, xmlsource.Factory(studentType,
			xmlsource.Strings(batch),
			xmlsource.WithMode(broadcast.ModeRepeat),
			xmlsource.WithAction(broadcast.ActionChange)))
		require.NoError(t, err)
		z := &recordingZone{}

		for range 3 {
			assert.Equal(t, 2, pub.BroadcastZone(ctx, z).Succeeded)
		}
		assert.Len(t, z.reported, 6)
		assert.Equal(t, "s2:Change", z.reported[5])
	})

	t.Run("file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "students.xml")
		require.NoError(t, os.WriteFile(path, []byte(batch), 0o600))

		src, err := xmlsource.New(studentType, xmlsource.File(path))
		require.NoError(t, err)
		require.NoError(t, src.BeforeEvent(ctx))
		assert.Equal(t, 2, src.Len())
	})

	t.Run("load failure ends the pass", func(t *testing.T) {
		t.Parallel()
		pub, err := broadcast.NewPublisher(studentType, xmlsource.Factory(studentType,
			xmlsource.File(filepath.Join(t.TempDir(), "missing.xml"))))
		require.NoError(t, err)

		res := pub.BroadcastZone(ctx, &recordingZone{})
		var iterErr *broadcast.IteratorError
		require.ErrorAs(t, res.Err, &iterErr)
		assert.ErrorIs(t, res.Err, os.ErrNotExist)
	})

	t.Run("repeating retries a failed load", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "students.xml")
		pub, err := broadcast.NewPublisher(studentType, xmlsource.Factory(studentType,
			xmlsource.File(path), xmlsource.WithMode(broadcast.ModeRepeat)))
		require.NoError(t, err)
		z := &recordingZone{}

		res := pub.BroadcastZone(ctx, z)
		assert.ErrorIs(t, res.Err, os.ErrNotExist)

		require.NoError(t, os.WriteFile(path, []byte(batch), 0o600))
		assert.Equal(t, 2, pub.BroadcastZone(ctx, z).Succeeded)
		assert.Equal(t, 2, pub.BroadcastZone(ctx, z).Succeeded)
		assert.Equal(t, []string{"s1:Add", "s2:Add", "s1:Add", "s2:Add"}, z.reported)
	})

	t.Run("once only load failure is kept", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "students.xml")
		src, err := xmlsource.New(studentType, xmlsource.File(path))
		require.NoError(t, err)

		assert.ErrorIs(t, src.BeforeEvent(ctx), os.ErrNotExist)
		require.NoError(t, os.WriteFile(path, []byte(batch), 0o600))
		assert.ErrorIs(t, src.BeforeEvent(ctx), os.ErrNotExist)
		assert.Zero(t, src.Len())
	})

	t.Run("malformed blob fails the load", func(t *testing.T) {
		t.Parallel()
		src, err := xmlsource.New(studentType, xmlsource.Strings(
			`<StudentPersonal RefId="ok"/>`,
			`<StudentPersonal RefId="bad"><Name></StudentPersonal>`,
		))
		require.NoError(t, err)
		assert.ErrorIs(t, src.BeforeEvent(ctx), xmlsource.ErrMalformedXML)
	})
}

func TestSource_Responses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	pub, err := broadcast.NewPublisher(studentType, xmlsource.Factory(studentType, xmlsource.Strings(batch)))
	require.NoError(t, err)

	q := broadcast.NewQuery(studentType)
	require.NoError(t, q.AddCondition("Grade", broadcast.OpGreaterThan, "7"))

	for range 2 {
		var out broadcast.RecordBuffer
		pub.OnRequest(ctx, &out, q.Freeze(), &recordingZone{}, broadcast.MessageInfo{})
		require.Equal(t, 1, out.Len())
		assert.Equal(t, "s2", out.Records()[0].(*record.Document).RefID())
	}
}

type fakeStore struct {
	objects map[string]string
	err     error
}

func (s *fakeStore) Fetch(_ context.Context, key string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.objects[key]), nil
}

func (s *fakeStore) Keys(context.Context, string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []string{"a.xml", "b.xml"}, nil
}

func TestLoaders_Store(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := &fakeStore{objects: map[string]string{
		"a.xml": `<StudentPersonal RefId="a"/>`,
		"b.xml": `<StudentPersonal RefId="b"/>`,
	}}

	blobs, err := xmlsource.Prefix(store, "students/")(ctx)
	require.NoError(t, err)
	assert.Len(t, blobs, 2)

	blobs, err = xmlsource.Objects(store, "b.xml")(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte(`<StudentPersonal RefId="b"/>`)}, blobs)

	boom := errors.New("boom")
	_, err = xmlsource.Prefix(&fakeStore{err: boom}, "")(ctx)
	assert.ErrorIs(t, err, boom)

	_, err = xmlsource.Objects(nil, "a.xml")(ctx)
	assert.ErrorIs(t, err, xmlsource.ErrNilFetcher)
}

func TestNew(t *testing.T) {
	t.Parallel()
	_, err := xmlsource.New("", xmlsource.Strings())
	assert.ErrorIs(t, err, broadcast.ErrMissingObjectType)
	_, err = xmlsource.New(studentType, nil)
	assert.ErrorIs(t, err, xmlsource.ErrNilLoader)
}
