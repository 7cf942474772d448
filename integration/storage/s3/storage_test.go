package s3_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3aws "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/zonecast/integration/storage/s3"
)

type fakeClient struct {
	objects map[string]string
	getErr  error
	listErr error
}

func (c *fakeClient) GetObject(_ context.Context, in *s3aws.GetObjectInput, _ ...func(*s3aws.Options)) (*s3aws.GetObjectOutput, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	body, ok := c.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3aws.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (c *fakeClient) HeadObject(_ context.Context, in *s3aws.HeadObjectInput, _ ...func(*s3aws.Options)) (*s3aws.HeadObjectOutput, error) {
	if _, ok := c.objects[aws.ToString(in.Key)]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}
	return &s3aws.HeadObjectOutput{}, nil
}

func (c *fakeClient) ListObjectsV2(_ context.Context, in *s3aws.ListObjectsV2Input, _ ...func(*s3aws.Options)) (*s3aws.ListObjectsV2Output, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	out := &s3aws.ListObjectsV2Output{}
	for key := range c.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

// onePage returns the client's listing as a single page.
type onePage struct {
	client s3.S3Client
	params *s3aws.ListObjectsV2Input
	done   bool
}

func (p *onePage) HasMorePages() bool { return !p.done }

func (p *onePage) NextPage(ctx context.Context, _ ...func(*s3aws.Options)) (*s3aws.ListObjectsV2Output, error) {
	p.done = true
	return p.client.ListObjectsV2(ctx, p.params)
}

func newStorage(t *testing.T, client *fakeClient, opts ...s3.Option) *s3.Storage {
	t.Helper()
	opts = append([]s3.Option{
		s3.WithS3Client(client),
		s3.WithPaginatorFactory(func(c s3.S3Client, params *s3aws.ListObjectsV2Input) s3.S3ListObjectsV2Paginator {
			return &onePage{client: c, params: params}
		}),
	}, opts...)
	store, err := s3.New(context.Background(), s3.Config{Bucket: "sis", Region: "us-east-1"}, opts...)
	require.NoError(t, err)
	return store
}

func TestNew(t *testing.T) {
	t.Parallel()
	_, err := s3.New(context.Background(), s3.Config{Region: "us-east-1"})
	assert.ErrorIs(t, err, s3.ErrInvalidConfig)
}

func TestStorage_Fetch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client := &fakeClient{objects: map[string]string{"students/a.xml": "<StudentPersonal/>"}}
	store := newStorage(t, client, s3.WithMaxObjectSize(64))

	data, err := store.Fetch(ctx, "/students/a.xml")
	require.NoError(t, err)
	assert.Equal(t, "<StudentPersonal/>", string(data))

	_, err = store.Fetch(ctx, "students/missing.xml")
	assert.ErrorIs(t, err, s3.ErrObjectNotFound)

	_, err = store.Fetch(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, s3.ErrInvalidPath)

	small := newStorage(t, client, s3.WithMaxObjectSize(4))
	_, err = small.Fetch(ctx, "students/a.xml")
	assert.ErrorIs(t, err, s3.ErrObjectTooLarge)
}

func TestStorage_ErrorMapping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := map[string]struct {
		err  error
		want error
	}{
		"access denied": {err: &smithy.GenericAPIError{Code: "AccessDenied"}, want: s3.ErrAccessDenied},
		"slow down":     {err: &smithy.GenericAPIError{Code: "SlowDown"}, want: s3.ErrServiceUnavailable},
		"no bucket":     {err: &types.NoSuchBucket{}, want: s3.ErrBucketNotFound},
		"timeout":       {err: context.DeadlineExceeded, want: s3.ErrOperationTimeout},
		"canceled":      {err: context.Canceled, want: s3.ErrOperationCanceled},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store := newStorage(t, &fakeClient{getErr: tt.err})
			_, err := store.Fetch(ctx, "k.xml")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	store := newStorage(t, &fakeClient{getErr: errors.New("boom")})
	_, err := store.Fetch(ctx, "k.xml")
	assert.EqualError(t, err, "s3 get object: boom")
}

func TestStorage_KeysAndExists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := newStorage(t, &fakeClient{objects: map[string]string{
		"students/":      "",
		"students/a.xml": "<a/>",
		"students/b.xml": "<b/>",
		"schools/c.xml":  "<c/>",
	}})

	keys, err := store.Keys(ctx, "students/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"students/a.xml", "students/b.xml"}, keys)

	assert.True(t, store.Exists(ctx, "schools/c.xml"))
	assert.False(t, store.Exists(ctx, "schools/d.xml"))
	require.NoError(t, store.Healthcheck()(ctx))

	failing := newStorage(t, &fakeClient{listErr: &smithy.GenericAPIError{Code: "AccessDenied"}})
	_, err = failing.Keys(ctx, "")
	assert.ErrorIs(t, err, s3.ErrAccessDenied)

	noPager, err := s3.New(ctx, s3.Config{Bucket: "sis", Region: "us-east-1"}, s3.WithS3Client(&fakeClient{}))
	require.NoError(t, err)
	_, err = noPager.Keys(ctx, "")
	assert.ErrorIs(t, err, s3.ErrPaginatorNil)
}
