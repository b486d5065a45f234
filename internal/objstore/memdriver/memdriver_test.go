package memdriver

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchflow/latchflow/internal/objstore"
)

func TestPutGetRoundTrip(t *testing.T) {
	d := New()
	ctx := context.Background()

	etag, err := d.Put(ctx, "objects/sha256/ab/cd/abcd...", strings.NewReader("hello world"), 11, "text/plain")
	require.NoError(t, err)
	assert.NotEmpty(t, etag)

	rc, info, err := d.Get(ctx, "objects/sha256/ab/cd/abcd...")
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, int64(11), info.Size)
	assert.Equal(t, etag, info.ETag)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	d := New()
	_, _, err := d.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, objstore.ErrNotFound)
}

func TestHeadMissingReturnsNotFound(t *testing.T) {
	d := New()
	_, err := d.Head(context.Background(), "missing")
	assert.ErrorIs(t, err, objstore.ErrNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	d := New()
	ctx := context.Background()
	_, err := d.Put(ctx, "k", strings.NewReader("x"), 1, "text/plain")
	require.NoError(t, err)

	require.NoError(t, d.Delete(ctx, "k"))
	require.NoError(t, d.Delete(ctx, "k")) // deleting twice is not an error

	_, _, err = d.Get(ctx, "k")
	assert.ErrorIs(t, err, objstore.ErrNotFound)
}

func TestPresignPutNotSupported(t *testing.T) {
	d := New()
	assert.False(t, d.SupportsSignedPut())
	_, err := d.PresignPut(context.Background(), "k", 60)
	assert.ErrorIs(t, err, objstore.ErrNotSupported)
}
