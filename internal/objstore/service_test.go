package objstore_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchflow/latchflow/internal/objstore"
	"github.com/latchflow/latchflow/internal/objstore/memdriver"
)

func TestPutDerivesContentAddressedKey(t *testing.T) {
	svc := objstore.New(memdriver.New(), "bucket")

	stored, err := svc.Put(context.Background(), strings.NewReader("file contents"), "text/plain")
	require.NoError(t, err)

	assert.Equal(t, 64, len(stored.ContentHash))
	assert.Equal(t, "bucket/objects/sha256/"+stored.ContentHash[0:2]+"/"+stored.ContentHash[2:4]+"/"+stored.ContentHash, stored.Key)
	assert.Equal(t, int64(len("file contents")), stored.Size)
}

func TestPutIsIdempotentForIdenticalContent(t *testing.T) {
	svc := objstore.New(memdriver.New(), "")

	first, err := svc.Put(context.Background(), strings.NewReader("same bytes"), "text/plain")
	require.NoError(t, err)
	second, err := svc.Put(context.Background(), strings.NewReader("same bytes"), "text/plain")
	require.NoError(t, err)

	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, first.ContentHash, second.ContentHash)
}

func TestGetReturnsStoredContent(t *testing.T) {
	svc := objstore.New(memdriver.New(), "")

	stored, err := svc.Put(context.Background(), strings.NewReader("round trip me"), "text/plain")
	require.NoError(t, err)

	rc, info, err := svc.Get(context.Background(), stored.Key)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "round trip me", string(data))
	assert.Equal(t, stored.Size, info.Size)
}

func TestHeadAndDelete(t *testing.T) {
	svc := objstore.New(memdriver.New(), "")

	stored, err := svc.Put(context.Background(), strings.NewReader("head me"), "text/plain")
	require.NoError(t, err)

	info, err := svc.Head(context.Background(), stored.Key)
	require.NoError(t, err)
	assert.Equal(t, stored.Size, info.Size)

	require.NoError(t, svc.Delete(context.Background(), stored.Key))

	_, _, err = svc.Get(context.Background(), stored.Key)
	assert.ErrorIs(t, err, objstore.ErrNotFound)
}

func TestSupportsSignedPutReflectsDriver(t *testing.T) {
	svc := objstore.New(memdriver.New(), "")
	assert.False(t, svc.SupportsSignedPut())

	_, err := svc.PresignPut(context.Background(), "deadbeef", 60)
	assert.Error(t, err)
}
