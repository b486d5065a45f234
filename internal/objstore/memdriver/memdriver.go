// Package memdriver is the in-process reference implementation of
// objstore.Driver, backed by a map guarded by a mutex. Grounded on the
// teacher's (pre-trim) internal/storage/memory/memory_storage.go
// map+RWMutex pattern, adapted from alert-blob storage to content-keyed
// object storage. Intended for tests and single-process development; the
// spec's on-disk/object-storage deployment path is a separate Driver.
package memdriver

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/latchflow/latchflow/internal/hashutil"
	"github.com/latchflow/latchflow/internal/objstore"
)

type entry struct {
	data        []byte
	etag        string
	contentType string
}

// Driver is an in-memory objstore.Driver. The zero value is not usable;
// construct with New.
type Driver struct {
	mu      sync.RWMutex
	objects map[string]entry
}

// New constructs an empty in-memory driver.
func New() *Driver {
	return &Driver{objects: make(map[string]entry)}
}

func (d *Driver) Put(_ context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	buf := make([]byte, 0, size)
	w := bytes.NewBuffer(buf)
	if _, err := io.Copy(w, body); err != nil {
		return "", err
	}
	data := w.Bytes()
	etag := hashutil.SHA256Hex(data)

	d.mu.Lock()
	d.objects[key] = entry{data: data, etag: etag, contentType: contentType}
	d.mu.Unlock()

	return etag, nil
}

func (d *Driver) Get(_ context.Context, key string) (io.ReadCloser, objstore.ObjectInfo, error) {
	d.mu.RLock()
	e, ok := d.objects[key]
	d.mu.RUnlock()
	if !ok {
		return nil, objstore.ObjectInfo{}, objstore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(e.data)), objstore.ObjectInfo{
		Key:  key,
		Size: int64(len(e.data)),
		ETag: e.etag,
	}, nil
}

func (d *Driver) Head(_ context.Context, key string) (objstore.ObjectInfo, error) {
	d.mu.RLock()
	e, ok := d.objects[key]
	d.mu.RUnlock()
	if !ok {
		return objstore.ObjectInfo{}, objstore.ErrNotFound
	}
	return objstore.ObjectInfo{Key: key, Size: int64(len(e.data)), ETag: e.etag}, nil
}

func (d *Driver) Delete(_ context.Context, key string) error {
	d.mu.Lock()
	delete(d.objects, key)
	d.mu.Unlock()
	return nil
}

func (d *Driver) SupportsSignedPut() bool { return false }

func (d *Driver) PresignPut(context.Context, string, int) (string, error) {
	return "", objstore.ErrNotSupported
}

// Len reports the number of stored objects; exported for test assertions.
func (d *Driver) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.objects)
}
