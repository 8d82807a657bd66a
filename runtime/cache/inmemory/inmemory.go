// Package inmemory is a Backend used by this module's own tests, adapted
// from storagedriver/inmemory's map-backed driver.
package inmemory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/henhouse/egg/runtime/cache"
)

func init() {
	cache.Register("inmemory", func(map[string]string) (cache.Backend, error) {
		return New(), nil
	})
}

// Driver is a goroutine-safe in-memory Backend.
type Driver struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// New returns an empty Driver.
func New() *Driver {
	return &Driver{blobs: map[string][]byte{}}
}

func (d *Driver) Has(_ context.Context, key string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.blobs[key]
	return ok, nil
}

func (d *Driver) Get(_ context.Context, key string) (io.ReadCloser, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.blobs[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (d *Driver) Put(_ context.Context, key string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blobs[key] = b
	return nil
}
