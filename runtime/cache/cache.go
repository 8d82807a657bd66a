// Package cache defines the pluggable backend RuntimeResolver uses to
// share fetched runtime images across hosts. Each backend registers itself
// by name at init time, and callers select one by name rather than
// importing a concrete type.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrNotFound is returned by Backend.Get when key has no blob.
var ErrNotFound = errors.New("cache: key not found")

// Backend is a minimal key/blob store for fetched runtime images. Has/Get/
// Put all key by the same opaque string RuntimeResolver derives from the
// registry entry.
type Backend interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, r io.Reader) error
}

// Factory constructs a Backend from a parameters map, mirroring
// storagedriver/factory.StorageDriverFactory.
type Factory func(parameters map[string]string) (Backend, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds a named backend factory. Backend packages call this from
// an init() func, the same self-registration idiom as
// storagedriver/filesystem and storagedriver/s3.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// Create instantiates the named backend.
func Create(name string, parameters map[string]string) (Backend, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("cache: no backend registered with name %q", name)
	}
	return f(parameters)
}
