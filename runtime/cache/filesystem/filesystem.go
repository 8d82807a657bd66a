// Package filesystem is the default runtime fetch cache backend, storing
// fetched runtime image blobs as plain files under a root directory.
// Adapted from storagedriver/filesystem/driver.go's rootDirectory +
// subPath shape.
package filesystem

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/henhouse/egg/runtime/cache"
)

func init() {
	cache.Register("filesystem", func(parameters map[string]string) (cache.Backend, error) {
		root := parameters["rootdirectory"]
		if root == "" {
			root = "."
		}
		return New(root), nil
	})
}

// Driver stores cache entries as files under Root.
type Driver struct {
	Root string
}

// New returns a Driver rooted at root.
func New(root string) *Driver {
	return &Driver{Root: root}
}

func (d *Driver) path(key string) string {
	return filepath.Join(d.Root, filepath.FromSlash(key))
}

// Has reports whether key exists on disk.
func (d *Driver) Has(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(d.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get opens the file backing key.
func (d *Driver) Get(_ context.Context, key string) (io.ReadCloser, error) {
	return os.Open(d.path(key))
}

// Put atomically writes r to key via a temp-file-then-rename, so a reader
// never observes a partially written cache entry.
func (d *Driver) Put(_ context.Context, key string, r io.Reader) error {
	dst := d.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
