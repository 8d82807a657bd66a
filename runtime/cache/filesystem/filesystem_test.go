package filesystem

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/henhouse/egg/runtime/cache"
)

func TestPutGetHasRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := New(t.TempDir())

	if has, err := d.Has(ctx, "blob"); err != nil || has {
		t.Fatalf("expected Has to report false before Put, got %v, %v", has, err)
	}

	if err := d.Put(ctx, "blob", bytes.NewReader([]byte("payload"))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if has, err := d.Has(ctx, "blob"); err != nil || !has {
		t.Fatalf("expected Has to report true after Put, got %v, %v", has, err)
	}

	rc, err := d.Get(ctx, "blob")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected blob contents: %q", data)
	}
}

func TestPutOverwritesAtomically(t *testing.T) {
	ctx := context.Background()
	d := New(t.TempDir())

	if err := d.Put(ctx, "blob", bytes.NewReader([]byte("first"))); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if err := d.Put(ctx, "blob", bytes.NewReader([]byte("second"))); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	rc, err := d.Get(ctx, "blob")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "second" {
		t.Fatalf("expected the second Put to win, got %q", data)
	}
}

func TestRegisteredUnderFilesystemName(t *testing.T) {
	b, err := cache.Create("filesystem", map[string]string{"rootdirectory": t.TempDir()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := b.(*Driver); !ok {
		t.Fatalf("expected a *Driver from the filesystem factory, got %T", b)
	}
}
