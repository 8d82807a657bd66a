package inmemory

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/henhouse/egg/runtime/cache"
)

func TestPutGetHasRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := New()

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

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	d := New()
	if _, err := d.Get(context.Background(), "missing"); err != cache.ErrNotFound {
		t.Fatalf("expected cache.ErrNotFound, got %v", err)
	}
}

func TestRegisteredUnderInmemoryName(t *testing.T) {
	b, err := cache.Create("inmemory", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := b.(*Driver); !ok {
		t.Fatalf("expected a *Driver from the inmemory factory, got %T", b)
	}
}
