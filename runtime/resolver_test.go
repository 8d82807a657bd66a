package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveLocalPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "helper.py"), []byte("pass"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Resolve(context.Background(), []string{"helper.py"}, dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 1 || got[0].LocalPath != filepath.Join(dir, "helper.py") {
		t.Fatalf("unexpected resolution: %+v", got)
	}
}

func TestResolveMissingLocalPath(t *testing.T) {
	dir := t.TempDir()
	if _, err := Resolve(context.Background(), []string{"missing.py"}, dir); err == nil {
		t.Fatal("expected error for missing dependency")
	}
}

func TestResolveDuplicateEntry(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.py"), []byte("pass"), 0o644)

	_, err := Resolve(context.Background(), []string{"a.py", "a.py"}, dir)
	if err == nil {
		t.Fatal("expected duplicate-dependency error")
	}
}

func TestResolveEscapingLocalPath(t *testing.T) {
	dir := t.TempDir()
	if _, err := Resolve(context.Background(), []string{"../../etc/passwd"}, dir); err == nil {
		t.Fatal("expected path-escape error")
	}
}

func TestResolveImageRefUnresolvedWithoutRegistry(t *testing.T) {
	os.Unsetenv("EGG_REGISTRY_URL")
	dir := t.TempDir()

	got, err := Resolve(context.Background(), []string{"python:3.11"}, dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 1 || got[0].ImageRef != "python:3.11" || got[0].LocalPath != "" {
		t.Fatalf("expected unresolved image ref, got %+v", got)
	}
}

func TestResolveImageRefFetchesAndCaches(t *testing.T) {
	const body = "fake-runtime-image-bytes"
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(body))
	}))
	defer srv.Close()

	t.Setenv("EGG_REGISTRY_URL", srv.URL)
	dir := t.TempDir()

	got, err := Resolve(context.Background(), []string{"python:3.11"}, dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 1 || got[0].LocalPath == "" {
		t.Fatalf("expected fetched local path, got %+v", got)
	}
	data, err := os.ReadFile(got[0].LocalPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != body {
		t.Fatalf("unexpected downloaded contents: %q", data)
	}

	// Second resolve against the same directory must not refetch: the
	// destination already exists.
	if _, err := Resolve(context.Background(), []string{"python:3.11"}, dir); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected exactly one HTTP request, got %d", requests)
	}
}

func TestResolveImageRefUnsafeRepo(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EGG_REGISTRY_URL", "http://example.invalid")
	if _, err := Resolve(context.Background(), []string{"../escape:1.0"}, dir); err == nil {
		t.Fatal("expected unsafe-path error for escaping repo")
	}
}

func TestResolveImageRefWithMatchingDigestSkipsRefetch(t *testing.T) {
	const body = "fake-runtime-image-bytes"
	sum := sha256.Sum256([]byte(body))
	wantHex := hex.EncodeToString(sum[:])

	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(body))
	}))
	defer srv.Close()

	t.Setenv("EGG_REGISTRY_URL", srv.URL)
	dir := t.TempDir()

	entry := "python:3.11@sha256:" + wantHex
	got, err := Resolve(context.Background(), []string{entry}, dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 1 || got[0].LocalPath == "" {
		t.Fatalf("expected fetched local path, got %+v", got)
	}
	if got[0].Entry != entry {
		t.Fatalf("expected Entry to carry the digest verbatim, got %q", got[0].Entry)
	}

	if _, err := Resolve(context.Background(), []string{entry}, dir); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected exactly one HTTP request for a matching digest, got %d", requests)
	}
}

func TestResolveImageRefWithMismatchedDigestFails(t *testing.T) {
	const body = "fake-runtime-image-bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	t.Setenv("EGG_REGISTRY_URL", srv.URL)
	dir := t.TempDir()

	entry := "python:3.11@sha256:" + strings.Repeat("0", 64)
	if _, err := Resolve(context.Background(), []string{entry}, dir); err == nil {
		t.Fatal("expected checksum error for a mismatched expected digest")
	}
	if _, err := os.Stat(filepath.Join(dir, "python_3.11.img")); !os.IsNotExist(err) {
		t.Fatalf("expected no blob left behind after a checksum mismatch, stat err: %v", err)
	}
}

func TestResolveImageRefRedownloadsOnDigestChange(t *testing.T) {
	bodies := []string{"first-runtime-image", "second-runtime-image"}
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(bodies[requests]))
		requests++
	}))
	defer srv.Close()

	t.Setenv("EGG_REGISTRY_URL", srv.URL)
	dir := t.TempDir()

	sumA := sha256.Sum256([]byte(bodies[0]))
	entryA := "python:3.11@sha256:" + hex.EncodeToString(sumA[:])
	if _, err := Resolve(context.Background(), []string{entryA}, dir); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected one request after the first resolve, got %d", requests)
	}

	sumB := sha256.Sum256([]byte(bodies[1]))
	entryB := "python:3.11@sha256:" + hex.EncodeToString(sumB[:])
	got, err := Resolve(context.Background(), []string{entryB}, dir)
	if err != nil {
		t.Fatalf("second Resolve with a different digest: %v", err)
	}
	if requests != 2 {
		t.Fatalf("expected a second request after the digest changed, got %d", requests)
	}
	data, err := os.ReadFile(got[0].LocalPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != bodies[1] {
		t.Fatalf("expected the re-downloaded blob, got %q", data)
	}
}
