package precompute

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/henhouse/egg/langtable"
	"github.com/henhouse/egg/manifest"
)

func writeManifest(t *testing.T, dir string) *manifest.Manifest {
	t.Helper()
	cellPath := filepath.Join(dir, "cell.sh")
	if err := os.WriteFile(cellPath, []byte("echo hello"), 0o755); err != nil {
		t.Fatal(err)
	}
	m, err := manifest.Parse([]byte("name: demo\ndescription: d\ncells:\n  - language: bash\n    source: cell.sh\n"), dir)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestRunExecutesAndCaches(t *testing.T) {
	dir := t.TempDir()
	m := writeManifest(t, dir)
	table := langtable.New(map[string][]string{"bash": {"bash"}})

	if err := Run(context.Background(), m, Options{ManifestDir: dir, Table: table, Timeout: 5 * time.Second}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out, err := os.ReadFile(filepath.Join(dir, "cell.sh.out"))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "hello\n" {
		t.Fatalf("unexpected output: %q", out)
	}

	cache, err := LoadCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cache["cell.sh"]; !ok {
		t.Fatal("expected cache entry for cell.sh")
	}
}

func TestRunSkipsUnchangedSource(t *testing.T) {
	dir := t.TempDir()
	m := writeManifest(t, dir)
	table := langtable.New(map[string][]string{"bash": {"bash"}})

	if err := Run(context.Background(), m, Options{ManifestDir: dir, Table: table, Timeout: 5 * time.Second}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	outPath := filepath.Join(dir, "cell.sh.out")
	firstInfo, err := os.Stat(outPath)
	if err != nil {
		t.Fatal(err)
	}

	if err := Run(context.Background(), m, Options{ManifestDir: dir, Table: table, Timeout: 5 * time.Second}); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	secondInfo, err := os.Stat(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !firstInfo.ModTime().Equal(secondInfo.ModTime()) {
		t.Fatal("expected second run to reuse cached output without re-executing")
	}
}

func TestRunUnsupportedLanguage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cell.rb"), []byte("puts 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := manifest.Parse([]byte("name: demo\ndescription: d\ncells:\n  - language: ruby\n    source: cell.rb\n"), dir)
	if err != nil {
		t.Fatal(err)
	}
	table := langtable.New(nil)

	if err := Run(context.Background(), m, Options{ManifestDir: dir, Table: table, Timeout: time.Second}); err == nil {
		t.Fatal("expected unsupported-language error")
	}
}

func TestRunLanguageFilter(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.sh"), []byte("echo a"), 0o755)
	os.WriteFile(filepath.Join(dir, "b.py"), []byte("print(1)"), 0o644)
	m, err := manifest.Parse([]byte(
		"name: demo\ndescription: d\ncells:\n  - language: bash\n    source: a.sh\n  - language: python\n    source: b.py\n"),
		dir)
	if err != nil {
		t.Fatal(err)
	}
	table := langtable.New(map[string][]string{"bash": {"bash"}, "python": {"python3"}})

	err = Run(context.Background(), m, Options{ManifestDir: dir, Table: table, Timeout: 5 * time.Second, Languages: []string{"bash"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.sh.out")); err != nil {
		t.Fatalf("expected a.sh.out to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "b.py.out")); err == nil {
		t.Fatal("expected b.py.out to be absent: python was filtered out")
	}
}
