package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
name: Demo
description: two
cells:
  - language: python
    source: hello.py
  - language: r
    source: hello.R
`)
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "Demo" || len(m.Cells) != 2 {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	if m.Cells[0].Source != "hello.py" || m.Cells[1].Source != "hello.R" {
		t.Fatalf("unexpected cell sources: %+v", m.Cells)
	}
	if got := m.Languages(); len(got) != 2 || got[0] != "python" || got[1] != "r" {
		t.Fatalf("unexpected languages: %v", got)
	}
}

func TestRejectsUnknownRootField(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
name: Demo
description: two
cells: []
bogus_field: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown root field")
	}
}

func TestRejectsExtraCellKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
name: Demo
description: two
cells:
  - language: python
    source: hello.py
    extra: nope
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for extra cell key")
	}
}

func TestRejectsMissingRequiredFields(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
cells: []
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing name/description")
	}
}

func TestRejectsEscapingCellSource(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
name: Demo
description: escape
cells:
  - language: python
    source: ../evil.py
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for escaping cell source")
	}
}

func TestMissingManifestFile(t *testing.T) {
	if _, err := Load("/nonexistent/manifest.yaml"); err == nil {
		t.Fatal("expected error for missing manifest file")
	}
}
