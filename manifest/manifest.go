// Package manifest parses and validates the egg manifest (C4), a closed
// YAML schema read with gopkg.in/yaml.v2's UnmarshalStrict, which already
// rejects unknown fields, so no additional decoding library (e.g.
// mitchellh/mapstructure) is pulled in for a concern yaml.v2 covers.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/henhouse/egg/eggerrs"
	"github.com/henhouse/egg/pathguard"
	yaml "gopkg.in/yaml.v2"
)

// Cell is a single (language, source) unit of a notebook. Source is stored
// normalized: POSIX-style, relative to the manifest directory, and provably
// contained in it.
type Cell struct {
	Language string `yaml:"language"`
	Source   string `yaml:"source"`
}

// Manifest is the in-memory, validated representation of manifest.yaml.
// Field order in the YAML decides Cells/Dependencies iteration order, which
// is semantically significant (execution order, packaging order).
type Manifest struct {
	Name         string
	Description  string
	Cells        []Cell
	Permissions  map[string]bool
	Dependencies []string
	Author       string
	Created      string
	License      string
}

// rawManifest mirrors the closed on-disk schema exactly; yaml.UnmarshalStrict
// against this type is what makes "unknown root fields rejected" enforceable
// without hand-rolled reflection.
type rawManifest struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	Cells        []rawCell         `yaml:"cells"`
	Permissions  map[string]bool   `yaml:"permissions,omitempty"`
	Dependencies []string          `yaml:"dependencies,omitempty"`
	Author       string            `yaml:"author,omitempty"`
	Created      string            `yaml:"created,omitempty"`
	License      string            `yaml:"license,omitempty"`
}

type rawCell struct {
	Language string `yaml:"language"`
	Source   string `yaml:"source"`
}

// Load reads, parses and validates the manifest at path, normalizing every
// Cell.Source against the manifest's containing directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eggerrs.Wrap(eggerrs.KindManifest, err, "manifest not found: %s", path)
		}
		return nil, eggerrs.Wrap(eggerrs.KindManifest, err, "read manifest: %s", path)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse validates raw manifest YAML bytes, normalizing Cell.Source paths
// against manifestDir.
func Parse(data []byte, manifestDir string) (*Manifest, error) {
	var raw rawManifest
	if err := yaml.UnmarshalStrict(data, &raw); err != nil {
		return nil, eggerrs.Wrap(eggerrs.KindManifest, err, "schema validation failed")
	}

	if raw.Name == "" {
		return nil, eggerrs.New(eggerrs.KindManifest, "field %q is required", "name")
	}
	if raw.Description == "" {
		return nil, eggerrs.New(eggerrs.KindManifest, "field %q is required", "description")
	}

	cells := make([]Cell, 0, len(raw.Cells))
	for i, rc := range raw.Cells {
		if rc.Language == "" {
			return nil, eggerrs.New(eggerrs.KindManifest, "cells[%d].language is required", i)
		}
		if rc.Source == "" {
			return nil, eggerrs.New(eggerrs.KindManifest, "cells[%d].source is required", i)
		}
		rel, err := pathguard.Normalize(manifestDir, rc.Source)
		if err != nil {
			return nil, eggerrs.Wrap(eggerrs.KindPath, err, "cells[%d].source", i)
		}
		cells = append(cells, Cell{Language: rc.Language, Source: rel})
	}

	return &Manifest{
		Name:         raw.Name,
		Description:  raw.Description,
		Cells:        cells,
		Permissions:  raw.Permissions,
		Dependencies: raw.Dependencies,
		Author:       raw.Author,
		Created:      raw.Created,
		License:      raw.License,
	}, nil
}

// Languages returns the distinct languages referenced by Cells, in
// first-seen order, as required by SandboxPlanner.
func (m *Manifest) Languages() []string {
	seen := make(map[string]bool, len(m.Cells))
	var out []string
	for _, c := range m.Cells {
		if !seen[c.Language] {
			seen[c.Language] = true
			out = append(out, c.Language)
		}
	}
	return out
}

// Summary renders the fixed human-readable report used by the Info
// pipeline.
func (m *Manifest) Summary() string {
	s := fmt.Sprintf("name: %s\ndescription: %s\n", m.Name, m.Description)
	if m.Author != "" {
		s += fmt.Sprintf("author: %s\n", m.Author)
	}
	if m.License != "" {
		s += fmt.Sprintf("license: %s\n", m.License)
	}
	if m.Created != "" {
		s += fmt.Sprintf("created: %s\n", m.Created)
	}
	s += fmt.Sprintf("cells: %d\n", len(m.Cells))
	for _, c := range m.Cells {
		s += fmt.Sprintf("  - %s: %s\n", c.Language, c.Source)
	}
	if len(m.Dependencies) > 0 {
		s += fmt.Sprintf("dependencies: %d\n", len(m.Dependencies))
		for _, d := range m.Dependencies {
			s += fmt.Sprintf("  - %s\n", d)
		}
	}
	if len(m.Permissions) > 0 {
		s += "permissions:\n"
		for k, v := range m.Permissions {
			s += fmt.Sprintf("  %s: %t\n", k, v)
		}
	}
	return s
}
