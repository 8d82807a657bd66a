// Package hashindex builds and (de)serializes the per-archive digest map
// (C6): the authoritative mapping of archive-internal POSIX path to
// 64-char lowercase hex SHA-256 that Composer signs and Verifier checks
// against.
package hashindex

import (
	"io"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/henhouse/egg/digest"
	"github.com/henhouse/egg/eggerrs"
	yaml "gopkg.in/yaml.v2"
)

// HashIndex maps archive-internal POSIX path to SHA-256 hex digest.
type HashIndex map[string]string

// Compute walks files (already-staged, absolute paths) and returns a
// HashIndex keyed by each file's path relative to base, in POSIX form. A
// duplicate key (two files resolving to the same relative path) is an
// error.
func Compute(files []string, base string) (HashIndex, error) {
	idx := make(HashIndex, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(base, f)
		if err != nil {
			return nil, eggerrs.Wrap(eggerrs.KindHashIndex, err, "relativize %s", f)
		}
		rel = filepath.ToSlash(rel)
		if _, exists := idx[rel]; exists {
			return nil, eggerrs.New(eggerrs.KindHashIndex, "duplicate entry: %s", rel)
		}
		d, err := digest.FromFile(f)
		if err != nil {
			return nil, eggerrs.Wrap(eggerrs.KindHashIndex, err, "digest %s", f)
		}
		idx[rel] = d.Hex()
	}
	return idx, nil
}

// SortedKeys returns the index's keys in ascending lexicographic order, the
// order entries are written to both hashes.yaml and the ZIP archive.
func (h HashIndex) SortedKeys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Marshal serializes h with keys sorted ascending, using an ordered
// yaml.MapSlice so re-marshaling is guaranteed to preserve sorted-key order
// byte-for-byte, which Compose's determinism property depends on. The returned bytes are
// exactly what gets signed and written to hashes.yaml.
func (h HashIndex) Marshal() ([]byte, error) {
	ms := make(yaml.MapSlice, 0, len(h))
	for _, k := range h.SortedKeys() {
		ms = append(ms, yaml.MapItem{Key: k, Value: h[k]})
	}
	return yaml.Marshal(ms)
}

// Unmarshal parses hashes.yaml bytes into a HashIndex. An empty file
// produces an empty map; a non-mapping document, or any non-string key or
// value, is an error.
func Unmarshal(data []byte) (HashIndex, error) {
	if len(bytesTrimSpace(data)) == 0 {
		return HashIndex{}, nil
	}

	var raw map[interface{}]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eggerrs.Wrap(eggerrs.KindHashIndex, err, "parse hashes.yaml")
	}

	idx := make(HashIndex, len(raw))
	for k, v := range raw {
		ks, ok := k.(string)
		if !ok {
			return nil, eggerrs.New(eggerrs.KindHashIndex, "key %v is not a string", k)
		}
		s, ok := v.(string)
		if !ok {
			return nil, eggerrs.New(eggerrs.KindHashIndex, "value for %q is not a string", ks)
		}
		idx[ks] = s
	}
	return idx, nil
}

func bytesTrimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// DigestReader streams r through SHA-256 and returns the lowercase 64-char
// hex digest.
func DigestReader(r io.Reader) (string, error) {
	d, err := digest.FromReader(r)
	if err != nil {
		return "", err
	}
	return d.Hex(), nil
}

// WalkDir collects the absolute paths of every regular file under root, used
// by Composer to enumerate the staging tree before computing its HashIndex.
func WalkDir(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
