// Package pathguard confines untrusted relative paths to a root directory
// (C1 of the egg trust pipeline). It is the single place path traversal and
// absolute-path escapes are rejected; every other component calls into it
// rather than re-deriving containment logic.
package pathguard

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/henhouse/egg/eggerrs"
)

// Normalize resolves p against root and returns its POSIX-style path
// relative to root. It fails if p is absolute, or if the resolved path
// would not be contained in root. Resolution is purely lexical: it does not
// require the path to exist, so it can validate manifest entries before any
// file is touched.
func Normalize(root, p string) (string, error) {
	if p == "" {
		return "", eggerrs.New(eggerrs.KindPath, "empty path")
	}
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return "", eggerrs.New(eggerrs.KindPath, "absolute source path not allowed: %s", p)
	}
	if hasWindowsDrivePrefix(p) {
		return "", eggerrs.New(eggerrs.KindPath, "drive-prefixed path not allowed: %s", p)
	}

	absRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return "", eggerrs.Wrap(eggerrs.KindPath, err, "resolve root %s", root)
	}

	joined := filepath.Join(absRoot, filepath.FromSlash(p))
	resolved := lexicalResolve(joined)

	rel, err := filepath.Rel(absRoot, resolved)
	if err != nil {
		return "", eggerrs.Wrap(eggerrs.KindPath, err, "relativize %s", p)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", eggerrs.New(eggerrs.KindPath, "source path escapes root: %s", p)
	}

	return filepath.ToSlash(rel), nil
}

// lexicalResolve collapses ".." and "." segments without requiring the path
// to exist on disk, emulating Path.resolve(strict=False) from the original
// Python implementation.
func lexicalResolve(p string) string {
	return filepath.Clean(p)
}

func hasWindowsDrivePrefix(p string) bool {
	if len(p) < 2 {
		return false
	}
	c := p[0]
	return p[1] == ':' && ((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'))
}

// IsSafeArchivePath reports whether s is a valid archive-internal entry
// name: non-empty, relative (POSIX), free of ".." segments and free of a
// Windows drive prefix. Applied to every entry name during verification
// before any I/O is performed against it (fail-closed).
func IsSafeArchivePath(s string) bool {
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "/") || hasWindowsDrivePrefix(s) {
		return false
	}
	if strings.Contains(s, "\\") {
		return false
	}
	cleaned := path.Clean(s)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return false
	}
	for _, seg := range strings.Split(s, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}
