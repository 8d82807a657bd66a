// Package composer stages a manifest's sources and local dependencies and
// emits a deterministic, signed ZIP egg archive (C7). The fixed-timestamp,
// sorted-entry ZIP emission (ZipInfo.date_time = (1980,1,1,0,0,0),
// ZIP_DEFLATED, sorted relative paths) is generalized into Go's
// archive/zip, paired with a content-addressed, deterministic-naming
// staging style.
package composer

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/henhouse/egg/eggerrs"
	"github.com/henhouse/egg/events"
	"github.com/henhouse/egg/hashindex"
	"github.com/henhouse/egg/manifest"
	"github.com/henhouse/egg/runtime"
	"github.com/henhouse/egg/signer"
)

// zipEntry pairs an archive-relative POSIX path with its absolute location
// in the staging tree.
type zipEntry struct {
	rel string
	abs string
}

// fixedModTime is the timestamp embedded in every archive entry, making the
// emitted bytes independent of wall-clock time and filesystem mtimes.
var fixedModTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Options configures a single Compose invocation.
type Options struct {
	ManifestPath string
	OutputPath   string
	Dependencies []runtime.Resolved
	SigningKey   []byte // seed; derived via signer.DeriveSigningKey
	Broadcaster  *events.Broadcaster
}

// Compose builds a staging tree from manifest-path, copies every cell
// source and resolved local dependency into it, computes and signs its
// HashIndex, and emits a deterministic ZIP at Options.OutputPath. The
// staging directory is destroyed on every exit path.
func Compose(ctx context.Context, opts Options) error {
	m, err := manifest.Load(opts.ManifestPath)
	if err != nil {
		return err
	}
	manifestDir := filepath.Dir(opts.ManifestPath)

	stagingDir, err := os.MkdirTemp("", "egg-compose-"+uuid.NewString())
	if err != nil {
		return eggerrs.Wrap(eggerrs.KindMissingSource, err, "create staging directory")
	}
	defer os.RemoveAll(stagingDir)

	notify := func(step, format string, args ...interface{}) {
		if opts.Broadcaster != nil {
			opts.Broadcaster.Publish("build", step, format, args...)
		}
	}

	notify("stage-manifest", "copying manifest")
	if err := copyFile(opts.ManifestPath, filepath.Join(stagingDir, "manifest.yaml")); err != nil {
		return eggerrs.Wrap(eggerrs.KindMissingSource, err, "stage manifest")
	}

	for _, cell := range m.Cells {
		src := filepath.Join(manifestDir, filepath.FromSlash(cell.Source))
		if _, err := os.Stat(src); err != nil {
			return eggerrs.New(eggerrs.KindMissingSource, "%s (referenced from %s)", src, opts.ManifestPath)
		}
		dst := filepath.Join(stagingDir, filepath.FromSlash(cell.Source))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return eggerrs.Wrap(eggerrs.KindMissingSource, err, "stage %s", cell.Source)
		}
		if err := copyFile(src, dst); err != nil {
			return eggerrs.Wrap(eggerrs.KindMissingSource, err, "stage %s", cell.Source)
		}
		notify("stage-cell", "staged %s (%s)", cell.Source, cell.Language)
	}

	runtimeDir := filepath.Join(stagingDir, "runtime")
	seenBasenames := make(map[string]string)
	for _, dep := range opts.Dependencies {
		if dep.LocalPath == "" {
			continue // image-ref dependency resolved to a registry reference, not a local blob: nothing to stage
		}
		base := filepath.Base(dep.LocalPath)
		if prior, exists := seenBasenames[base]; exists {
			return eggerrs.New(eggerrs.KindDupDep, "%s and %s both resolve to runtime/%s", prior, dep.LocalPath, base)
		}
		seenBasenames[base] = dep.LocalPath

		if err := os.MkdirAll(runtimeDir, 0o755); err != nil {
			return eggerrs.Wrap(eggerrs.KindMissingSource, err, "create runtime dir")
		}
		if err := copyFile(dep.LocalPath, filepath.Join(runtimeDir, base)); err != nil {
			return eggerrs.Wrap(eggerrs.KindMissingSource, err, "stage dependency %s", dep.LocalPath)
		}
		notify("stage-dependency", "staged runtime/%s", base)
	}

	files, err := hashindex.WalkDir(stagingDir)
	if err != nil {
		return eggerrs.Wrap(eggerrs.KindHashIndex, err, "walk staging dir")
	}
	idx, err := hashindex.Compute(files, stagingDir)
	if err != nil {
		return err
	}
	notify("hash-index", "computed digests for %d files", len(idx))

	hashesBytes, err := idx.Marshal()
	if err != nil {
		return eggerrs.Wrap(eggerrs.KindHashIndex, err, "marshal hashes.yaml")
	}
	if err := os.WriteFile(filepath.Join(stagingDir, "hashes.yaml"), hashesBytes, 0o644); err != nil {
		return eggerrs.Wrap(eggerrs.KindHashIndex, err, "write hashes.yaml")
	}

	sk := signer.DeriveSigningKey(opts.SigningKey)
	sig := signer.Sign(sk, hashesBytes)
	sigHex := signer.EncodeHex(sig)
	if err := os.WriteFile(filepath.Join(stagingDir, "hashes.sig"), []byte(sigHex), 0o644); err != nil {
		return eggerrs.Wrap(eggerrs.KindSignature, err, "write hashes.sig")
	}
	notify("sign", "signed hashes.yaml")

	if err := emitZip(stagingDir, opts.OutputPath); err != nil {
		return err
	}
	notify("emit", "wrote %s", opts.OutputPath)

	return nil
}

// emitZip enumerates every staged file, sorts by POSIX relative path, and
// writes each entry with a fixed timestamp and DEFLATE compression — no
// directory entries, no OS-dependent attributes, so two Compose runs over
// identical inputs produce byte-identical archives regardless of
// filesystem enumeration order.
func emitZip(stagingDir, outputPath string) error {
	files, err := hashindex.WalkDir(stagingDir)
	if err != nil {
		return eggerrs.Wrap(eggerrs.KindHashIndex, err, "walk staging dir")
	}

	entries := make([]zipEntry, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(stagingDir, f)
		if err != nil {
			return eggerrs.Wrap(eggerrs.KindHashIndex, err, "relativize %s", f)
		}
		entries = append(entries, zipEntry{rel: filepath.ToSlash(rel), abs: f})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	tmp := outputPath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return eggerrs.Wrap(eggerrs.KindMissingSource, err, "create output")
	}

	zw := zip.NewWriter(out)
	writeErr := func() error {
		for _, e := range entries {
			hdr := &zip.FileHeader{
				Name:     e.rel,
				Method:   zip.Deflate,
				Modified: fixedModTime,
			}
			w, err := zw.CreateHeader(hdr)
			if err != nil {
				return err
			}
			src, err := os.Open(e.abs)
			if err != nil {
				return err
			}
			_, copyErr := io.Copy(w, src)
			src.Close()
			if copyErr != nil {
				return copyErr
			}
		}
		return nil
	}()

	closeErr := zw.Close()
	syncErr := out.Sync()
	out.Close()

	if writeErr != nil || closeErr != nil || syncErr != nil {
		os.Remove(tmp)
		if writeErr != nil {
			return eggerrs.Wrap(eggerrs.KindMissingSource, writeErr, "write archive entries")
		}
		if closeErr != nil {
			return eggerrs.Wrap(eggerrs.KindMissingSource, closeErr, "finalize archive")
		}
		return eggerrs.Wrap(eggerrs.KindMissingSource, syncErr, "sync archive")
	}

	if err := os.Rename(tmp, outputPath); err != nil {
		os.Remove(tmp)
		return eggerrs.Wrap(eggerrs.KindMissingSource, err, "rename archive into place")
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
