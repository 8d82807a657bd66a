// Package runtime resolves a manifest's dependency list into local blobs or
// unresolved registry references (C5). The checksum-verified download
// follows a blob-pull shape (fetch plus a streaming digest check)
// generalized from a layered blob protocol down to a single
// "<base>/<entry>.img" GET, since this module only ever fetches one flat
// runtime image per dependency rather than a layer graph. Downloaded blobs
// pass through a runtime/cache.Backend (filesystem by default, S3 when
// configured) so a second hatcher can skip the registry fetch entirely.
package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/henhouse/egg/eggconfig"
	"github.com/henhouse/egg/eggcontext"
	"github.com/henhouse/egg/eggerrs"
	"github.com/henhouse/egg/pathguard"
	"github.com/henhouse/egg/runtime/cache"
	_ "github.com/henhouse/egg/runtime/cache/filesystem"
	_ "github.com/henhouse/egg/runtime/cache/s3"
	"github.com/henhouse/egg/signer"
)

// digestSuffix marks an expected content digest appended to a registry
// dependency entry, "<repo>:<tag>@sha256:<hex>", the same "ref@digest"
// shape Docker image references use.
const digestSuffix = "@sha256:"

// logGranularity is how often download progress is logged, in bytes.
const logGranularity = 1 << 20 // 1 MiB

// Resolved is one dependency entry's resolution outcome: exactly one of
// LocalPath or ImageRef is set.
type Resolved struct {
	Entry     string // the manifest dependency string, verbatim
	LocalPath string // populated when the entry resolved to a file on disk
	ImageRef  string // populated when no registry base is configured, so the entry is returned unresolved
}

// Resolve resolves every dependency string in entries against manifestDir,
// in order, rejecting non-string-shaped duplicates and any entry that
// would escape manifestDir. manifestDir is both the root PathGuard confines
// local dependencies to and the destination directory for downloaded blobs.
func Resolve(ctx context.Context, entries []string, manifestDir string) ([]Resolved, error) {
	seen := make(map[string]bool, len(entries))
	out := make([]Resolved, 0, len(entries))

	for _, entry := range entries {
		if seen[entry] {
			return nil, eggerrs.New(eggerrs.KindDupDep, "duplicate dependency entry: %s", entry)
		}
		seen[entry] = true

		if strings.Contains(entry, ":") {
			r, err := resolveImageRef(ctx, entry, manifestDir)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
			continue
		}

		rel, err := pathguard.Normalize(manifestDir, entry)
		if err != nil {
			return nil, err
		}
		abs := filepath.Join(manifestDir, filepath.FromSlash(rel))
		if _, err := os.Stat(abs); err != nil {
			return nil, eggerrs.New(eggerrs.KindMissingSource, "dependency not found: %s", entry)
		}
		out = append(out, Resolved{Entry: entry, LocalPath: abs})
	}

	return out, nil
}

// resolveImageRef handles a "<repo>:<tag>"-shaped dependency, optionally
// suffixed with an expected digest ("<repo>:<tag>@sha256:<hex>"): a registry
// image reference, fetched and cached under manifestDir when a registry
// base URL is configured, otherwise returned unresolved.
func resolveImageRef(ctx context.Context, entry, manifestDir string) (Resolved, error) {
	ref, expectedHex := splitExpectedDigest(entry)

	repo := ref[:strings.IndexByte(ref, ':')]
	if strings.Contains(repo, "\\") {
		return Resolved{}, eggerrs.New(eggerrs.KindUnsafePath, "dependency repo contains a backslash: %s", entry)
	}
	if !pathguard.IsSafeArchivePath(repo) {
		return Resolved{}, eggerrs.New(eggerrs.KindUnsafePath, "dependency repo is not a safe path: %s", entry)
	}

	base, ok := eggconfig.RegistryBaseURL()
	if !ok {
		return Resolved{Entry: entry, ImageRef: entry}, nil
	}

	safeName := sanitizeName(ref)
	destRel, err := pathguard.Normalize(manifestDir, safeName+".img")
	if err != nil {
		return Resolved{}, eggerrs.Wrap(eggerrs.KindUnsafePath, err, "dependency %s destination escapes manifest directory", entry)
	}
	dest := filepath.Join(manifestDir, filepath.FromSlash(destRel))

	if prior, exists := claimedNames(manifestDir)[safeName]; exists && prior != ref {
		return Resolved{}, eggerrs.New(eggerrs.KindDupDep, "%s and %s both sanitize to %s", prior, ref, safeName)
	}
	recordClaimedName(manifestDir, safeName, ref)

	if err := download(ctx, base, ref, dest, expectedHex); err != nil {
		return Resolved{}, err
	}
	return Resolved{Entry: entry, LocalPath: dest}, nil
}

// splitExpectedDigest separates a dependency entry's registry reference from
// its optional trailing "@sha256:<hex>" expected digest.
func splitExpectedDigest(entry string) (ref, expectedHex string) {
	if idx := strings.Index(entry, digestSuffix); idx >= 0 {
		return entry[:idx], entry[idx+len(digestSuffix):]
	}
	return entry, ""
}

// sanitizeName replaces the path- and scheme-significant characters in a
// dependency entry so it can stand alone as a filename.
func sanitizeName(entry string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	return r.Replace(entry)
}

// nameClaims tracks, per manifest directory, which dependency entry first
// claimed a sanitized destination name, so two distinct entries that
// collide after sanitization are rejected rather than one silently
// overwriting the other.
var nameClaims = map[string]map[string]string{}

func claimedNames(manifestDir string) map[string]string {
	m, ok := nameClaims[manifestDir]
	if !ok {
		m = map[string]string{}
		nameClaims[manifestDir] = m
	}
	return m
}

func recordClaimedName(manifestDir, safeName, entry string) {
	claimedNames(manifestDir)[safeName] = entry
}

// selectBackend picks the cache.Backend that shares fetched runtime images:
// the filesystem backend rooted at manifestDir by default, or the shared S3
// backend when EGG_CACHE_S3_BUCKET is configured.
func selectBackend(manifestDir string) (cache.Backend, error) {
	if bucket, ok := eggconfig.CacheS3Bucket(); ok {
		return cache.Create("s3", map[string]string{
			"bucket": bucket,
			"region": eggconfig.CacheS3Region(),
		})
	}
	return cache.Create("filesystem", map[string]string{"rootdirectory": manifestDir})
}

// download resolves entry into dest, in order: keep dest if it already
// carries the expected digest (or no digest was requested); else pull from
// the shared cache.Backend if it already holds the blob; else fetch
// "<base>/<percent-encoded entry>.img" fresh, verify it, and populate the
// cache backend for the next resolver (same host or, with the S3 backend,
// a different one) to reuse. Any staged file that fails Content-Length or
// digest verification is unlinked rather than left in place.
func download(ctx context.Context, base, entry, dest, expectedHex string) error {
	manifestDir := filepath.Dir(dest)
	key := filepath.Base(dest)

	backend, err := selectBackend(manifestDir)
	if err != nil {
		return eggerrs.Wrap(eggerrs.KindFetch, err, "select cache backend for %s", key)
	}

	if _, err := os.Stat(dest); err == nil {
		if expectedHex == "" {
			return nil
		}
		match, err := VerifyDigest(dest, expectedHex)
		if err != nil {
			return eggerrs.Wrap(eggerrs.KindFetch, err, "recompute digest for %s", dest)
		}
		if match {
			return nil
		}
		// dest holds a blob under the wrong digest; fall through and re-fetch.
	}

	if hit, err := backend.Has(ctx, key); err == nil && hit {
		if err := materializeFromCache(ctx, backend, key, dest, expectedHex); err == nil {
			return nil
		}
		// cached blob missing, unreadable, or digest-mismatched: fetch fresh below.
	}

	timeoutSeconds, err := eggconfig.DownloadTimeoutSeconds()
	if err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s/%s.img", base, url.PathEscape(entry))
	client := &http.Client{Timeout: time.Duration(timeoutSeconds * float64(time.Second))}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eggerrs.Wrap(eggerrs.KindFetch, err, "build request for %s", reqURL)
	}
	resp, err := client.Do(req)
	if err != nil {
		return eggerrs.Wrap(eggerrs.KindFetch, err, "fetch %s", reqURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return eggerrs.New(eggerrs.KindFetch, "fetch %s: unexpected status %s", reqURL, resp.Status)
	}

	staging, err := os.CreateTemp(manifestDir, key+".*.tmp")
	if err != nil {
		return eggerrs.Wrap(eggerrs.KindFetch, err, "stage download for %s", reqURL)
	}
	stagingPath := staging.Name()

	h := sha256.New()
	pr := &progressReader{ctx: ctx, entry: entry, r: io.TeeReader(resp.Body, h)}
	written, copyErr := io.Copy(staging, pr)
	closeErr := staging.Close()

	if copyErr != nil {
		os.Remove(stagingPath)
		return eggerrs.Wrap(eggerrs.KindFetch, copyErr, "download %s", reqURL)
	}
	if closeErr != nil {
		os.Remove(stagingPath)
		return eggerrs.Wrap(eggerrs.KindFetch, closeErr, "finalize %s", stagingPath)
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		os.Remove(stagingPath)
		return eggerrs.New(eggerrs.KindTruncated, "%s: expected %d bytes, got %d", reqURL, resp.ContentLength, written)
	}

	gotHex := hex.EncodeToString(h.Sum(nil))
	if expectedHex != "" && !signer.ConstantTimeHexEqual(gotHex, expectedHex) {
		os.Remove(stagingPath)
		return eggerrs.New(eggerrs.KindChecksum, "%s: expected digest %s, got %s", reqURL, expectedHex, gotHex)
	}

	if err := os.Rename(stagingPath, dest); err != nil {
		os.Remove(stagingPath)
		return eggerrs.Wrap(eggerrs.KindFetch, err, "rename %s into place", stagingPath)
	}

	f, err := os.Open(dest)
	if err != nil {
		return eggerrs.Wrap(eggerrs.KindFetch, err, "reopen %s to populate cache backend", dest)
	}
	putErr := backend.Put(ctx, key, f)
	f.Close()
	if putErr != nil {
		return eggerrs.Wrap(eggerrs.KindFetch, putErr, "populate cache backend for %s", key)
	}
	return nil
}

// materializeFromCache copies key out of backend into dest via a
// temp-file-then-rename, verifying expectedHex when non-empty.
func materializeFromCache(ctx context.Context, backend cache.Backend, key, dest, expectedHex string) error {
	rc, err := backend.Get(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	staging, err := os.CreateTemp(filepath.Dir(dest), key+".*.tmp")
	if err != nil {
		return err
	}
	stagingPath := staging.Name()

	h := sha256.New()
	_, copyErr := io.Copy(staging, io.TeeReader(rc, h))
	closeErr := staging.Close()
	if copyErr != nil {
		os.Remove(stagingPath)
		return copyErr
	}
	if closeErr != nil {
		os.Remove(stagingPath)
		return closeErr
	}
	if expectedHex != "" && !signer.ConstantTimeHexEqual(hex.EncodeToString(h.Sum(nil)), expectedHex) {
		os.Remove(stagingPath)
		return eggerrs.New(eggerrs.KindChecksum, "cached blob %s: digest mismatch", key)
	}
	if err := os.Rename(stagingPath, dest); err != nil {
		os.Remove(stagingPath)
		return err
	}
	return nil
}

// VerifyDigest reports whether the file at path has the given hex-encoded
// SHA-256 digest. download's dest-exists path calls this before deciding
// whether a blob already on disk can be kept as-is; the cache-hit and
// fresh-fetch paths compare through signer.ConstantTimeHexEqual directly.
func VerifyDigest(path, expectedHex string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	return signer.ConstantTimeHexEqual(hex.EncodeToString(h.Sum(nil)), expectedHex), nil
}

// progressReader logs download progress every logGranularity bytes read.
type progressReader struct {
	ctx    context.Context
	entry  string
	r      io.Reader
	total  int64
	logged int64
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.total += int64(n)
	if p.total-p.logged >= logGranularity {
		p.logged = p.total
		eggcontext.Stepf(p.ctx, "fetch", "downloading %s: %d bytes", p.entry, p.total)
	}
	return n, err
}
