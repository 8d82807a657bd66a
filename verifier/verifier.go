// Package verifier checks an egg archive's integrity and signature (C8)
// before anything inside it is trusted, extracted, or executed. Every step
// fails closed: on any doubt about an entry name or a byte comparison, the
// archive is rejected rather than partially accepted.
package verifier

import (
	"archive/zip"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/henhouse/egg/eggcontext"
	"github.com/henhouse/egg/eggerrs"
	"github.com/henhouse/egg/hashindex"
	"github.com/henhouse/egg/pathguard"
	"github.com/henhouse/egg/signer"
)

// State names the verifier's progress through the archive, used for
// diagnostics and tests; the zero value is Open.
type State int

const (
	Open State = iota
	PathScanned
	Signed
	Indexed
	EntriesChecked
	Closed
	OK
)

func (s State) String() string {
	switch s {
	case Open:
		return "Open"
	case PathScanned:
		return "PathScanned"
	case Signed:
		return "Signed"
	case Indexed:
		return "Indexed"
	case EntriesChecked:
		return "EntriesChecked"
	case Closed:
		return "Closed"
	case OK:
		return "OK"
	default:
		return "Unknown"
	}
}

const (
	hashesFile = "hashes.yaml"
	sigFile    = "hashes.sig"
)

// Result carries the verifier's final state and the HashIndex it validated
// the archive against, for callers (Info, Hatch) that go on to read more
// of the archive.
type Result struct {
	State State
	Index hashindex.HashIndex
}

// Verify runs the full seven-step check against the archive at path,
// against the already-resolved public key pk. Callers resolve pk once
// (EGG_PUBLIC_KEY, or derived from the signing seed for same-host
// build-then-verify) before calling in, so this package never makes trust
// decisions about which key to check against.
func Verify(ctx context.Context, archivePath string, pk ed25519.PublicKey) (Result, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return Result{State: Open}, eggerrs.Wrap(eggerrs.KindUnsigned, err, "open archive %s", archivePath)
	}
	defer zr.Close()

	entries := map[string]*zip.File{}
	for _, f := range zr.File {
		if !pathguard.IsSafeArchivePath(f.Name) {
			return Result{State: Open}, eggerrs.New(eggerrs.KindUnsafePath, "unsafe archive entry: %s", f.Name)
		}
		entries[f.Name] = f
	}
	eggcontext.Stepf(ctx, "verify", "scanned %d entries", len(entries))

	hashesEntry, ok := entries[hashesFile]
	if !ok {
		return Result{State: PathScanned}, eggerrs.New(eggerrs.KindUnsigned, "archive missing %s", hashesFile)
	}
	hashesBytes, err := readEntry(hashesEntry)
	if err != nil {
		return Result{State: PathScanned}, eggerrs.Wrap(eggerrs.KindUnsigned, err, "read %s", hashesFile)
	}

	sigEntry, ok := entries[sigFile]
	if !ok {
		return Result{State: PathScanned}, eggerrs.New(eggerrs.KindUnsigned, "archive missing %s", sigFile)
	}
	sigHexBytes, err := readEntry(sigEntry)
	if err != nil {
		return Result{State: PathScanned}, eggerrs.Wrap(eggerrs.KindUnsigned, err, "read %s", sigFile)
	}
	sig, err := signer.DecodeHex(string(sigHexBytes))
	if err != nil || len(sig) != signer.SignatureSize {
		return Result{State: PathScanned}, eggerrs.New(eggerrs.KindUnsigned, "malformed %s", sigFile)
	}

	if !signer.Verify(pk, hashesBytes, sig) {
		return Result{State: PathScanned}, eggerrs.New(eggerrs.KindSignature, "signature verification failed")
	}
	eggcontext.Stepf(ctx, "verify", "signature OK")

	idx, err := hashindex.Unmarshal(hashesBytes)
	if err != nil {
		return Result{State: Signed}, eggerrs.Wrap(eggerrs.KindHashIndex, err, "parse %s", hashesFile)
	}

	for _, rel := range idx.SortedKeys() {
		f, ok := entries[rel]
		if !ok {
			return Result{State: Indexed}, eggerrs.New(eggerrs.KindMissingEntry, "%s listed in hashes.yaml but absent from archive", rel)
		}
		got, err := digestEntry(f)
		if err != nil {
			return Result{State: Indexed}, eggerrs.Wrap(eggerrs.KindDigest, err, "digest %s", rel)
		}
		want := idx[rel]
		if !signer.ConstantTimeHexEqual(got, want) {
			return Result{State: Indexed}, eggerrs.New(eggerrs.KindDigest, "%s: digest mismatch", rel)
		}
	}
	eggcontext.Stepf(ctx, "verify", "checked %d entries against hashes.yaml", len(idx))

	expected := map[string]bool{hashesFile: true, sigFile: true}
	for k := range idx {
		expected[k] = true
	}
	var extra, missing []string
	for name := range entries {
		if !expected[name] {
			extra = append(extra, name)
		}
	}
	for name := range expected {
		if _, ok := entries[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(extra) > 0 || len(missing) > 0 {
		return Result{State: EntriesChecked}, eggerrs.New(eggerrs.KindClosure, "archive entries do not match hashes.yaml exactly (extra=%v missing=%v)", extra, missing)
	}

	return Result{State: OK, Index: idx}, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func digestEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
