// Package digest computes streaming SHA-256 digests over files and byte
// buffers (C2 of the egg trust pipeline). It wraps a Digest type backed by
// github.com/opencontainers/go-digest rather than a hand-rolled
// algorithm-prefixed string. The sha256: prefix opencontainers/go-digest
// carries is stripped at the archive/HashIndex boundary, where the wire
// format is bare 64-char lowercase hex.
package digest

import (
	"crypto/subtle"
	"encoding/hex"
	"io"
	"os"

	godigest "github.com/opencontainers/go-digest"
)

// blockSize is the fixed read buffer used while streaming a file through
// the hasher.
const blockSize = 8 * 1024

// Digest is a validated, canonical SHA-256 digest.
type Digest godigest.Digest

// Hex returns the lowercase 64-character hex form, the wire representation
// used by hashes.yaml.
func (d Digest) Hex() string {
	return godigest.Digest(d).Hex()
}

// String implements fmt.Stringer, returning the sha256:hex form.
func (d Digest) String() string {
	return string(d)
}

// FromHex validates a bare 64-char lowercase hex string and returns the
// corresponding Digest. It is the deserialization boundary used by
// HashIndex when reading hashes.yaml.
func FromHex(h string) (Digest, bool) {
	if len(h) != godigest.SHA256.Size()*2 {
		return "", false
	}
	if _, err := hex.DecodeString(h); err != nil {
		return "", false
	}
	for _, c := range h {
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'f') {
			return "", false
		}
	}
	return Digest(godigest.NewDigestFromHex(godigest.SHA256.String(), h)), true
}

// FromBytes digests buf.
func FromBytes(buf []byte) Digest {
	return Digest(godigest.SHA256.FromBytes(buf))
}

// FromFile streams path through SHA-256 in blockSize chunks, never holding
// the whole file in memory.
func FromFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return FromReader(f)
}

// FromReader streams r through SHA-256 in blockSize chunks.
func FromReader(r io.Reader) (Digest, error) {
	digester := godigest.SHA256.Digester()
	buf := make([]byte, blockSize)
	// Hiding r's own WriteTo (e.g. *os.File's) makes CopyBuffer use buf.
	if _, err := io.CopyBuffer(digester.Hash(), struct{ io.Reader }{r}, buf); err != nil {
		return "", err
	}
	return Digest(digester.Digest()), nil
}

// Equal performs a constant-time comparison of two digests' hex forms, used
// for every trust-bearing comparison in the Verifier and RuntimeResolver.
func Equal(a, b Digest) bool {
	ah, bh := []byte(a.Hex()), []byte(b.Hex())
	if len(ah) != len(bh) {
		return false
	}
	return subtle.ConstantTimeCompare(ah, bh) == 1
}
