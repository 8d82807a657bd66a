// Package signer implements the egg archive's Ed25519 trust anchor (C3):
// deriving a signing key from a seed, signing the exact bytes of a
// serialized HashIndex, and verifying that signature. crypto/ed25519 from
// the standard library is used deliberately instead of
// github.com/docker/libtrust: libtrust signs a re-serialized JWS envelope
// around its payload, which would break this format's requirement that the
// signature cover the exact bytes written to hashes.yaml for a byte-for-byte
// round trip. No third-party Ed25519 package fits that constraint, so this
// is the one deliberate stdlib exception for the trust-bearing primitive
// itself; the surrounding key-derivation/encoding idiom follows the same
// hex-encoded, seed-derived signing flow used elsewhere in this codebase.
package signer

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/henhouse/egg/eggerrs"
)

// SignatureSize is the byte length of an Ed25519 signature.
const SignatureSize = ed25519.SignatureSize

// SeedSize is the canonical Ed25519 seed length; seeds of any other length
// are derived via SHA-256 before use.
const SeedSize = ed25519.SeedSize

// DefaultSeed is the built-in test seed used when neither EGG_SIGNING_KEY
// nor EGG_PRIVATE_KEY is configured. It is not a secret: eggs signed with it
// carry no trust guarantee beyond "built with the default tooling" and
// EGG_SIGNING_KEY must be set for any archive meant to be distributed.
const DefaultSeed = "egg-default-development-signing-seed"

// DeriveSigningKey turns an arbitrary-length seed into an Ed25519 private
// key. A 32-byte seed is used as-is (the Ed25519 native seed size);
// anything else is hashed with SHA-256 first, which always yields exactly
// 32 bytes.
func DeriveSigningKey(seed []byte) ed25519.PrivateKey {
	s := seed
	if len(s) != ed25519.SeedSize {
		sum := sha256.Sum256(seed)
		s = sum[:]
	}
	return ed25519.NewKeyFromSeed(s)
}

// PublicKeyFromSigningKey derives the verify key from a signing key.
func PublicKeyFromSigningKey(sk ed25519.PrivateKey) ed25519.PublicKey {
	return sk.Public().(ed25519.PublicKey)
}

// ParsePublicKey accepts either 32 raw bytes or their 64-char hex
// encoding, both of which are valid ways to supply --public-key /
// EGG_PUBLIC_KEY.
func ParsePublicKey(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) == ed25519.PublicKeySize {
		return ed25519.PublicKey(raw), nil
	}
	if len(raw) == ed25519.PublicKeySize*2 {
		decoded, err := hex.DecodeString(string(raw))
		if err == nil && len(decoded) == ed25519.PublicKeySize {
			return ed25519.PublicKey(decoded), nil
		}
	}
	return nil, eggerrs.New(eggerrs.KindSignature, "public key must be %d raw bytes or %d hex chars", ed25519.PublicKeySize, ed25519.PublicKeySize*2)
}

// Sign signs the exact bytes of payload (the serialized HashIndex) and
// returns the raw 64-byte signature.
func Sign(sk ed25519.PrivateKey, payload []byte) []byte {
	return ed25519.Sign(sk, payload)
}

// Verify performs a constant-time Ed25519 verification of sig over payload.
// ed25519.Verify is itself constant-time with respect to the key material,
// and its boolean result is compared with subtle.ConstantTimeCompare. A
// signature that is not SignatureSize bytes long is rejected before
// ed25519.Verify runs.
func Verify(pk ed25519.PublicKey, payload, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	ok := ed25519.Verify(pk, payload, sig)
	var okByte, trueByte byte
	if ok {
		okByte = 1
	}
	trueByte = 1
	return subtle.ConstantTimeCompare([]byte{okByte}, []byte{trueByte}) == 1
}

// ConstantTimeHexEqual reports whether two lowercase-hex digest strings are
// equal, without leaking timing information about where they first differ.
func ConstantTimeHexEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// EncodeHex renders a signature or key as its lowercase hex form, the
// serialization used by hashes.sig.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodeHex parses a lowercase hex signature/key; it trims trailing
// whitespace, matching hashes.sig's "optional trailing whitespace" clause.
func DecodeHex(s string) ([]byte, error) {
	decoded, err := hex.DecodeString(trimTrailingWhitespace(s))
	if err != nil {
		return nil, eggerrs.Wrap(eggerrs.KindSignature, err, "malformed hex signature")
	}
	return decoded, nil
}

func trimTrailingWhitespace(s string) string {
	end := len(s)
	for end > 0 {
		switch s[end-1] {
		case ' ', '\t', '\n', '\r':
			end--
			continue
		}
		break
	}
	return s[:end]
}
