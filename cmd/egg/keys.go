package main

import (
	"crypto/ed25519"

	"github.com/henhouse/egg/eggconfig"
	"github.com/henhouse/egg/signer"
)

// resolvePublicKey prefers an explicit --public-key flag value, then
// EGG_PUBLIC_KEY, and falls back to deriving the verify key from the same
// signing seed Build uses by default. This lets a single-operator workflow
// run build/verify/hatch without ever passing a key explicitly, while a
// multi-party workflow can pin down the exact key expected.
func resolvePublicKey(flagHex string) (ed25519.PublicKey, error) {
	if flagHex != "" {
		return signer.ParsePublicKey([]byte(flagHex))
	}
	if v, ok := eggconfig.PublicKeyEnv(); ok {
		return signer.ParsePublicKey([]byte(v))
	}
	sk := signer.DeriveSigningKey(eggconfig.SigningSeed())
	return signer.PublicKeyFromSigningKey(sk), nil
}

func resolveSigningSeed(flagSeed string) []byte {
	if flagSeed != "" {
		return []byte(flagSeed)
	}
	return eggconfig.SigningSeed()
}
