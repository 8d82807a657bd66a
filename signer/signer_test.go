package signer

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	sk := DeriveSigningKey([]byte("a seed of any length at all"))
	pk := PublicKeyFromSigningKey(sk)
	payload := []byte("path: hash\n")

	sig := Sign(sk, payload)
	if len(sig) != SignatureSize {
		t.Fatalf("signature length = %d, want %d", len(sig), SignatureSize)
	}
	if !Verify(pk, payload, sig) {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	sk1 := DeriveSigningKey([]byte("seed-one"))
	sk2 := DeriveSigningKey([]byte("seed-two"))
	payload := []byte("payload")

	sig := Sign(sk1, payload)
	if Verify(PublicKeyFromSigningKey(sk2), payload, sig) {
		t.Fatal("expected verification with wrong key to fail")
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	sk := DeriveSigningKey([]byte("seed"))
	pk := PublicKeyFromSigningKey(sk)
	sig := Sign(sk, []byte("original"))
	if Verify(pk, []byte("tampered"), sig) {
		t.Fatal("expected verification of tampered payload to fail")
	}
}

func TestDeriveSigningKeyIs32ByteSeedAsIs(t *testing.T) {
	seed := make([]byte, SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	sk := DeriveSigningKey(seed)
	if string(sk[:SeedSize]) != string(seed) {
		t.Fatal("expected a 32-byte seed to be used as-is")
	}
}

func TestHexRoundTrip(t *testing.T) {
	sk := DeriveSigningKey([]byte("seed"))
	sig := Sign(sk, []byte("data"))
	encoded := EncodeHex(sig)
	decoded, err := DecodeHex(encoded + "\n")
	if err != nil {
		t.Fatal(err)
	}
	if string(decoded) != string(sig) {
		t.Error("hex round trip mismatch")
	}
}

func TestParsePublicKeyAcceptsRawAndHex(t *testing.T) {
	sk := DeriveSigningKey([]byte("seed"))
	pk := PublicKeyFromSigningKey(sk)

	got, err := ParsePublicKey(pk)
	if err != nil || !got.Equal(pk) {
		t.Fatalf("raw form: got %v, err %v", got, err)
	}

	hexForm := []byte(EncodeHex(pk))
	got, err = ParsePublicKey(hexForm)
	if err != nil || !got.Equal(pk) {
		t.Fatalf("hex form: got %v, err %v", got, err)
	}
}
