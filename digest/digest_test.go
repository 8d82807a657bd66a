package digest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromBytesMatchesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	content := []byte("hello egg\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	want := FromBytes(content)
	got, err := FromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Hex() != want.Hex() {
		t.Errorf("FromFile = %s, want %s", got.Hex(), want.Hex())
	}
}

func TestHexRoundTrip(t *testing.T) {
	d := FromBytes([]byte("round trip"))
	got, ok := FromHex(d.Hex())
	if !ok {
		t.Fatalf("FromHex(%s) rejected", d.Hex())
	}
	if got.Hex() != d.Hex() {
		t.Errorf("round trip mismatch: %s != %s", got.Hex(), d.Hex())
	}
}

func TestFromHexRejectsMalformed(t *testing.T) {
	cases := []string{"", "deadbeef", "z" + string(make([]byte, 63)), "sha256:" + string(make([]byte, 64))}
	for _, c := range cases {
		if _, ok := FromHex(c); ok {
			t.Errorf("FromHex(%q) unexpectedly accepted", c)
		}
	}
}

func TestEqualConstantTime(t *testing.T) {
	a := FromBytes([]byte("x"))
	b := FromBytes([]byte("x"))
	c := FromBytes([]byte("y"))
	if !Equal(a, b) {
		t.Error("expected equal digests to compare equal")
	}
	if Equal(a, c) {
		t.Error("expected different digests to compare unequal")
	}
}
