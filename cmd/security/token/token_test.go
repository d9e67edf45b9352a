package token

import (
	"strings"
	"testing"
)

func TestFingerprinter(t *testing.T) {
	plain := Fingerprinter{}
	if plain.Keyed() {
		t.Fatalf("zero value must not be keyed")
	}
	if got := plain.Of("127.0.0.1"); got != HashSHA256Hex("127.0.0.1") || len(got) != 64 {
		t.Fatalf("unexpected plain fingerprint %q", got)
	}
	if plain.Of("  ") != "" {
		t.Fatalf("blank input must fingerprint to empty")
	}

	key := []byte(strings.Repeat("k", 32))
	keyed := NewFingerprinter(key)
	if !keyed.Keyed() {
		t.Fatalf("expected keyed")
	}
	if keyed.Of("127.0.0.1") == plain.Of("127.0.0.1") {
		t.Fatalf("keyed and plain fingerprints must differ")
	}
	if keyed.Of(" 127.0.0.1 ") != keyed.Of("127.0.0.1") {
		t.Fatalf("fingerprint must ignore surrounding space")
	}
}

func TestFingerprinterFromEnv(t *testing.T) {
	t.Setenv(KeyEnv, "")
	f, err := FingerprinterFromEnv()
	if err != nil || f.Keyed() {
		t.Fatalf("missing key: keyed=%v err=%v", f.Keyed(), err)
	}

	t.Setenv(KeyEnv, "short")
	if _, err := FingerprinterFromEnv(); err != ErrKeyTooShort {
		t.Fatalf("expected ErrKeyTooShort, got %v", err)
	}

	t.Setenv(KeyEnv, strings.Repeat("x", MinKeyBytes))
	f, err = FingerprinterFromEnv()
	if err != nil || !f.Keyed() {
		t.Fatalf("valid key: keyed=%v err=%v", f.Keyed(), err)
	}
}
