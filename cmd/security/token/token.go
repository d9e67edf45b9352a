package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

// KeyEnv names the fingerprint secret.
// #nosec G101 -- an environment variable name, not a credential.
const KeyEnv = "UNILEAP_FINGERPRINT_KEY"

// MinKeyBytes is the shortest key accepted by KeyFromEnv.
const MinKeyBytes = 32

// HashSHA256Hex returns the hex SHA-256 of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns the hex HMAC-SHA256 of s under key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// KeyFromEnv returns the configured key, requiring at least minBytes.
func KeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(KeyEnv))
	if raw == "" {
		return nil, ErrKeyMissing
	}
	if minBytes > 0 && len(raw) < minBytes {
		return nil, ErrKeyTooShort
	}
	return []byte(raw), nil
}

// Fingerprinter hashes values with an optional key. The zero value hashes
// with plain SHA-256.
type Fingerprinter struct {
	key []byte
}

// NewFingerprinter returns a keyed fingerprinter; an empty key means SHA-256.
func NewFingerprinter(key []byte) Fingerprinter {
	return Fingerprinter{key: append([]byte(nil), key...)}
}

// FingerprinterFromEnv reads KeyEnv. A missing key selects SHA-256; a key
// shorter than MinKeyBytes is an error.
func FingerprinterFromEnv() (Fingerprinter, error) {
	key, err := KeyFromEnv(MinKeyBytes)
	switch err {
	case nil:
		return NewFingerprinter(key), nil
	case ErrKeyMissing:
		return Fingerprinter{}, nil
	default:
		return Fingerprinter{}, err
	}
}

// Keyed reports whether fingerprints are HMACs.
func (f Fingerprinter) Keyed() bool { return len(f.key) > 0 }

// Of returns the 64-char hex fingerprint of s, or "" for an empty s.
func (f Fingerprinter) Of(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if f.Keyed() {
		return HashHMACSHA256Hex(s, f.key)
	}
	return HashSHA256Hex(s)
}
