// Package token derives stable, non-reversible fingerprints of values that
// must not be stored in clear, such as client IPs in the audit log.
//
// With a key configured (UNILEAP_FINGERPRINT_KEY) fingerprints are
// HMAC-SHA256; without one they fall back to plain SHA-256, which is fine for
// development but guessable for small inputs like IPv4 addresses.
package token
