package identity

import (
	"unileap/cmd/security/password"
)

// Hasher hashes and checks account passwords, and burns equivalent work for
// unknown accounts.
type Hasher struct {
	cfg   password.Config
	dummy *password.DummyVerifier
}

// NewHasher wraps cfg.
func NewHasher(cfg password.Config) *Hasher {
	return &Hasher{cfg: cfg, dummy: password.NewDummyVerifier(cfg)}
}

// DefaultHasher loads the password config from the environment and falls
// back to the built-in defaults when it is invalid.
func DefaultHasher() *Hasher {
	cfg, err := password.FromEnv()
	if err != nil {
		cfg = password.DefaultConfig()
	}
	return NewHasher(cfg)
}

// Validate applies the password policy.
func (h *Hasher) Validate(pw string) error { return h.cfg.Validate(pw) }

// Hash returns the PHC hash of pw.
func (h *Hasher) Hash(pw string) (string, error) { return h.cfg.Hash(pw) }

// Check reports whether pw matches encoded. A corrupt stored hash is treated
// as a mismatch.
func (h *Hasher) Check(encoded, pw string) bool {
	ok, err := h.cfg.Verify(encoded, pw)
	return err == nil && ok
}

// Burn spends one verification's worth of work on pw.
func (h *Hasher) Burn(pw string) { h.dummy.Verify(pw) }
