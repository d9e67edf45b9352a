package password

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Argon2idParams controls hashing cost. MemoryKiB is in KiB.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds accepted passwords, counted in runes.
type Policy struct {
	MinLength      int
	MaxLength      int
	RejectVeryWeak bool
}

// Config is the hashing cost plus the password policy.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns interactive-login cost and the site's signup policy
// (6 to 256 characters).
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads < 1 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}
	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 6,
			MaxLength: 256,
		},
	}
}

type envConfig struct {
	MinLen         *int    `env:"UNILEAP_PASSWORD_MIN_LEN"`
	MaxLen         *int    `env:"UNILEAP_PASSWORD_MAX_LEN"`
	RejectVeryWeak *bool   `env:"UNILEAP_PASSWORD_REJECT_VERY_WEAK"`
	MemoryKiB      *uint32 `env:"UNILEAP_ARGON2_MEMORY_KIB"`
	Iterations     *uint32 `env:"UNILEAP_ARGON2_ITERATIONS"`
	Parallelism    *uint8  `env:"UNILEAP_ARGON2_PARALLELISM"`
	SaltLen        *uint32 `env:"UNILEAP_ARGON2_SALT_LEN"`
	KeyLen         *uint32 `env:"UNILEAP_ARGON2_KEY_LEN"`
}

// FromEnv overlays UNILEAP_PASSWORD_* and UNILEAP_ARGON2_* on DefaultConfig.
// Unset variables keep their defaults; out-of-range values are errors.
func FromEnv() (Config, error) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	cfg := DefaultConfig()
	var bad []string
	check := func(name string, v, lo, hi int64) {
		if v < lo || v > hi {
			bad = append(bad, fmt.Sprintf("%s out of range [%d..%d]", name, lo, hi))
		}
	}

	if ec.MinLen != nil {
		check("UNILEAP_PASSWORD_MIN_LEN", int64(*ec.MinLen), 1, 1024)
		cfg.Policy.MinLength = *ec.MinLen
	}
	if ec.MaxLen != nil {
		check("UNILEAP_PASSWORD_MAX_LEN", int64(*ec.MaxLen), 1, 4096)
		cfg.Policy.MaxLength = *ec.MaxLen
	}
	if ec.RejectVeryWeak != nil {
		cfg.Policy.RejectVeryWeak = *ec.RejectVeryWeak
	}
	if ec.MemoryKiB != nil {
		check("UNILEAP_ARGON2_MEMORY_KIB", int64(*ec.MemoryKiB), 8*1024, 1024*1024)
		cfg.Params.MemoryKiB = *ec.MemoryKiB
	}
	if ec.Iterations != nil {
		check("UNILEAP_ARGON2_ITERATIONS", int64(*ec.Iterations), 1, 20)
		cfg.Params.Iterations = *ec.Iterations
	}
	if ec.Parallelism != nil {
		check("UNILEAP_ARGON2_PARALLELISM", int64(*ec.Parallelism), 1, 64)
		cfg.Params.Parallelism = *ec.Parallelism
	}
	if ec.SaltLen != nil {
		check("UNILEAP_ARGON2_SALT_LEN", int64(*ec.SaltLen), 8, 64)
		cfg.Params.SaltLength = *ec.SaltLen
	}
	if ec.KeyLen != nil {
		check("UNILEAP_ARGON2_KEY_LEN", int64(*ec.KeyLen), 16, 64)
		cfg.Params.KeyLength = *ec.KeyLen
	}

	if len(bad) > 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrConfig, strings.Join(bad, "; "))
	}
	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf("%w: min_len(%d) > max_len(%d)", ErrConfig, cfg.Policy.MinLength, cfg.Policy.MaxLength)
	}
	return cfg, nil
}
