package authapi

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool  `env:"UNILEAP_AUTH_TRUST_PROXY" envDefault:"false"`
	MaxBodyBytes int64 `env:"UNILEAP_AUTH_MAX_BODY_BYTES" envDefault:"1048576"`

	LoginIPMax    int           `env:"UNILEAP_AUTH_LOGIN_IP_MAX" envDefault:"20"`
	LoginIPWindow time.Duration `env:"UNILEAP_AUTH_LOGIN_IP_WINDOW" envDefault:"5m"`

	LoginUserWindow time.Duration `env:"UNILEAP_AUTH_LOGIN_USER_WINDOW" envDefault:"15m"`

	LockoutShortThreshold  int           `env:"UNILEAP_AUTH_LOGIN_LOCKOUT_SHORT_THRESHOLD" envDefault:"5"`
	LockoutShortDuration   time.Duration `env:"UNILEAP_AUTH_LOGIN_LOCKOUT_SHORT_DURATION" envDefault:"5m"`
	LockoutLongThreshold   int           `env:"UNILEAP_AUTH_LOGIN_LOCKOUT_LONG_THRESHOLD" envDefault:"10"`
	LockoutLongDuration    time.Duration `env:"UNILEAP_AUTH_LOGIN_LOCKOUT_LONG_DURATION" envDefault:"30m"`
	LockoutSevereThreshold int           `env:"UNILEAP_AUTH_LOGIN_LOCKOUT_SEVERE_THRESHOLD" envDefault:"20"`
	LockoutSevereDuration  time.Duration `env:"UNILEAP_AUTH_LOGIN_LOCKOUT_SEVERE_DURATION" envDefault:"2h"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:           1 << 20,
		LoginIPMax:             20,
		LoginIPWindow:          5 * time.Minute,
		LoginUserWindow:        15 * time.Minute,
		LockoutShortThreshold:  5,
		LockoutShortDuration:   5 * time.Minute,
		LockoutLongThreshold:   10,
		LockoutLongDuration:    30 * time.Minute,
		LockoutSevereThreshold: 20,
		LockoutSevereDuration:  2 * time.Hour,
	}
}

// LoadConfigFromEnv loads auth config from UNILEAP_AUTH_* variables. Values
// that parse but are out of range fall back to their defaults.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("authapi: config: %w", err)
	}
	return cfg.clamp(), nil
}

func (c Config) clamp() Config {
	def := DefaultConfig()
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = def.MaxBodyBytes
	}
	if c.LoginIPMax <= 0 {
		c.LoginIPMax = def.LoginIPMax
	}
	if c.LoginIPWindow <= 0 {
		c.LoginIPWindow = def.LoginIPWindow
	}
	if c.LoginUserWindow <= 0 {
		c.LoginUserWindow = def.LoginUserWindow
	}
	return c
}

func (c Config) lockoutTiers() []lockoutTier {
	tiers := []lockoutTier{
		{Threshold: c.LockoutSevereThreshold, Duration: c.LockoutSevereDuration},
		{Threshold: c.LockoutLongThreshold, Duration: c.LockoutLongDuration},
		{Threshold: c.LockoutShortThreshold, Duration: c.LockoutShortDuration},
	}
	out := tiers[:0]
	for _, t := range tiers {
		if t.Threshold > 0 && t.Duration > 0 {
			out = append(out, t)
		}
	}
	return out
}
