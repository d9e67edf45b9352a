package session

import (
	"strings"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/caarlos0/env/v11"
)

// Config defines runtime configuration for the session subsystem.
type Config struct {
	// Issuer is the "iss" claim of issued tokens.
	Issuer string `env:"UNILEAP_AUTH_ISSUER" envDefault:"unileap"`

	// TokenTTL bounds both the token and its server session. The site keeps
	// tokens in persistent storage, so this is long.
	TokenTTL time.Duration `env:"UNILEAP_AUTH_TOKEN_TTL" envDefault:"168h"`

	// ClockSkew is tolerated during token validation.
	ClockSkew time.Duration `env:"UNILEAP_AUTH_CLOCK_SKEW" envDefault:"30s"`

	// PasetoV4SecretKeyHex is the hex Ed25519 secret key that signs tokens.
	PasetoV4SecretKeyHex string `env:"UNILEAP_PASETO_V4_SECRET_KEY_HEX"`

	// EphemeralKey allows a random signing key when none is configured.
	// Tokens then die with the process.
	EphemeralKey bool `env:"UNILEAP_AUTH_EPHEMERAL_KEY" envDefault:"false"`
}

// DefaultConfig returns development defaults without a signing key.
func DefaultConfig() Config {
	return Config{
		Issuer:    "unileap",
		TokenTTL:  7 * 24 * time.Hour,
		ClockSkew: 30 * time.Second,
	}
}

// LoadConfigFromEnv loads session configuration from UNILEAP_AUTH_* and
// UNILEAP_PASETO_V4_SECRET_KEY_HEX.
//
// Returns ErrConfig if the key is missing (and EphemeralKey is off) or a
// duration is not positive.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, ErrConfig
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.PasetoV4SecretKeyHex = strings.TrimSpace(cfg.PasetoV4SecretKeyHex)

	if cfg.Issuer == "" || cfg.TokenTTL <= 0 || cfg.ClockSkew < 0 {
		return Config{}, ErrConfig
	}
	if cfg.PasetoV4SecretKeyHex == "" {
		if !cfg.EphemeralKey {
			return Config{}, ErrConfig
		}
		cfg.PasetoV4SecretKeyHex = paseto.NewV4AsymmetricSecretKey().ExportHex()
	}
	return cfg, nil
}
