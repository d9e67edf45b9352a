package realtime

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultSendQueueSize = 64
	minSendQueueSize     = 8
)

// Config holds the gateway's policy knobs.
type Config struct {
	// OriginRequired rejects upgrades without an Origin header.
	OriginRequired bool `env:"UNILEAP_RELAY_ORIGIN_REQUIRED" envDefault:"true"`

	// AllowedOrigins is matched by full origin, then by host.
	AllowedOrigins []string `env:"UNILEAP_RELAY_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost,http://127.0.0.1"`

	// RequireAuth demands a valid bearer token on upgrade.
	RequireAuth bool `env:"UNILEAP_RELAY_REQUIRE_AUTH" envDefault:"false"`

	// DevInsecure disables the library's own origin check. Dev only.
	DevInsecure bool `env:"UNILEAP_RELAY_DEV_INSECURE" envDefault:"false"`

	WriteTimeout    time.Duration `env:"UNILEAP_RELAY_WRITE_TIMEOUT" envDefault:"5s"`
	ReadIdleTimeout time.Duration `env:"UNILEAP_RELAY_READ_IDLE_TIMEOUT" envDefault:"2m"`
	SendQueueSize   int           `env:"UNILEAP_RELAY_SEND_QUEUE" envDefault:"64"`

	HeartbeatInterval time.Duration `env:"UNILEAP_RELAY_HEARTBEAT_INTERVAL" envDefault:"25s"`
	HeartbeatTimeout  time.Duration `env:"UNILEAP_RELAY_HEARTBEAT_TIMEOUT" envDefault:"5s"`

	RateEvents int           `env:"UNILEAP_RELAY_RATE_EVENTS" envDefault:"120"`
	RateWindow time.Duration `env:"UNILEAP_RELAY_RATE_WINDOW" envDefault:"10s"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		OriginRequired:    true,
		AllowedOrigins:    []string{"http://localhost", "http://127.0.0.1"},
		WriteTimeout:      5 * time.Second,
		ReadIdleTimeout:   2 * time.Minute,
		SendQueueSize:     defaultSendQueueSize,
		HeartbeatInterval: heartbeatInterval,
		HeartbeatTimeout:  heartbeatTimeout,
		RateEvents:        rateLimitEvents,
		RateWindow:        rateLimitWindow,
	}
}

// LoadConfigFromEnv reads UNILEAP_RELAY_* and clamps out-of-range values.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("realtime: config: %w", err)
	}
	return cfg.clamp(), nil
}

func (c Config) clamp() Config {
	def := DefaultConfig()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReadIdleTimeout <= 0 {
		c.ReadIdleTimeout = def.ReadIdleTimeout
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = def.SendQueueSize
	}
	if c.SendQueueSize < minSendQueueSize {
		c.SendQueueSize = minSendQueueSize
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if c.RateEvents <= 0 {
		c.RateEvents = def.RateEvents
	}
	if c.RateWindow <= 0 {
		c.RateWindow = def.RateWindow
	}
	return c
}
