package app

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	authapi "unileap/cmd/internal/auth/api"
	"unileap/cmd/internal/auth/session"
	"unileap/cmd/internal/realtime"
	"unileap/cmd/security/password"
	"unileap/cmd/security/token"
)

// Config contains the server runtime configuration.
type Config struct {
	// HTTPAddr wins over Port when set.
	HTTPAddr string `env:"UNILEAP_HTTP_ADDR"`
	Port     int    `env:"PORT" envDefault:"5500"`

	LogLevel  string `env:"UNILEAP_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"UNILEAP_LOG_FORMAT" envDefault:"json"`
	LogColor  bool   `env:"UNILEAP_LOG_COLOR" envDefault:"true"`

	ReadHeaderTimeout time.Duration `env:"UNILEAP_HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"UNILEAP_HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"UNILEAP_HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"UNILEAP_HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"UNILEAP_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxHeaderBytes    int           `env:"UNILEAP_HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`

	// DatabaseURL selects Postgres; empty means in-memory stores.
	DatabaseURL   string `env:"UNILEAP_DATABASE_URL"`
	DBSchema      string `env:"UNILEAP_DB_SCHEMA" envDefault:"unileap"`
	DBMaxConns    int32  `env:"UNILEAP_DB_MAX_CONNS" envDefault:"10"`
	DBMinConns    int32  `env:"UNILEAP_DB_MIN_CONNS" envDefault:"0"`
	DBAutoMigrate bool   `env:"UNILEAP_DB_AUTO_MIGRATE" envDefault:"true"`

	// ReadinessRequireDB makes /readyz fail unless Postgres is configured and
	// reachable.
	ReadinessRequireDB bool `env:"UNILEAP_READINESS_REQUIRE_DB" envDefault:"false"`

	CORSAllowedOrigins   []string `env:"UNILEAP_CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	CORSAllowCredentials bool     `env:"UNILEAP_CORS_ALLOW_CREDENTIALS" envDefault:"false"`
	CORSMaxAgeSeconds    int      `env:"UNILEAP_CORS_MAX_AGE_SECONDS" envDefault:"600"`

	// CatalogPath replaces the embedded course list.
	CatalogPath string `env:"UNILEAP_CATALOG_PATH"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		Port:               5500,
		LogLevel:           "info",
		LogFormat:          "json",
		LogColor:           true,
		ReadHeaderTimeout:  5 * time.Second,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		MaxHeaderBytes:     1 << 20,
		DBSchema:           "unileap",
		DBMaxConns:         10,
		DBAutoMigrate:      true,
		CORSAllowedOrigins: []string{"*"},
		CORSMaxAgeSeconds:  600,
	}
}

// LoadConfig reads the server configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("app: config: %w", err)
	}
	return cfg.clamp()
}

func (c Config) clamp() (Config, error) {
	def := DefaultConfig()
	if c.Port <= 0 || c.Port > 65535 {
		return Config{}, fmt.Errorf("app: config: PORT out of range: %d", c.Port)
	}
	c.DBSchema = strings.TrimSpace(c.DBSchema)
	if c.DBSchema == "" {
		c.DBSchema = def.DBSchema
	}
	if c.DBMinConns < 0 {
		c.DBMinConns = 0
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = def.MaxHeaderBytes
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "json":
		c.LogFormat = "json"
	case "pretty", "text":
		c.LogFormat = "pretty"
	default:
		return Config{}, fmt.Errorf("app: config: unknown UNILEAP_LOG_FORMAT %q", c.LogFormat)
	}
	return c, nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	if a := strings.TrimSpace(c.HTTPAddr); a != "" {
		return a
	}
	return net.JoinHostPort("", strconv.Itoa(c.Port))
}

// Components holds the configuration of the wired subsystems.
type Components struct {
	Session       session.Config
	Auth          authapi.Config
	Relay         realtime.Config
	Password      password.Config
	Fingerprinter token.Fingerprinter
}

// LoadComponents reads every subsystem's configuration from the environment.
func LoadComponents() (Components, error) {
	var (
		c   Components
		err error
	)
	if c.Session, err = session.LoadConfigFromEnv(); err != nil {
		return Components{}, fmt.Errorf("app: session config: %w", err)
	}
	if c.Auth, err = authapi.LoadConfigFromEnv(); err != nil {
		return Components{}, err
	}
	if c.Relay, err = realtime.LoadConfigFromEnv(); err != nil {
		return Components{}, err
	}
	if c.Password, err = password.FromEnv(); err != nil {
		return Components{}, err
	}
	if c.Fingerprinter, err = token.FingerprinterFromEnv(); err != nil {
		return Components{}, fmt.Errorf("app: fingerprint key: %w", err)
	}
	return c, nil
}
