package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	authapi "unileap/cmd/internal/auth/api"
	"unileap/cmd/internal/auth/session"
	"unileap/cmd/identity"
)

// NewDBPool builds a pgxpool with sane defaults and validates connectivity.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := PingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// PingDB checks if we can acquire a connection within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

// migrations lists the schema steps in dependency order: sessions reference
// users.
func migrations(schema string) []struct{ name, sql string } {
	return []struct{ name, sql string }{
		{"identity", identity.SchemaSQL(schema)},
		{"session", session.SchemaSQL(schema)},
		{"audit", authapi.AuditSchemaSQL(schema)},
	}
}

// Migrate applies every schema step in one transaction. Each step is
// idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, m := range migrations(schema) {
			if _, err := tx.Exec(ctx, m.sql); err != nil {
				return fmt.Errorf("app: migrate %s: %w", m.name, err)
			}
		}
		return nil
	})
}
