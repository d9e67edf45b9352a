// Package app wires the unileap server runtime: config, logging, HTTP routes,
// the account service and the session relay.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	authapi "unileap/cmd/internal/auth/api"
	"unileap/cmd/internal/auth/session"
	"unileap/cmd/internal/catalog"
	"unileap/cmd/internal/realtime"
	"unileap/cmd/internal/site"
	"unileap/cmd/identity"
)

// App is the server runtime. It owns the DB pool and every HTTP component.
type App struct {
	cfg Config
	log Logger

	pool     *pgxpool.Pool
	registry *prometheus.Registry

	auth    *authapi.Handler
	relay   *realtime.Gateway
	courses *catalog.Handler
	site    *site.Site

	handler http.Handler
}

// New constructs a fully wired App. A non-empty cfg.DatabaseURL selects
// Postgres stores; otherwise everything lives in memory.
func New(ctx context.Context, cfg Config, comp Components, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(os.Stdout, cfg.LogLevel, "json", false)
	}

	a := &App{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	users, sessions, audit, err := a.newStores(ctx, comp)
	if err != nil {
		return nil, err
	}

	tokens, err := session.NewPasetoV4PublicManager(comp.Session)
	if err != nil {
		a.Close()
		return nil, err
	}
	sessionSvc := session.NewService(comp.Session, sessions, tokens)

	a.auth, err = authapi.NewHandler(log, users, sessionSvc, comp.Auth,
		authapi.WithAuditSink(audit),
		authapi.WithFingerprinter(comp.Fingerprinter),
		authapi.WithMetrics(authapi.NewMetrics(a.registry)),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.relay = realtime.NewGateway(log, realtime.NewHub(log), comp.Relay,
		realtime.WithTokenValidator(sessionSvc),
		realtime.WithMetrics(realtime.NewMetrics(a.registry)),
	)

	courses, err := loadCatalog(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.courses = catalog.NewHandler(log, courses)
	if a.site, err = site.New(log, courses); err != nil {
		a.Close()
		return nil, err
	}

	a.handler = a.routes()
	return a, nil
}

func (a *App) newStores(ctx context.Context, comp Components) (identity.Store, session.Store, authapi.AuditSink, error) {
	hasher := identity.NewHasher(comp.Password)

	if a.cfg.DatabaseURL == "" {
		a.log.Info("db.disabled.inmemory_store")
		return identity.NewMemoryStore(hasher), session.NewMemoryStore(), authapi.NewMemoryAudit(authapi.DefaultMemoryAuditCap), nil
	}

	pool, err := NewDBPool(ctx, a.cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	a.pool = pool

	if a.cfg.DBAutoMigrate {
		if err := Migrate(ctx, pool, a.cfg.DBSchema); err != nil {
			a.Close()
			return nil, nil, nil, err
		}
		a.log.Info("db.migrated", "schema", a.cfg.DBSchema)
	}

	users, err := identity.NewPostgresStore(pool, identity.WithSchema(a.cfg.DBSchema), identity.WithHasher(hasher))
	if err != nil {
		a.Close()
		return nil, nil, nil, err
	}

	a.log.Info("db.enabled.postgres_store", "schema", a.cfg.DBSchema)
	return users, session.NewPostgresStore(pool, a.cfg.DBSchema), authapi.NewPostgresAudit(pool, a.cfg.DBSchema), nil
}

func loadCatalog(cfg Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath != "" {
		return catalog.LoadFile(cfg.CatalogPath)
	}
	return catalog.Default()
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	base := runtimeBaseURL(srv.Addr)
	a.log.Info("server.start",
		"addr", srv.Addr,
		"home", base+"/",
		"login", base+"/login",
		"signup", base+"/signup",
		"relay", wsBaseURL(base)+"/ws",
		"db_enabled", a.pool != nil,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

// Close releases the DB pool. Safe to call more than once.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
