package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"unileap/cmd/internal/site"
)

func (a *App) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(WithRequestLogging(a.log))
	r.Use(Recover(a.log))
	r.Use(WithSecurityHeaders)
	r.Use(func(next http.Handler) http.Handler { return WithCORS(next, a.cfg, a.log) })

	r.NotFound(NotFound)
	r.MethodNotAllowed(NotFound)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/readyz", a.readyz)
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))

	r.Mount("/api/auth", a.auth.Routes())
	r.Handle("/api/courses", a.courses)
	r.Handle("/ws", a.relay)

	r.Get("/", a.site.Page(site.PageHome))
	r.Get("/login", a.site.Page(site.PageLogin))
	r.Get("/signup", a.site.Page(site.PageSignup))
	r.Get("/courses", a.site.Page(site.PageCourses))

	return r
}

func (a *App) readyz(w http.ResponseWriter, r *http.Request) {
	if a.cfg.ReadinessRequireDB && a.pool == nil {
		http.Error(w, "db not configured", http.StatusServiceUnavailable)
		return
	}

	if a.pool != nil {
		if err := PingDB(r.Context(), a.pool, 2*time.Second); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			a.log.Info("readyz.db.not_ready", "err", err)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}
