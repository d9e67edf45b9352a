package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"unileap/cmd/identity"
	"unileap/cmd/internal/auth/session"
	"unileap/cmd/security/token"
)

// Messages shown verbatim by the site.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgUserExists         = "User already exists with this email"
	msgMissingLogin       = "Please provide email and password"
	msgInvalidBody        = "Invalid request body"
	msgServerError        = "Something went wrong!"
)

// Handler wires HTTP account endpoints to identity and session services.
type Handler struct {
	log *slog.Logger
	cfg Config

	users    identity.Store
	sessions *session.Service

	audit   AuditSink
	fp      token.Fingerprinter
	metrics *Metrics
	now     func() time.Time
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithAuditSink sets where audit events are persisted. Without one, events
// are only logged and login throttling is off.
func WithAuditSink(sink AuditSink) HandlerOption {
	return func(h *Handler) {
		if sink != nil {
			h.audit = sink
		}
	}
}

// WithFingerprinter sets how IPs and emails are hashed for the audit log.
func WithFingerprinter(fp token.Fingerprinter) HandlerOption {
	return func(h *Handler) { h.fp = fp }
}

// WithMetrics enables request counters.
func WithMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs an account Handler.
func NewHandler(log *slog.Logger, users identity.Store, sessions *session.Service, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if users == nil {
		return nil, errors.New("authapi: nil identity store")
	}
	if sessions == nil {
		return nil, errors.New("authapi: nil session service")
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:      log,
		cfg:      cfg.clamp(),
		users:    users,
		sessions: sessions,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Routes returns the account router, meant to be mounted at /api/auth.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/signup", h.handleSignup)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})
	return r
}

// SessionService returns the session service tokens are validated against.
func (h *Handler) SessionService() *session.Service {
	if h == nil {
		return nil
	}
	return h.sessions
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !h.readRequest(w, r, "signup", &req) {
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)
	ipKey := h.ipKey(ip)
	ua := strings.TrimSpace(r.UserAgent())
	subject := h.fp.Of(identity.NormalizeEmail(req.Email))

	u, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Now:      now,
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			h.auditSignupConflict(ctx, ipKey, subject, ua)
			h.metrics.observe("signup", "conflict")
			writeError(w, http.StatusConflict, "conflict", msgUserExists)
		case identity.IsInvalidInput(err):
			h.metrics.observe("signup", "invalid")
			writeError(w, http.StatusBadRequest, "invalid_request", invalidMessage(err))
		default:
			h.log.Error("auth.signup.fail", "err", err)
			h.metrics.observe("signup", "error")
			writeError(w, http.StatusInternalServerError, "server_error", msgServerError)
		}
		return
	}

	issued, err := h.sessions.IssueSession(ctx, now, u.ID, session.DeviceContext{UserAgent: ua, IP: ip})
	if err != nil {
		h.log.Error("auth.signup.issue_session.fail", "err", err)
		h.metrics.observe("signup", "error")
		writeError(w, http.StatusInternalServerError, "server_error", msgServerError)
		return
	}

	h.auditSignup(ctx, u.ID, issued.SessionID, ipKey, subject, ua)
	h.metrics.observe("signup", "ok")

	writeJSON(w, http.StatusCreated, authResponse{
		Success: true,
		Token:   issued.Token,
		User:    toUserResponse(u),
		Message: "Account created successfully",
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.readRequest(w, r, "login", &req) {
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		h.metrics.observe("login", "bad_request")
		writeError(w, http.StatusBadRequest, "invalid_request", msgMissingLogin)
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)
	ipKey := h.ipKey(ip)
	ua := strings.TrimSpace(r.UserAgent())
	subject := h.fp.Of(identity.NormalizeEmail(email))

	// IP-based throttling before the password check.
	if blocked, retryAfter, err := h.checkLoginIPThrottle(ctx, ipKey, now); err != nil {
		h.log.Error("auth.login.throttle_ip.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "Please retry later")
		return
	} else if blocked {
		h.auditLoginRateLimited(ctx, ipKey, subject, ua, retryAfter)
		h.metrics.observe("login", "rate_limited")
		writeRateLimited(w, retryAfter)
		return
	}
	if blocked, retryAfter, err := h.checkLoginSubjectThrottle(ctx, subject, now); err != nil {
		h.log.Error("auth.login.throttle_subject.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "Please retry later")
		return
	} else if blocked {
		h.auditLoginRateLimited(ctx, ipKey, subject, ua, retryAfter)
		h.metrics.observe("login", "rate_limited")
		writeRateLimited(w, retryAfter)
		return
	}

	u, err := h.users.Authenticate(ctx, email, req.Password)
	if err != nil {
		if identity.IsInvalidCredentials(err) {
			h.auditLoginFailed(ctx, ipKey, subject, ua, "bad_credentials")
			h.metrics.observe("login", "invalid_credentials")
			writeError(w, http.StatusUnauthorized, "invalid_credentials", msgInvalidCredentials)
			return
		}
		h.log.Error("auth.login.fail", "err", err)
		h.metrics.observe("login", "error")
		writeError(w, http.StatusInternalServerError, "server_error", msgServerError)
		return
	}

	issued, err := h.sessions.IssueSession(ctx, now, u.ID, session.DeviceContext{UserAgent: ua, IP: ip})
	if err != nil {
		h.log.Error("auth.login.issue_session.fail", "err", err)
		h.metrics.observe("login", "error")
		writeError(w, http.StatusInternalServerError, "server_error", msgServerError)
		return
	}

	h.auditLoginSuccess(ctx, u.ID, issued.SessionID, ipKey, subject, ua)
	h.metrics.observe("login", "ok")

	writeJSON(w, http.StatusOK, authResponse{
		Success: true,
		Token:   issued.Token,
		User:    toUserResponse(u),
		Message: "Login successful",
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		h.metrics.observe("logout", "unauthorized")
		return
	}

	ctx := r.Context()
	if err := h.sessions.RevokeSession(ctx, h.now(), claims.SessionID); err != nil {
		h.log.Error("auth.logout.fail", "err", err)
		h.metrics.observe("logout", "error")
		writeError(w, http.StatusInternalServerError, "server_error", msgServerError)
		return
	}

	h.auditLogout(ctx, claims.UserID, claims.SessionID, h.ipKey(clientIP(r, h.cfg.TrustProxy)), strings.TrimSpace(r.UserAgent()))
	h.metrics.observe("logout", "ok")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		h.metrics.observe("me", "unauthorized")
		return
	}

	ctx := r.Context()
	u, err := h.users.GetUser(ctx, claims.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			h.metrics.observe("me", "unauthorized")
			writeError(w, http.StatusUnauthorized, "not_found", "User not found")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		h.metrics.observe("me", "error")
		writeError(w, http.StatusInternalServerError, "server_error", msgServerError)
		return
	}

	if err := h.sessions.TouchSession(ctx, h.now(), claims.SessionID); err != nil {
		h.log.Warn("auth.me.touch.fail", "err", err)
	}
	h.metrics.observe("me", "ok")
	writeJSON(w, http.StatusOK, authResponse{Success: true, User: toUserResponse(u)})
}

// ---- helpers ----

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (session.AccessClaims, bool) {
	tok := bearerToken(r)
	if tok == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return session.AccessClaims{}, false
	}
	claims, err := h.sessions.ValidateAccessToken(r.Context(), tok, h.now())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
		return session.AccessClaims{}, false
	}
	return claims, true
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// invalidMessage surfaces the human part of an identity validation error.
func invalidMessage(err error) string {
	var op identity.OpError
	if errors.As(err, &op) && op.Msg != "" {
		return capitalize(op.Msg)
	}
	return "Invalid input"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
