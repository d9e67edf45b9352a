package authapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit actions.
const (
	ActionSignup           = "auth.signup"
	ActionSignupConflict   = "auth.signup.conflict"
	ActionLoginSuccess     = "auth.login.success"
	ActionLoginFailed      = "auth.login.failed"
	ActionLoginRateLimited = "auth.login.rate_limited"
	ActionLogout           = "auth.logout"
)

// AuditEvent is one audit_log row. IPKey and SubjectKey are fingerprints,
// never raw addresses or emails.
type AuditEvent struct {
	Action     string
	UserID     string
	SessionID  string
	IPKey      string
	SubjectKey string
	UserAgent  string
	Meta       map[string]any
	At         time.Time
}

// FailureQuery selects login failures by exactly one of IPKey or SubjectKey.
type FailureQuery struct {
	IPKey      string
	SubjectKey string
	Since      time.Time
}

// AuditSink persists audit events and answers the throttle queries.
type AuditSink interface {
	Record(ctx context.Context, ev AuditEvent) error
	LoginFailures(ctx context.Context, q FailureQuery) ([]time.Time, error)
}

// ---- handler helpers ----

func (h *Handler) auditSignup(ctx context.Context, userID, sessionID, ipKey, subject, ua string) {
	h.insertAudit(ctx, AuditEvent{Action: ActionSignup, UserID: userID, SessionID: sessionID, IPKey: ipKey, SubjectKey: subject, UserAgent: ua})
}

func (h *Handler) auditSignupConflict(ctx context.Context, ipKey, subject, ua string) {
	h.insertAudit(ctx, AuditEvent{Action: ActionSignupConflict, IPKey: ipKey, SubjectKey: subject, UserAgent: ua})
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID, sessionID, ipKey, subject, ua string) {
	h.insertAudit(ctx, AuditEvent{Action: ActionLoginSuccess, UserID: userID, SessionID: sessionID, IPKey: ipKey, SubjectKey: subject, UserAgent: ua})
}

func (h *Handler) auditLoginFailed(ctx context.Context, ipKey, subject, ua, reason string) {
	h.insertAudit(ctx, AuditEvent{Action: ActionLoginFailed, IPKey: ipKey, SubjectKey: subject, UserAgent: ua, Meta: map[string]any{
		"reason": reason,
	}})
}

func (h *Handler) auditLoginRateLimited(ctx context.Context, ipKey, subject, ua string, retryAfter time.Duration) {
	h.insertAudit(ctx, AuditEvent{Action: ActionLoginRateLimited, IPKey: ipKey, SubjectKey: subject, UserAgent: ua, Meta: map[string]any{
		"retry_after_s": int64(retryAfter.Seconds()),
	}})
}

func (h *Handler) auditLogout(ctx context.Context, userID, sessionID, ipKey, ua string) {
	h.insertAudit(ctx, AuditEvent{Action: ActionLogout, UserID: userID, SessionID: sessionID, IPKey: ipKey, UserAgent: ua})
}

// insertAudit logs every event and records it in the sink. Sink failures are
// logged and never fail the request.
func (h *Handler) insertAudit(ctx context.Context, ev AuditEvent) {
	if h == nil {
		return
	}
	ev.Action = strings.TrimSpace(ev.Action)
	if ev.Action == "" {
		return
	}
	if ev.At.IsZero() {
		ev.At = h.now()
	}

	h.log.Info("auth.audit",
		"action", ev.Action,
		"user_id", ev.UserID,
		"session_id", ev.SessionID,
		"ip_key", shortKey(ev.IPKey),
	)

	if h.audit == nil {
		return
	}
	if err := h.audit.Record(ctx, ev); err != nil {
		h.log.Error("auth.audit.insert.fail", "err", err, "action", ev.Action)
	}
}

func (h *Handler) ipKey(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return h.fp.Of(ip.String())
}

func shortKey(k string) string {
	if len(k) > 12 {
		return k[:12]
	}
	return k
}

// ---- memory sink ----

// DefaultMemoryAuditCap bounds MemoryAudit.
const DefaultMemoryAuditCap = 4096

// MemoryAudit keeps the most recent events in a ring buffer.
type MemoryAudit struct {
	mu     sync.Mutex
	events []AuditEvent
	next   int
	full   bool
}

// NewMemoryAudit returns a ring of capacity n (DefaultMemoryAuditCap if n <= 0).
func NewMemoryAudit(n int) *MemoryAudit {
	if n <= 0 {
		n = DefaultMemoryAuditCap
	}
	return &MemoryAudit{events: make([]AuditEvent, n)}
}

func (m *MemoryAudit) Record(_ context.Context, ev AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[m.next] = ev
	m.next = (m.next + 1) % len(m.events)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

func (m *MemoryAudit) LoginFailures(_ context.Context, q FailureQuery) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []time.Time
	for _, ev := range m.snapshotLocked() {
		if ev.Action != ActionLoginFailed || ev.At.Before(q.Since) {
			continue
		}
		if matchFailure(ev, q) {
			out = append(out, ev.At)
		}
	}
	return out, nil
}

// Events returns the retained events, oldest first.
func (m *MemoryAudit) Events() []AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AuditEvent(nil), m.snapshotLocked()...)
}

func (m *MemoryAudit) snapshotLocked() []AuditEvent {
	if !m.full {
		return m.events[:m.next]
	}
	out := make([]AuditEvent, 0, len(m.events))
	out = append(out, m.events[m.next:]...)
	return append(out, m.events[:m.next]...)
}

func matchFailure(ev AuditEvent, q FailureQuery) bool {
	switch {
	case q.IPKey != "":
		return ev.IPKey == q.IPKey
	case q.SubjectKey != "":
		return ev.SubjectKey == q.SubjectKey
	default:
		return false
	}
}

// ---- postgres sink ----

// maxFailureRows caps throttle queries; no tier needs more.
const maxFailureRows = 200

// PostgresAudit writes to <schema>.audit_log.
type PostgresAudit struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresAudit returns a sink over schema (default "unileap").
func NewPostgresAudit(pool *pgxpool.Pool, schema string) *PostgresAudit {
	if schema == "" {
		schema = "unileap"
	}
	return &PostgresAudit{pool: pool, table: pgx.Identifier{schema, "audit_log"}.Sanitize()}
}

func (p *PostgresAudit) Record(ctx context.Context, ev AuditEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	var meta *string
	if len(ev.Meta) > 0 {
		if b, err := json.Marshal(ev.Meta); err == nil {
			s := string(b)
			meta = &s
		}
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO `+p.table+` (
			action, user_id, session_id, ip_key, subject_key, user_agent, meta, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
	`, ev.Action, trimOrNil(ev.UserID), trimOrNil(ev.SessionID), trimOrNil(ev.IPKey),
		trimOrNil(ev.SubjectKey), trimOrNil(ev.UserAgent), meta, ev.At)
	return err
}

func (p *PostgresAudit) LoginFailures(ctx context.Context, q FailureQuery) ([]time.Time, error) {
	col, val := "ip_key", q.IPKey
	if val == "" {
		col, val = "subject_key", q.SubjectKey
	}
	if val == "" {
		return nil, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT created_at
		FROM `+p.table+`
		WHERE action = $1
		  AND `+col+` = $2
		  AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT $4
	`, ActionLoginFailed, val, q.Since, maxFailureRows)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[time.Time])
}

// AuditSchemaSQL returns the DDL for audit_log.
func AuditSchemaSQL(schema string) string {
	t := pgx.Identifier{schema, "audit_log"}.Sanitize()
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id BIGSERIAL PRIMARY KEY,
  action TEXT NOT NULL,
  user_id TEXT NULL,
  session_id TEXT NULL,
  ip_key TEXT NULL,
  subject_key TEXT NULL,
  user_agent TEXT NULL,
  meta JSONB NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audit_log_ip_key ON %s (action, ip_key, created_at);
CREATE INDEX IF NOT EXISTS idx_audit_log_subject_key ON %s (action, subject_key, created_at);
`, t, t, t)
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
