package session

import (
	"context"
	"net"
	"time"
)

// DeviceContext describes the client that owns a session.
type DeviceContext struct {
	UserAgent string
	IP        net.IP
}

// Row mirrors a unileap.sessions row.
type Row struct {
	ID         string
	UserID     string
	CreatedAt  time.Time
	LastUsedAt *time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	UserAgent  string
}

// Active reports whether the row can back a token at now.
func (r Row) Active(now time.Time) error {
	if r.RevokedAt != nil {
		return ErrSessionRevoked
	}
	if !r.ExpiresAt.After(now) {
		return ErrSessionExpired
	}
	return nil
}

// Store abstracts persistence for session state.
type Store interface {
	// Create inserts a session and returns its id.
	Create(ctx context.Context, now time.Time, userID string, dev DeviceContext, expiresAt time.Time) (sessionID string, err error)

	// GetByID returns ErrSessionNotFound for an unknown id.
	GetByID(ctx context.Context, sessionID string) (Row, error)

	// Touch updates last_used_at.
	Touch(ctx context.Context, now time.Time, sessionID string) error

	// Revoke revokes a single session. Idempotent.
	Revoke(ctx context.Context, now time.Time, sessionID string, reason string) error

	// RevokeAll revokes every session of a user. Idempotent.
	RevokeAll(ctx context.Context, now time.Time, userID string, reason string) error
}
