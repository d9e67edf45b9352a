package session

import (
	"context"
	"strings"
	"time"
)

// Service issues bearer tokens backed by revocable server sessions.
type Service struct {
	cfg    Config
	tokens AccessTokenManager
	store  Store
}

// Issued is the result of IssueSession.
type Issued struct {
	SessionID string
	Token     string
	ExpiresAt time.Time
}

// NewService constructs a Service.
func NewService(cfg Config, store Store, tokens AccessTokenManager) *Service {
	return &Service{cfg: cfg, store: store, tokens: tokens}
}

// IssueSession creates a session row and signs a token for it.
func (s *Service) IssueSession(ctx context.Context, now time.Time, userID string, dev DeviceContext) (Issued, error) {
	exp := now.Add(s.cfg.TokenTTL)

	sessionID, err := s.store.Create(ctx, now, userID, dev, exp)
	if err != nil {
		return Issued{}, err
	}
	tok, tokExp, err := s.tokens.Issue(userID, sessionID, now)
	if err != nil {
		return Issued{}, err
	}
	return Issued{SessionID: sessionID, Token: tok, ExpiresAt: tokExp}, nil
}

// ValidateAccessToken verifies token and checks that its session is active.
func (s *Service) ValidateAccessToken(ctx context.Context, token string, now time.Time) (AccessClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > 4096 {
		return AccessClaims{}, ErrInvalidToken
	}
	claims, err := s.tokens.Verify(token, now)
	if err != nil {
		return AccessClaims{}, err
	}
	if !claims.ExpiresAt.After(now) {
		return AccessClaims{}, ErrInvalidToken
	}

	row, err := s.store.GetByID(ctx, claims.SessionID)
	if err != nil {
		return AccessClaims{}, err
	}
	if row.UserID != claims.UserID {
		return AccessClaims{}, ErrInvalidToken
	}
	if err := row.Active(now); err != nil {
		return AccessClaims{}, err
	}
	return claims, nil
}

// RevokeSession revokes a single session (logout).
func (s *Service) RevokeSession(ctx context.Context, now time.Time, sessionID string) error {
	return s.store.Revoke(ctx, now, sessionID, "logout")
}

// RevokeAll revokes every session of a user.
func (s *Service) RevokeAll(ctx context.Context, now time.Time, userID string) error {
	return s.store.RevokeAll(ctx, now, userID, "logout_all")
}

// TouchSession updates last_used_at (best effort).
func (s *Service) TouchSession(ctx context.Context, now time.Time, sessionID string) error {
	return s.store.Touch(ctx, now, sessionID)
}
