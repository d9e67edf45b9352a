package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

const (
	// tokenAudience is the "aud" claim; only the site accepts these tokens.
	tokenAudience = "unileap.site"
	// tokenPurpose is bound as implicit assertion so a token signed by the
	// same key for another purpose never verifies here.
	tokenPurpose = "unileap.access.v1"
)

// AccessClaims is the identity carried by a bearer token.
type AccessClaims struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Issuer    string
}

// AccessTokenManager issues and verifies bearer tokens.
type AccessTokenManager interface {
	Issue(userID, sessionID string, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (AccessClaims, error)
	PublicKeyHex() string
}

// tokenFooter names the signing key so verifiers can tell a rotated-out key
// from a forged token.
type tokenFooter struct {
	KeyID string `json:"kid"`
}

type pasetoV4PublicManager struct {
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
	footer []byte
	keyID  string
}

// NewPasetoV4PublicManager builds an AccessTokenManager over PASETO v4.public.
// Tokens carry the user as "sub", the server session as "sid", and the key id
// in the footer.
func NewPasetoV4PublicManager(cfg Config) (AccessTokenManager, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.PasetoV4SecretKeyHex)
	if err != nil || cfg.TokenTTL <= 0 || cfg.Issuer == "" {
		return nil, ErrConfig
	}
	public := secret.Public()
	kid := keyID(public)
	footer, err := json.Marshal(tokenFooter{KeyID: kid})
	if err != nil {
		return nil, err
	}
	return &pasetoV4PublicManager{
		issuer:    cfg.Issuer,
		ttl:       cfg.TokenTTL,
		clockSkew: cfg.ClockSkew,
		secret:    secret,
		public:    public,
		footer:    footer,
		keyID:     kid,
	}, nil
}

func keyID(pub paseto.V4AsymmetricPublicKey) string {
	sum := sha256.Sum256(pub.ExportBytes())
	return hex.EncodeToString(sum[:8])
}

func (m *pasetoV4PublicManager) PublicKeyHex() string {
	return m.public.ExportHex()
}

func (m *pasetoV4PublicManager) Issue(userID, sessionID string, now time.Time) (string, time.Time, error) {
	if userID == "" || sessionID == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	exp := now.Add(m.ttl)

	tok := paseto.NewToken()
	tok.SetIssuer(m.issuer)
	tok.SetAudience(tokenAudience)
	tok.SetSubject(userID)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(exp)
	tok.SetString("sid", sessionID)
	tok.SetFooter(m.footer)

	return tok.V4Sign(m.secret, []byte(tokenPurpose)), exp, nil
}

func (m *pasetoV4PublicManager) Verify(token string, now time.Time) (AccessClaims, error) {
	p := paseto.NewParserWithoutExpiryCheck()
	p.AddRule(paseto.IssuedBy(m.issuer))
	p.AddRule(paseto.ForAudience(tokenAudience))
	// Checking slightly in the future tolerates "nbf" drift between hosts.
	p.AddRule(paseto.ValidAt(now.Add(m.clockSkew)))

	parsed, err := p.ParseV4Public(m.public, token, []byte(tokenPurpose))
	if err != nil {
		return AccessClaims{}, ErrInvalidToken
	}

	var f tokenFooter
	if err := json.Unmarshal(parsed.Footer(), &f); err != nil || f.KeyID != m.keyID {
		return AccessClaims{}, ErrInvalidToken
	}

	uid, err := parsed.GetSubject()
	if err != nil || uid == "" {
		return AccessClaims{}, ErrInvalidToken
	}
	sid, err := parsed.GetString("sid")
	if err != nil || sid == "" {
		return AccessClaims{}, ErrInvalidToken
	}

	iss, _ := parsed.GetIssuer()
	exp, _ := parsed.GetExpiration()
	iat, _ := parsed.GetIssuedAt()

	return AccessClaims{
		UserID:    uid,
		SessionID: sid,
		ExpiresAt: exp,
		IssuedAt:  iat,
		Issuer:    iss,
	}, nil
}
