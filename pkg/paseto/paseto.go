package pasetotoken

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/google/uuid"
)

const (
	claimType    = "typ"
	claimUser    = "uid"
	claimSession = "sid"
)

type Config struct {
	Mode Mode

	Issuer   string
	Audience string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	Implicit []byte
}

// Manager issues and verifies the session-bound access/refresh token pair.
type Manager struct {
	cfg  Config
	seal func(*paseto.Token) (string, error)
	open func(string) (*paseto.Token, error)
}

func New(cfg Config, keys Keys) (*Manager, error) {
	if cfg.Mode != keys.Mode {
		return nil, ErrConfig{Msg: "cfg.Mode must match keys.Mode"}
	}
	if cfg.Issuer == "" {
		return nil, ErrConfig{Msg: "Issuer is required"}
	}
	if cfg.Audience == "" {
		return nil, ErrConfig{Msg: "Audience is required"}
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}

	p := paseto.NewParser()
	p.AddRule(paseto.IssuedBy(cfg.Issuer), paseto.ForAudience(cfg.Audience), paseto.NotExpired(), notBeforeNow)

	m := &Manager{cfg: cfg}
	switch keys.Mode {
	case ModeLocal:
		if keys.Symmetric == nil {
			return nil, ErrConfig{Msg: "missing symmetric key"}
		}
		key := *keys.Symmetric
		m.seal = func(t *paseto.Token) (string, error) { return t.V4Encrypt(key, cfg.Implicit), nil }
		m.open = func(s string) (*paseto.Token, error) { return p.ParseV4Local(key, s, cfg.Implicit) }
	case ModePublic:
		if keys.Public == nil {
			return nil, ErrConfig{Msg: "missing public key"}
		}
		pub := *keys.Public
		m.open = func(s string) (*paseto.Token, error) { return p.ParseV4Public(pub, s, cfg.Implicit) }
		if keys.Secret == nil {
			// Verify-only replica.
			m.seal = func(*paseto.Token) (string, error) { return "", ErrConfig{Msg: "missing secret key"} }
		} else {
			sec := *keys.Secret
			m.seal = func(t *paseto.Token) (string, error) { return t.V4Sign(sec, cfg.Implicit), nil }
		}
	default:
		return nil, ErrConfig{Msg: "unknown mode"}
	}
	return m, nil
}

// IssuePair issues the access and refresh tokens of a new login session.
func (m *Manager) IssuePair(userID, sessionID uuid.UUID) (access, refresh string, err error) {
	if access, err = m.IssueAccess(userID, sessionID); err != nil {
		return "", "", err
	}
	if refresh, err = m.issue(TokenTypeRefresh, userID, sessionID, m.cfg.RefreshTTL); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// IssueAccess issues a fresh access token for an existing session.
func (m *Manager) IssueAccess(userID, sessionID uuid.UUID) (string, error) {
	return m.issue(TokenTypeAccess, userID, sessionID, m.cfg.AccessTTL)
}

// VerifyAccess accepts only access tokens.
func (m *Manager) VerifyAccess(token string) (*Claims, error) {
	return m.verify(token, TokenTypeAccess)
}

// VerifyRefresh accepts only refresh tokens.
func (m *Manager) VerifyRefresh(token string) (*Claims, error) {
	return m.verify(token, TokenTypeRefresh)
}

// AccessTTL is the configured lifetime of access tokens.
func (m *Manager) AccessTTL() time.Duration { return m.cfg.AccessTTL }

// RefreshTTL is the configured lifetime of refresh tokens and sessions.
func (m *Manager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

func (m *Manager) issue(tt TokenType, userID, sessionID uuid.UUID, ttl time.Duration) (string, error) {
	if sessionID == uuid.Nil {
		return "", ErrNoSession
	}
	now := time.Now()

	tok := paseto.NewToken()
	tok.SetIssuer(m.cfg.Issuer)
	tok.SetAudience(m.cfg.Audience)
	tok.SetJti(randHex(16))
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(now.Add(ttl))
	tok.SetSubject(userID.String())

	tok.SetString(claimType, string(tt))
	tok.SetString(claimUser, userID.String())
	tok.SetString(claimSession, sessionID.String())

	return m.seal(&tok)
}

func (m *Manager) verify(token string, want TokenType) (*Claims, error) {
	tok, err := m.open(token)
	if err != nil {
		return nil, ErrInvalidToken{Err: err}
	}
	claims, err := readClaims(tok)
	if err != nil {
		return nil, ErrInvalidToken{Err: err}
	}
	if claims.Type != want {
		return nil, ErrInvalidToken{Err: ErrWrongType}
	}
	return claims, nil
}

func readClaims(tok *paseto.Token) (*Claims, error) {
	typ, err := tok.GetString(claimType)
	if err != nil {
		return nil, err
	}
	uid, err := uuidClaim(tok, claimUser)
	if err != nil {
		return nil, err
	}
	sid, err := uuidClaim(tok, claimSession)
	if err != nil {
		return nil, ErrNoSession
	}
	jti, err := tok.GetJti()
	if err != nil {
		return nil, err
	}
	iat, err := tok.GetIssuedAt()
	if err != nil {
		return nil, err
	}
	exp, err := tok.GetExpiration()
	if err != nil {
		return nil, err
	}
	return &Claims{
		Type:      TokenType(typ),
		UserID:    uid,
		SessionID: &sid,
		TokenID:   jti,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}, nil
}

func uuidClaim(tok *paseto.Token, key string) (uuid.UUID, error) {
	s, err := tok.GetString(key)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(s)
}

// notBeforeNow checks nbf against the clock at parse time.
func notBeforeNow(tok paseto.Token) error {
	nbf, err := tok.GetNotBefore()
	if err != nil {
		return err
	}
	if time.Now().Before(nbf) {
		return errors.New("token is not valid yet")
	}
	return nil
}

func randHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
