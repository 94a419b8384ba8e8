package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/config"
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	pasetotoken "github.com/Alijeyrad/medcenter_backend/pkg/paseto"
	"github.com/Alijeyrad/medcenter_backend/pkg/phone"
	"github.com/Alijeyrad/medcenter_backend/pkg/util/password"
)

const minPasswordLength = 8

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type LoginRequest struct {
	Login    string // e-mail address or phone number
	Password string
}

type AuthTokens struct {
	SessionID    uuid.UUID
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds until access token expires
}

type Membership struct {
	MemberID   uuid.UUID `json:"member_id"`
	CenterID   uuid.UUID `json:"center_id"`
	CenterName string    `json:"center_name"`
	Role       string    `json:"role"`
	Specialty  *string   `json:"specialty,omitempty"`
}

type Profile struct {
	User        *repo.User   `json:"user"`
	Memberships []Membership `json:"memberships"`
}

type ChangePasswordRequest struct {
	Current string
	New     string
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*AuthTokens, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*AuthTokens, error)
	Logout(ctx context.Context, sessionID uuid.UUID) error
	Me(ctx context.Context, userID uuid.UUID) (*Profile, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error
}

// Users is the slice of the user repository the service needs.
type Users interface {
	Get(ctx context.Context, id uuid.UUID) (*repo.User, error)
	GetByEmail(ctx context.Context, email string) (*repo.User, error)
	GetByPhone(ctx context.Context, phone string) (*repo.User, error)
	SetPassword(ctx context.Context, id uuid.UUID, hash string) error
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
}

type Members interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*repo.CenterMember, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type authService struct {
	users    Users
	members  Members
	sessions SessionStore
	paseto   *pasetotoken.Manager
	hasher   *password.Hasher
	phones   *phone.Normalizer

	maxFailures int
	lockout     time.Duration
}

func New(
	users Users,
	members Members,
	sessions SessionStore,
	paseto *pasetotoken.Manager,
	hasher *password.Hasher,
	phones *phone.Normalizer,
	cfg *config.Config,
) Service {
	maxFailures := cfg.Authentication.MaxFailedLogins
	if maxFailures <= 0 {
		maxFailures = 5
	}
	lockout := time.Duration(cfg.Authentication.LockoutMinutes) * time.Minute
	if lockout <= 0 {
		lockout = 15 * time.Minute
	}
	return &authService{
		users:       users,
		members:     members,
		sessions:    sessions,
		paseto:      paseto,
		hasher:      hasher,
		phones:      phones,
		maxFailures: maxFailures,
		lockout:     lockout,
	}
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func (s *authService) Login(ctx context.Context, req LoginRequest) (*AuthTokens, error) {
	login := strings.ToLower(strings.TrimSpace(req.Login))
	if login == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	u, key, err := s.findUser(ctx, login)
	if err != nil {
		return nil, err
	}

	failures, err := s.sessions.Failures(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read login failures: %w", err)
	}
	if failures >= s.maxFailures {
		return nil, ErrAccountLocked
	}

	if u == nil {
		s.recordFailedLogin(ctx, key)
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Verify(u.PasswordHash, req.Password); err != nil {
		s.recordFailedLogin(ctx, key)
		return nil, ErrInvalidCredentials
	}
	if u.Status == repo.UserStatusSuspended {
		return nil, ErrAccountSuspended
	}

	if err := s.sessions.ResetFailures(ctx, key); err != nil {
		slog.Warn("reset login failures", "error", err)
	}
	if err := s.users.TouchLastLogin(ctx, u.ID); err != nil {
		slog.Warn("touch last login", "user_id", u.ID, "error", err)
	}
	if s.hasher.NeedsRehash(u.PasswordHash) {
		h, err := s.hasher.Hash(req.Password)
		if err == nil {
			err = s.users.SetPassword(ctx, u.ID, h)
		}
		if err != nil {
			slog.Warn("rehash password", "user_id", u.ID, "error", err)
		}
	}

	return s.createSession(ctx, u)
}

// findUser resolves the login to a user. A nil user with a nil error means
// the login is unknown; the returned key is used for lockout counting either way.
func (s *authService) findUser(ctx context.Context, login string) (*repo.User, string, error) {
	var (
		u   *repo.User
		err error
		key = login
	)
	if strings.Contains(login, "@") {
		u, err = s.users.GetByEmail(ctx, login)
	} else {
		e164, perr := s.phones.E164(login)
		if perr != nil {
			return nil, key, ErrInvalidCredentials
		}
		key = e164
		u, err = s.users.GetByPhone(ctx, e164)
	}
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, key, nil
		}
		return nil, key, fmt.Errorf("find user: %w", err)
	}
	return u, key, nil
}

// ---------------------------------------------------------------------------
// RefreshTokens
// ---------------------------------------------------------------------------

func (s *authService) RefreshTokens(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	claims, err := s.paseto.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	owner, err := s.sessions.Lookup(ctx, *claims.SessionID)
	if err != nil {
		return nil, err
	}
	if owner != claims.UserID {
		return nil, ErrInvalidToken
	}

	if err := s.sessions.Extend(ctx, *claims.SessionID, s.paseto.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("extend session: %w", err)
	}

	// Only the access token rotates; the refresh token lives until logout.
	accessToken, err := s.paseto.IssueAccess(claims.UserID, *claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	return &AuthTokens{
		SessionID:    *claims.SessionID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.paseto.AccessTTL().Seconds()),
	}, nil
}

// ---------------------------------------------------------------------------
// Logout
// ---------------------------------------------------------------------------

func (s *authService) Logout(ctx context.Context, sessionID uuid.UUID) error {
	deleted, err := s.sessions.Delete(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !deleted {
		slog.Debug("logout: session already expired", "session_id", sessionID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Me / ChangePassword
// ---------------------------------------------------------------------------

func (s *authService) Me(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	rows, err := s.members.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	memberships := make([]Membership, 0, len(rows))
	for _, m := range rows {
		if !m.IsActive {
			continue
		}
		memberships = append(memberships, Membership{
			MemberID:   m.ID,
			CenterID:   m.CenterID,
			CenterName: m.CenterName,
			Role:       m.Role,
			Specialty:  m.Specialty,
		})
	}
	return &Profile{User: u, Memberships: memberships}, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error {
	if len(req.New) < minPasswordLength {
		return ErrPasswordTooShort
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("get user: %w", err)
	}
	if err := s.hasher.Verify(u.PasswordHash, req.Current); err != nil {
		return ErrWrongPassword
	}
	h, err := s.hasher.Hash(req.New)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.SetPassword(ctx, userID, h); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *authService) createSession(ctx context.Context, u *repo.User) (*AuthTokens, error) {
	sessionID := uuid.Must(uuid.NewV7())

	if err := s.sessions.Create(ctx, sessionID, u.ID, s.paseto.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	access, refresh, err := s.paseto.IssuePair(u.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	return &AuthTokens{
		SessionID:    sessionID,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.paseto.AccessTTL().Seconds()),
	}, nil
}

func (s *authService) recordFailedLogin(ctx context.Context, key string) {
	n, err := s.sessions.RecordFailure(ctx, key, s.lockout)
	if err != nil {
		slog.Warn("record login failure", "error", err)
		return
	}
	if n >= s.maxFailures {
		slog.Warn("login locked", "attempts", n, "lockout", s.lockout)
	}
}
