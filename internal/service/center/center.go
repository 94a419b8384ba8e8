package center

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/config"
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/pagination"
	"github.com/Alijeyrad/medcenter_backend/pkg/authorize"
	"github.com/Alijeyrad/medcenter_backend/pkg/email"
	"github.com/Alijeyrad/medcenter_backend/pkg/phone"
	"github.com/Alijeyrad/medcenter_backend/pkg/util/codes"
	"github.com/Alijeyrad/medcenter_backend/pkg/util/password"
)

const maxSlugAttempts = 5

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type CreateCenterRequest struct {
	Name     string  `json:"name"`
	Slug     string  `json:"slug"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	Timezone string  `json:"timezone"`
}

type UpdateCenterRequest struct {
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	Timezone *string `json:"timezone"`
	IsActive *bool   `json:"is_active"`
}

type ListMembersRequest struct {
	pagination.Request
	Role       string
	ActiveOnly bool
}

// AddMemberRequest adds an existing user (by e-mail) or creates a new one.
type AddMemberRequest struct {
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Phone     *string `json:"phone"`
	Role      string  `json:"role"`
	Specialty *string `json:"specialty"`
}

type AddMemberResult struct {
	Member      *repo.CenterMember `json:"member"`
	UserCreated bool               `json:"user_created"`
	InviteSent  bool               `json:"invite_sent"`
}

type UpdateMemberRequest struct {
	Role      *string `json:"role"`
	Specialty *string `json:"specialty"`
	IsActive  *bool   `json:"is_active"`
}

// Mailer delivers invitation e-mails; *email.Client satisfies it.
type Mailer interface {
	Send(ctx context.Context, m email.Message) error
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	CreateCenter(ctx context.Context, ownerID uuid.UUID, req CreateCenterRequest) (*repo.Center, error)
	GetCenter(ctx context.Context, centerID uuid.UUID) (*repo.Center, error)
	// ListCenters lists every center when userID is nil, else the user's centers.
	ListCenters(ctx context.Context, userID *uuid.UUID, req pagination.Request) (*pagination.Result[*repo.Center], error)
	UpdateCenter(ctx context.Context, centerID uuid.UUID, req UpdateCenterRequest) (*repo.Center, error)
	DeleteCenter(ctx context.Context, centerID uuid.UUID) error

	ListMembers(ctx context.Context, centerID uuid.UUID, req ListMembersRequest) (*pagination.Result[*repo.CenterMember], error)
	GetMember(ctx context.Context, centerID, memberID uuid.UUID) (*repo.CenterMember, error)
	AddMember(ctx context.Context, centerID uuid.UUID, req AddMemberRequest) (*AddMemberResult, error)
	UpdateMember(ctx context.Context, centerID, memberID uuid.UUID, req UpdateMemberRequest) (*repo.CenterMember, error)
	DeactivateMember(ctx context.Context, centerID, memberID uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type centerService struct {
	db     *repo.Client
	auth   authorize.IAuthorization
	mailer Mailer
	hasher *password.Hasher
	phones *phone.Normalizer

	tempPasswordLen int
	loginURL        string
}

func New(
	db *repo.Client,
	auth authorize.IAuthorization,
	mailer Mailer,
	hasher *password.Hasher,
	phones *phone.Normalizer,
	cfg *config.Config,
) Service {
	loginURL := ""
	if cfg.Server.Domain != "" {
		loginURL = "https://" + cfg.Server.Domain + "/login"
	}
	return &centerService{
		db:              db,
		auth:            auth,
		mailer:          mailer,
		hasher:          hasher,
		phones:          phones,
		tempPasswordLen: cfg.Authentication.DefaultPasswordLength,
		loginURL:        loginURL,
	}
}

// ---------------------------------------------------------------------------
// Center CRUD
// ---------------------------------------------------------------------------

func (s *centerService) CreateCenter(ctx context.Context, ownerID uuid.UUID, req CreateCenterRequest) (*repo.Center, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, ErrNameRequired
	}
	phoneNum, err := s.phones.Optional(req.Phone)
	if err != nil {
		return nil, ErrInvalidPhone
	}

	explicit := strings.TrimSpace(req.Slug) != ""
	slug := codes.Slugify(req.Slug)
	if slug == "" {
		slug = codes.Slugify(req.Name)
	}
	if slug == "" {
		if slug, err = codes.SlugWithSuffix(""); err != nil {
			return nil, fmt.Errorf("generate slug: %w", err)
		}
	}

	c := &repo.Center{
		Name:     req.Name,
		Phone:    phoneNum,
		Address:  req.Address,
		Timezone: req.Timezone,
	}

	for attempt := 0; ; attempt++ {
		c.ID, c.Slug = uuid.Nil, slug
		err = s.db.WithTx(ctx, func(tx *repo.Client) error {
			if err := tx.Center.Create(ctx, c); err != nil {
				return err
			}
			return tx.Member.Create(ctx, &repo.CenterMember{
				CenterID: c.ID,
				UserID:   ownerID,
				Role:     repo.RoleOwner,
			})
		})
		if err == nil {
			break
		}
		if !repo.IsConflict(err) {
			return nil, fmt.Errorf("create center: %w", err)
		}
		// A requested slug is taken as-is or not at all.
		if explicit || attempt+1 >= maxSlugAttempts {
			return nil, ErrSlugAlreadyExists
		}
		if slug, err = codes.SlugWithSuffix(codes.Slugify(req.Name)); err != nil {
			return nil, fmt.Errorf("generate slug: %w", err)
		}
	}

	if err := authorize.AssignCenterRole(ctx, s.auth, ownerID.String(), c.ID.String(), repo.RoleOwner); err != nil {
		// RBAC can be repaired by re-running role assignment.
		slog.Warn("assign center owner role", "center_id", c.ID, "user_id", ownerID, "error", err)
	}
	return c, nil
}

func (s *centerService) GetCenter(ctx context.Context, centerID uuid.UUID) (*repo.Center, error) {
	c, err := s.db.Center.Get(ctx, centerID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrCenterNotFound
		}
		return nil, fmt.Errorf("get center: %w", err)
	}
	return c, nil
}

func (s *centerService) ListCenters(ctx context.Context, userID *uuid.UUID, req pagination.Request) (*pagination.Result[*repo.Center], error) {
	req = req.Normalize()
	list, total, err := s.db.Center.List(ctx, userID, req.Repo())
	if err != nil {
		return nil, fmt.Errorf("list centers: %w", err)
	}
	return pagination.NewResult(list, total, req), nil
}

func (s *centerService) UpdateCenter(ctx context.Context, centerID uuid.UUID, req UpdateCenterRequest) (*repo.Center, error) {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		req.Name = &name
	}
	if req.Phone != nil {
		p, err := s.phones.Optional(req.Phone)
		if err != nil {
			return nil, ErrInvalidPhone
		}
		if p == nil {
			empty := ""
			p = &empty
		}
		req.Phone = p
	}

	err := s.db.Center.Update(ctx, centerID, repo.CenterUpdate{
		Name:     req.Name,
		Phone:    req.Phone,
		Address:  req.Address,
		Timezone: req.Timezone,
		IsActive: req.IsActive,
	})
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrCenterNotFound
		}
		return nil, fmt.Errorf("update center: %w", err)
	}
	return s.GetCenter(ctx, centerID)
}

func (s *centerService) DeleteCenter(ctx context.Context, centerID uuid.UUID) error {
	if err := s.db.Center.SoftDelete(ctx, centerID); err != nil {
		if repo.IsNotFound(err) {
			return ErrCenterNotFound
		}
		return fmt.Errorf("delete center: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

func (s *centerService) ListMembers(ctx context.Context, centerID uuid.UUID, req ListMembersRequest) (*pagination.Result[*repo.CenterMember], error) {
	if req.Role != "" && !authorize.IsValidMemberRole(req.Role) {
		return nil, ErrInvalidRole
	}
	page := req.Normalize()
	list, total, err := s.db.Member.List(ctx, centerID, repo.MemberFilter{Role: req.Role, ActiveOnly: req.ActiveOnly}, page.Repo())
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return pagination.NewResult(list, total, page), nil
}

func (s *centerService) GetMember(ctx context.Context, centerID, memberID uuid.UUID) (*repo.CenterMember, error) {
	m, err := s.db.Member.Get(ctx, centerID, memberID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *centerService) AddMember(ctx context.Context, centerID uuid.UUID, req AddMemberRequest) (*AddMemberResult, error) {
	if !authorize.IsValidMemberRole(req.Role) {
		return nil, ErrInvalidRole
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, ErrInvalidEmail
	}
	req.Email = strings.ToLower(addr.Address)
	phoneNum, err := s.phones.Optional(req.Phone)
	if err != nil {
		return nil, ErrInvalidPhone
	}

	center, err := s.GetCenter(ctx, centerID)
	if err != nil {
		return nil, err
	}

	var (
		res     = &AddMemberResult{}
		user    *repo.User
		tempPwd string
	)
	err = s.db.WithTx(ctx, func(tx *repo.Client) error {
		u, err := tx.User.GetByEmail(ctx, req.Email)
		switch {
		case err == nil:
			user = u
		case repo.IsNotFound(err):
			if tempPwd, err = password.GenerateTemporary(s.tempPasswordLen); err != nil {
				return fmt.Errorf("generate password: %w", err)
			}
			hash, err := s.hasher.Hash(tempPwd)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			user = &repo.User{
				Email:        req.Email,
				Phone:        phoneNum,
				PasswordHash: hash,
				FirstName:    strings.TrimSpace(req.FirstName),
				LastName:     strings.TrimSpace(req.LastName),
			}
			if err := tx.User.Create(ctx, user); err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			res.UserCreated = true
		default:
			return fmt.Errorf("find user: %w", err)
		}

		m := &repo.CenterMember{
			CenterID:  centerID,
			UserID:    user.ID,
			Role:      req.Role,
			Specialty: req.Specialty,
		}
		if err := tx.Member.Create(ctx, m); err != nil {
			if repo.IsConflict(err) {
				return ErrAlreadyMember
			}
			return fmt.Errorf("create member: %w", err)
		}
		res.Member = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := authorize.AssignCenterRole(ctx, s.auth, user.ID.String(), centerID.String(), req.Role); err != nil {
		slog.Warn("assign center role", "center_id", centerID, "user_id", user.ID, "role", req.Role, "error", err)
	}

	if res.UserCreated {
		res.InviteSent = s.sendInvite(ctx, center, user, req.Role, tempPwd)
	}

	if m, err := s.db.Member.Get(ctx, centerID, res.Member.ID); err == nil {
		res.Member = m
	}
	return res, nil
}

func (s *centerService) UpdateMember(ctx context.Context, centerID, memberID uuid.UUID, req UpdateMemberRequest) (*repo.CenterMember, error) {
	if req.Role != nil && !authorize.IsValidMemberRole(*req.Role) {
		return nil, ErrInvalidRole
	}
	current, err := s.GetMember(ctx, centerID, memberID)
	if err != nil {
		return nil, err
	}

	demotesOwner := current.Role == repo.RoleOwner && current.IsActive &&
		((req.Role != nil && *req.Role != repo.RoleOwner) || (req.IsActive != nil && !*req.IsActive))
	if demotesOwner {
		if err := s.ensureAnotherOwner(ctx, centerID); err != nil {
			return nil, err
		}
	}

	if err := s.db.Member.Update(ctx, centerID, memberID, repo.MemberUpdate{
		Role:      req.Role,
		Specialty: req.Specialty,
		IsActive:  req.IsActive,
	}); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("update member: %w", err)
	}

	s.syncRole(ctx, current, req)
	return s.GetMember(ctx, centerID, memberID)
}

func (s *centerService) DeactivateMember(ctx context.Context, centerID, memberID uuid.UUID) error {
	inactive := false
	_, err := s.UpdateMember(ctx, centerID, memberID, UpdateMemberRequest{IsActive: &inactive})
	return err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *centerService) ensureAnotherOwner(ctx context.Context, centerID uuid.UUID) error {
	_, owners, err := s.db.Member.List(ctx, centerID,
		repo.MemberFilter{Role: repo.RoleOwner, ActiveOnly: true}, repo.Page{Limit: 1})
	if err != nil {
		return fmt.Errorf("count owners: %w", err)
	}
	if owners <= 1 {
		return ErrCannotRemoveOwner
	}
	return nil
}

// syncRole mirrors a member change into casbin grouping policies.
func (s *centerService) syncRole(ctx context.Context, before *repo.CenterMember, req UpdateMemberRequest) {
	userID, centerID := before.UserID.String(), before.CenterID.String()

	role := before.Role
	if req.Role != nil {
		role = *req.Role
	}
	active := before.IsActive
	if req.IsActive != nil {
		active = *req.IsActive
	}

	var err error
	switch {
	case !active && before.IsActive:
		err = authorize.RemoveCenterRole(ctx, s.auth, userID, centerID, before.Role)
	case active && !before.IsActive:
		err = authorize.AssignCenterRole(ctx, s.auth, userID, centerID, role)
	case active:
		err = authorize.ReplaceCenterRole(ctx, s.auth, userID, centerID, before.Role, role)
	}
	if err != nil {
		slog.Warn("sync center role", "center_id", centerID, "user_id", userID, "error", err)
	}
}

func (s *centerService) sendInvite(ctx context.Context, c *repo.Center, u *repo.User, role, tempPwd string) bool {
	if s.mailer == nil {
		return false
	}
	msg := email.BuildMemberInviteEmail(email.InviteEmailData{
		FirstName:         u.FirstName,
		Email:             u.Email,
		CenterName:        c.Name,
		Role:              role,
		TemporaryPassword: tempPwd,
		LoginURL:          s.loginURL,
	})
	if err := s.mailer.Send(ctx, msg); err != nil {
		slog.Warn("send member invite", "center_id", c.ID, "user_id", u.ID, "error", err)
		return false
	}
	return true
}
