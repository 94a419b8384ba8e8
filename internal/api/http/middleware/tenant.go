package middleware

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/pkg/authorize"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

const (
	LocalsCenterID   = "center_id"
	LocalsMemberRole = "member_role"
	LocalsMemberID   = "member_id"
	LocalsScope      = "center_scope"
)

// Tenancy looks up centers and memberships.
type Tenancy interface {
	Center(ctx context.Context, id uuid.UUID) (*repo.Center, error)
	MemberByUser(ctx context.Context, centerID, userID uuid.UUID) (*repo.CenterMember, error)
}

// SuperAdmins is satisfied by authorize.IAuthorization.
type SuperAdmins interface {
	IsSuperAdmin(ctx context.Context, subject authorize.GroupSubject) bool
}

// CenterContext reads the center ID from the :id URL param (the /centers/:id
// routes) and applies the same checks as CenterHeader.
func CenterContext(t Tenancy, admins SuperAdmins) fiber.Handler {
	return func(c fiber.Ctx) error {
		return resolveCenter(c, t, admins, c.Params("id"))
	}
}

func resolveCenter(c fiber.Ctx, t Tenancy, admins SuperAdmins, idStr string) error {
	centerID, err := uuid.Parse(idStr)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid center id")
	}

	claims, ok := ClaimsFromFiber(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	center, err := t.Center(c.Context(), centerID)
	if err != nil {
		if repo.IsNotFound(err) {
			return fiber.ErrNotFound
		}
		return err
	}

	scope := &reqctx.CenterScope{CenterID: centerID}
	if admins != nil && admins.IsSuperAdmin(c.Context(), authorize.GroupSubject(claims.UserID.String())) {
		scope.IsSuperAdmin = true
	}
	if !center.IsActive && !scope.IsSuperAdmin {
		return fiber.ErrNotFound
	}

	m, err := t.MemberByUser(c.Context(), centerID, claims.UserID)
	switch {
	case err == nil && m.IsActive:
		scope.MemberID = m.ID
		scope.Role = m.Role
	case err != nil && !repo.IsNotFound(err):
		return err
	case !scope.IsSuperAdmin:
		return fiber.ErrForbidden
	}

	c.Locals(LocalsCenterID, centerID.String())
	c.Locals(LocalsMemberRole, scope.Role)
	c.Locals(LocalsMemberID, scope.MemberID.String())
	c.Locals(LocalsScope, scope)
	c.SetContext(reqctx.WithCenter(c.Context(), scope))

	return c.Next()
}

// ScopeFromFiber returns the center scope stored by CenterHeader / CenterContext.
func ScopeFromFiber(c fiber.Ctx) (*reqctx.CenterScope, bool) {
	s, ok := c.Locals(LocalsScope).(*reqctx.CenterScope)
	return s, ok && s != nil
}

// RepoTenancy backs Tenancy with the repository client.
type RepoTenancy struct {
	DB *repo.Client
}

func (r RepoTenancy) Center(ctx context.Context, id uuid.UUID) (*repo.Center, error) {
	return r.DB.Center.Get(ctx, id)
}

func (r RepoTenancy) MemberByUser(ctx context.Context, centerID, userID uuid.UUID) (*repo.CenterMember, error) {
	return r.DB.Member.GetByUser(ctx, centerID, userID)
}
