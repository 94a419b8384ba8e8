package middleware

import (
	"context"
	"errors"
	"slices"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/pkg/authorize"
)

// Enforcer is satisfied by authorize.IAuthorization.
type Enforcer interface {
	MustEnforce(ctx context.Context, subject authorize.GroupSubject, domain authorize.Domain, object authorize.Resource, action authorize.Action) error
}

// RequirePermission checks the authenticated user's permission in the center
// domain selected by CenterHeader or CenterContext, else in the sys domain.
func RequirePermission(auth Enforcer, resource authorize.Resource, action authorize.Action) fiber.Handler {
	return func(c fiber.Ctx) error {
		ctx := c.Context()
		subject, err := authorize.SubjectFromContext(ctx)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		domain, err := authorize.DomainFromContext(ctx)
		if err != nil {
			domain = authorize.DomainSys
		}

		if err := auth.MustEnforce(ctx, subject, domain, resource, action); err != nil {
			if errors.Is(err, authorize.ErrForbidden) {
				return fiber.ErrForbidden
			}
			return err
		}

		return c.Next()
	}
}

// RequireRole admits only members holding one of roles in the current center.
// Superadmins pass.
func RequireRole(roles ...string) fiber.Handler {
	return func(c fiber.Ctx) error {
		scope, ok := ScopeFromFiber(c)
		if !ok {
			return fiber.ErrForbidden
		}
		if scope.IsSuperAdmin || slices.Contains(roles, scope.Role) {
			return c.Next()
		}
		return fiber.ErrForbidden
	}
}
