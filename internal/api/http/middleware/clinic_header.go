package middleware

import (
	"github.com/gofiber/fiber/v3"
)

const HeaderCenterID = "X-Center-ID"

// CenterHeader reads the center ID from the X-Center-ID header (used for
// center-scoped routes like /patients, /queue, /invoices). It validates the
// center is active and that the authenticated user is an active member;
// superadmins pass without membership.
func CenterHeader(t Tenancy, admins SuperAdmins) fiber.Handler {
	return func(c fiber.Ctx) error {
		idStr := c.Get(HeaderCenterID)
		if idStr == "" {
			return fiber.NewError(fiber.StatusBadRequest, "X-Center-ID header is required")
		}
		return resolveCenter(c, t, admins, idStr)
	}
}
