package middleware

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	pasetotoken "github.com/Alijeyrad/medcenter_backend/pkg/paseto"
	"github.com/Alijeyrad/medcenter_backend/pkg/reqctx"
)

// LocalsClaims holds the verified *pasetotoken.Claims.
const LocalsClaims = "claims"

// Sessions resolves a live session to its user id.
type Sessions interface {
	Lookup(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error)
}

// AuthRequired validates the PASETO access token from the session cookie or a
// Bearer header and checks the session in Redis. On success it stores the
// claims in Locals and in the request context.
func AuthRequired(mgr *pasetotoken.Manager, sessions Sessions, cookieName string) fiber.Handler {
	return func(c fiber.Ctx) error {
		token := pasetotoken.TokenFromRequest(c, cookieName)
		if token == "" {
			return fiber.ErrUnauthorized
		}

		claims, err := mgr.VerifyAccess(token)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		userID, err := sessions.Lookup(c.Context(), *claims.SessionID)
		if err != nil || userID != claims.UserID {
			return fiber.ErrUnauthorized
		}

		c.Locals(LocalsClaims, claims)
		c.SetContext(reqctx.WithClaims(c.Context(), claims))
		return c.Next()
	}
}

// ClaimsFromFiber returns the claims stored by AuthRequired.
func ClaimsFromFiber(c fiber.Ctx) (*pasetotoken.Claims, bool) {
	claims, ok := c.Locals(LocalsClaims).(*pasetotoken.Claims)
	return claims, ok && claims != nil
}
