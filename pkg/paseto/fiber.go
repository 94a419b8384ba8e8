package pasetotoken

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/config"
)

// TokenFromRequest returns the token carried by the named cookie or, when the
// cookie is absent, by an "Authorization: Bearer" header.
func TokenFromRequest(c fiber.Ctx, cookieName string) string {
	if v := strings.TrimSpace(c.Cookies(cookieName)); v != "" {
		return v
	}
	h := c.Get(fiber.HeaderAuthorization)
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// NewPasetoManager builds the token manager from authentication.paseto.
func NewPasetoManager(cfg *config.Config) (*Manager, error) {
	p := cfg.Authentication.Paseto
	keys, err := LoadKeys(p)
	if err != nil {
		return nil, err
	}
	return New(Config{
		Mode:       keys.Mode,
		Issuer:     p.Issuer,
		Audience:   p.Audience,
		AccessTTL:  time.Duration(p.AccessTTLMinutes) * time.Minute,
		RefreshTTL: time.Duration(p.RefreshTTLDays) * 24 * time.Hour,
	}, keys)
}
