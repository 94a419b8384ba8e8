package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/config"
	"github.com/Alijeyrad/medcenter_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/medcenter_backend/internal/service/auth"
)

const (
	SessionCookie = "mc_session"
	RefreshCookie = "mc_refresh"
)

type AuthHandler struct {
	svc          auth.Service
	cookieDomain string
	cookiePath   string
	secure       bool
	refreshTTL   time.Duration
}

func NewAuthHandler(svc auth.Service, cfg *config.Config) *AuthHandler {
	path := cfg.Server.Cookie.Path
	if path == "" {
		path = "/"
	}
	return &AuthHandler{
		svc:          svc,
		cookieDomain: cfg.Server.Cookie.Domain,
		cookiePath:   path,
		secure:       cfg.IsProduction(),
		refreshTTL:   time.Duration(cfg.Authentication.Paseto.RefreshTTLDays) * 24 * time.Hour,
	}
}

func mapAuthError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrSessionNotFound):
		return fail(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrAccountSuspended):
		return fail(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrAccountLocked):
		return tooManyRequests(c, err.Error())
	case errors.Is(err, auth.ErrPasswordTooShort), errors.Is(err, auth.ErrWrongPassword):
		return badRequest(c, err.Error())
	case errors.Is(err, auth.ErrUserNotFound):
		return notFound(c, err.Error())
	default:
		return internalError(c, err)
	}
}

func (h *AuthHandler) setCookies(c fiber.Ctx, tokens *auth.AuthTokens) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    tokens.AccessToken,
		Path:     h.cookiePath,
		Domain:   h.cookieDomain,
		MaxAge:   int(tokens.ExpiresIn),
		Secure:   h.secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookie,
		Value:    tokens.RefreshToken,
		Path:     h.cookiePath,
		Domain:   h.cookieDomain,
		MaxAge:   int(h.refreshTTL.Seconds()),
		Secure:   h.secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookies(c fiber.Ctx) {
	for _, name := range []string{SessionCookie, RefreshCookie} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Path:     h.cookiePath,
			Domain:   h.cookieDomain,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			Secure:   h.secure,
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
}

func tokenResponse(tokens *auth.AuthTokens) fiber.Map {
	return fiber.Map{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_in":    tokens.ExpiresIn,
	}
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var body struct {
		Login    string `json:"login"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	login := body.Login
	if login == "" {
		login = body.Email
	}
	if login == "" {
		login = body.Phone
	}
	if login == "" || body.Password == "" {
		return badRequest(c, "login and password are required")
	}

	tokens, err := h.svc.Login(c.Context(), auth.LoginRequest{Login: login, Password: body.Password})
	if err != nil {
		return mapAuthError(c, err)
	}

	h.setCookies(c, tokens)
	return ok(c, tokenResponse(tokens))
}

// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.Bind().JSON(&body)
	if body.RefreshToken == "" {
		body.RefreshToken = c.Cookies(RefreshCookie)
	}
	if body.RefreshToken == "" {
		return badRequest(c, "refresh_token is required")
	}

	tokens, err := h.svc.RefreshTokens(c.Context(), body.RefreshToken)
	if err != nil {
		return mapAuthError(c, err)
	}

	h.setCookies(c, tokens)
	return ok(c, tokenResponse(tokens))
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	claims, found := middleware.ClaimsFromFiber(c)
	if !found || claims.SessionID == nil {
		return unauthorized(c)
	}

	if err := h.svc.Logout(c.Context(), *claims.SessionID); err != nil && !errors.Is(err, auth.ErrSessionNotFound) {
		return mapAuthError(c, err)
	}

	h.clearCookies(c)
	return noContent(c)
}

// GET /api/v1/auth/me
func (h *AuthHandler) Me(c fiber.Ctx) error {
	userID, found := userIDFrom(c)
	if !found {
		return unauthorized(c)
	}

	profile, err := h.svc.Me(c.Context(), userID)
	if err != nil {
		return mapAuthError(c, err)
	}
	return ok(c, profile)
}

// POST /api/v1/auth/change-password
func (h *AuthHandler) ChangePassword(c fiber.Ctx) error {
	userID, found := userIDFrom(c)
	if !found {
		return unauthorized(c)
	}

	var body struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := h.svc.ChangePassword(c.Context(), userID, auth.ChangePasswordRequest{
		Current: body.CurrentPassword,
		New:     body.NewPassword,
	}); err != nil {
		return mapAuthError(c, err)
	}
	return noContent(c)
}
