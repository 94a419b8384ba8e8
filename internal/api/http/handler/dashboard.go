package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/service/dashboard"
)

type DashboardHandler struct {
	svc dashboard.Service
}

func NewDashboardHandler(svc dashboard.Service) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// GET /dashboard
func (h *DashboardHandler) Summary(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	sum, err := h.svc.Summary(c.Context(), scope)
	if err != nil {
		if errors.Is(err, dashboard.ErrUnknownRole) {
			return forbidden(c)
		}
		return internalError(c, err)
	}
	return ok(c, sum)
}
