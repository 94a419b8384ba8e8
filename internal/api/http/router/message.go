package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/api/http/handler"
	"github.com/Alijeyrad/medcenter_backend/pkg/authorize"
)

func (r *Router) registerMessageRoutes(
	api fiber.Router,
	h *handler.MessageHandler,
	authRequired fiber.Handler,
	centerHeader fiber.Handler,
	requirePerm permFunc,
) {
	m := api.Group("/messages", authRequired, centerHeader)
	m.Get("/", requirePerm(authorize.ResourceMessage, authorize.ActionList), h.List)
	m.Post("/", requirePerm(authorize.ResourceMessage, authorize.ActionExecute), h.Send)
	m.Get("/:id", requirePerm(authorize.ResourceMessage, authorize.ActionRead), h.Get)
}

func (r *Router) registerWebhookRoutes(api fiber.Router, h *handler.WebhookHandler) {
	wh := api.Group("/webhooks")
	wh.Get("/whatsapp", h.VerifyWhatsApp)
	wh.Post("/whatsapp", h.WhatsApp)
	wh.Post("/slack", h.Slack)
}

func (r *Router) registerDashboardRoutes(
	api fiber.Router,
	h *handler.DashboardHandler,
	authRequired fiber.Handler,
	centerHeader fiber.Handler,
	requirePerm permFunc,
) {
	api.Get("/dashboard", authRequired, centerHeader, requirePerm(authorize.ResourceDashboard, authorize.ActionRead), h.Summary)
}
