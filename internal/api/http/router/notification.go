package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/api/http/handler"
)

func (r *Router) registerNotificationRoutes(api fiber.Router, h *handler.NotificationHandler, authRequired fiber.Handler) {
	n := api.Group("/notifications", authRequired)
	n.Get("/", h.List)
	n.Patch("/read-all", h.MarkAllRead)
	n.Patch("/:id/read", h.MarkRead)
}
