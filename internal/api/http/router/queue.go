package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/api/http/handler"
	"github.com/Alijeyrad/medcenter_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/pkg/authorize"
)

func (r *Router) registerQueueRoutes(
	api fiber.Router,
	h *handler.QueueHandler,
	authRequired fiber.Handler,
	centerHeader fiber.Handler,
	requirePerm permFunc,
) {
	q := api.Group("/queue", authRequired, centerHeader)

	q.Get("/", requirePerm(authorize.ResourceQueue, authorize.ActionList), h.List)
	q.Post("/", requirePerm(authorize.ResourceQueue, authorize.ActionCreate), h.CheckIn)
	q.Get("/worklist", middleware.RequireRole(repo.RoleDoctor), requirePerm(authorize.ResourceQueue, authorize.ActionList), h.Worklist)

	item := q.Group("/:id")
	item.Get("/", requirePerm(authorize.ResourceQueue, authorize.ActionRead), h.Get)
	item.Post("/cancel", requirePerm(authorize.ResourceQueue, authorize.ActionUpdate), h.Cancel)
	item.Get("/payment-verification", requirePerm(authorize.ResourceQueue, authorize.ActionRead), h.PaymentVerification)
	item.Post("/confirm-to-doctor", requirePerm(authorize.ResourceQueue, authorize.ActionConfirm), h.ConfirmToDoctor)
}
