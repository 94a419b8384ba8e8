package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/api/http/handler"
	"github.com/Alijeyrad/medcenter_backend/pkg/authorize"
)

func (r *Router) registerVisitRoutes(
	api fiber.Router,
	h *handler.VisitHandler,
	authRequired fiber.Handler,
	centerHeader fiber.Handler,
	requirePerm permFunc,
) {
	visits := api.Group("/visits", authRequired, centerHeader)

	visits.Get("/", requirePerm(authorize.ResourceVisit, authorize.ActionList), h.List)
	visits.Post("/", requirePerm(authorize.ResourceVisit, authorize.ActionCreate), h.Open)

	v := visits.Group("/:id")
	v.Get("/", requirePerm(authorize.ResourceVisit, authorize.ActionRead), h.Get)
	v.Patch("/", requirePerm(authorize.ResourceVisit, authorize.ActionUpdate), h.Update)
	v.Post("/close", requirePerm(authorize.ResourceVisit, authorize.ActionUpdate), h.Close)
}
