package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/api/http/handler"
	"github.com/Alijeyrad/medcenter_backend/pkg/authorize"
)

func (r *Router) registerAppointmentRoutes(
	api fiber.Router,
	ah *handler.AppointmentHandler,
	authRequired fiber.Handler,
	centerHeader fiber.Handler,
	requirePerm permFunc,
) {
	appts := api.Group("/appointments", authRequired, centerHeader)

	appts.Get("/", requirePerm(authorize.ResourceAppointment, authorize.ActionList), ah.List)
	appts.Post("/", requirePerm(authorize.ResourceAppointment, authorize.ActionCreate), ah.Create)

	a := appts.Group("/:id")
	a.Get("/", requirePerm(authorize.ResourceAppointment, authorize.ActionRead), ah.Get)
	a.Patch("/", requirePerm(authorize.ResourceAppointment, authorize.ActionUpdate), ah.Update)
	a.Patch("/status", requirePerm(authorize.ResourceAppointment, authorize.ActionUpdate), ah.SetStatus)
	a.Delete("/", requirePerm(authorize.ResourceAppointment, authorize.ActionDelete), ah.Delete)
}
