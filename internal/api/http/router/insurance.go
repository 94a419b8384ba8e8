package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/api/http/handler"
	"github.com/Alijeyrad/medcenter_backend/pkg/authorize"
)

func (r *Router) registerInsuranceRoutes(
	api fiber.Router,
	h *handler.InsuranceHandler,
	authRequired fiber.Handler,
	centerHeader fiber.Handler,
	requirePerm permFunc,
) {
	reqs := api.Group("/insurance-requests", authRequired, centerHeader)
	reqs.Get("/", requirePerm(authorize.ResourceInsurance, authorize.ActionList), h.List)
	reqs.Post("/", requirePerm(authorize.ResourceInsurance, authorize.ActionCreate), h.Create)

	one := reqs.Group("/:id")
	one.Get("/", requirePerm(authorize.ResourceInsurance, authorize.ActionRead), h.Get)
	one.Patch("/", requirePerm(authorize.ResourceInsurance, authorize.ActionUpdate), h.Update)
	one.Post("/review", requirePerm(authorize.ResourceInsurance, authorize.ActionReview), h.Review)
	one.Post("/documents", requirePerm(authorize.ResourceInsurance, authorize.ActionUpdate), h.UploadDocument)

	docs := api.Group("/insurance-documents", authRequired, centerHeader)
	docs.Get("/:id", requirePerm(authorize.ResourceInsurance, authorize.ActionRead), h.DownloadDocument)
	docs.Delete("/:id", requirePerm(authorize.ResourceInsurance, authorize.ActionUpdate), h.DeleteDocument)
}
