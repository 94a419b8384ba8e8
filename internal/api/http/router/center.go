package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/api/http/handler"
	"github.com/Alijeyrad/medcenter_backend/pkg/authorize"
)

func (r *Router) registerCenterRoutes(
	api fiber.Router,
	h *handler.CenterHandler,
	authRequired fiber.Handler,
	centerCtx fiber.Handler,
	requirePerm permFunc,
) {
	centers := api.Group("/centers", authRequired)

	centers.Get("/", h.List)
	// No center in Locals, so this checks the sys domain: superadmins only.
	centers.Post("/", requirePerm(authorize.ResourceCenter, authorize.ActionCreate), h.Create)

	mgmt := centers.Group("/:id", centerCtx)
	mgmt.Get("/", requirePerm(authorize.ResourceCenter, authorize.ActionRead), h.Get)
	mgmt.Patch("/", requirePerm(authorize.ResourceCenter, authorize.ActionUpdate), h.Update)
	mgmt.Delete("/", requirePerm(authorize.ResourceCenter, authorize.ActionDelete), h.Delete)

	mgmt.Get("/members", requirePerm(authorize.ResourceCenterMember, authorize.ActionList), h.ListMembers)
	mgmt.Post("/members", requirePerm(authorize.ResourceCenterMember, authorize.ActionCreate), h.AddMember)
	mgmt.Get("/members/:memberId", requirePerm(authorize.ResourceCenterMember, authorize.ActionRead), h.GetMember)
	mgmt.Patch("/members/:memberId", requirePerm(authorize.ResourceCenterMember, authorize.ActionUpdate), h.UpdateMember)
	mgmt.Delete("/members/:memberId", requirePerm(authorize.ResourceCenterMember, authorize.ActionDelete), h.DeactivateMember)
}
