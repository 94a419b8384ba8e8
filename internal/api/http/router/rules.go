package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/api/http/handler"
	"github.com/Alijeyrad/medcenter_backend/pkg/authorize"
)

func (r *Router) registerRuleRoutes(
	api fiber.Router,
	rh *handler.RuleHandler,
	wh *handler.WorkflowHandler,
	authRequired fiber.Handler,
	centerHeader fiber.Handler,
	requirePerm permFunc,
) {
	br := api.Group("/business-rules", authRequired, centerHeader)
	br.Get("/", requirePerm(authorize.ResourceBusinessRule, authorize.ActionList), rh.List)
	br.Post("/", requirePerm(authorize.ResourceBusinessRule, authorize.ActionCreate), rh.Create)
	br.Post("/evaluate", requirePerm(authorize.ResourceBusinessRule, authorize.ActionExecute), rh.Evaluate)
	br.Get("/:id", requirePerm(authorize.ResourceBusinessRule, authorize.ActionRead), rh.Get)
	br.Patch("/:id", requirePerm(authorize.ResourceBusinessRule, authorize.ActionUpdate), rh.Update)
	br.Delete("/:id", requirePerm(authorize.ResourceBusinessRule, authorize.ActionDelete), rh.Delete)

	wf := api.Group("/workflows", authRequired, centerHeader)
	wf.Get("/", requirePerm(authorize.ResourceWorkflow, authorize.ActionList), wh.List)
	wf.Post("/", requirePerm(authorize.ResourceWorkflow, authorize.ActionCreate), wh.Create)
	wf.Get("/:id", requirePerm(authorize.ResourceWorkflow, authorize.ActionRead), wh.Get)
	wf.Patch("/:id", requirePerm(authorize.ResourceWorkflow, authorize.ActionUpdate), wh.Update)
	wf.Delete("/:id", requirePerm(authorize.ResourceWorkflow, authorize.ActionDelete), wh.Delete)
}
