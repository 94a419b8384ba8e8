package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/api/http/handler"
	"github.com/Alijeyrad/medcenter_backend/pkg/authorize"
)

// registerBillingRoutes wires invoices and payments. The public gateway
// callback is registered in Register.
func (r *Router) registerBillingRoutes(
	api fiber.Router,
	h *handler.BillingHandler,
	authRequired fiber.Handler,
	centerHeader fiber.Handler,
	requirePerm permFunc,
) {
	inv := api.Group("/invoices", authRequired, centerHeader)
	inv.Get("/", requirePerm(authorize.ResourceInvoice, authorize.ActionList), h.ListInvoices)
	inv.Post("/", requirePerm(authorize.ResourceInvoice, authorize.ActionCreate), h.CreateInvoice)
	inv.Get("/:id", requirePerm(authorize.ResourceInvoice, authorize.ActionRead), h.GetInvoice)
	inv.Post("/:id/issue", requirePerm(authorize.ResourceInvoice, authorize.ActionIssue), h.IssueInvoice)
	inv.Post("/:id/void", requirePerm(authorize.ResourceInvoice, authorize.ActionVoid), h.VoidInvoice)

	pay := api.Group("/payments", authRequired, centerHeader)
	pay.Get("/", requirePerm(authorize.ResourcePayment, authorize.ActionList), h.ListPayments)
	pay.Post("/", requirePerm(authorize.ResourcePayment, authorize.ActionCreate), h.RecordPayment)
	pay.Post("/online", requirePerm(authorize.ResourcePayment, authorize.ActionCreate), h.StartOnlinePayment)
	pay.Get("/:id", requirePerm(authorize.ResourcePayment, authorize.ActionRead), h.GetPayment)
}
