package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/service/billing"
	"github.com/Alijeyrad/medcenter_backend/internal/service/rules"
)

type BillingHandler struct {
	svc billing.Service
}

func NewBillingHandler(svc billing.Service) *BillingHandler {
	return &BillingHandler{svc: svc}
}

func mapBillingError(c fiber.Ctx, err error) error {
	var blocked *rules.BlockedError
	switch {
	case errors.As(err, &blocked):
		return failWith(c, fiber.StatusUnprocessableEntity, blocked.Error(), fiber.Map{"rule": blocked.Match})
	case errors.Is(err, billing.ErrInvoiceNotFound),
		errors.Is(err, billing.ErrPatientNotFound),
		errors.Is(err, billing.ErrPaymentNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, billing.ErrNotDraft),
		errors.Is(err, billing.ErrNotVoidable),
		errors.Is(err, billing.ErrNotPayable),
		errors.Is(err, billing.ErrOverpayment):
		return unprocessable(c, err.Error())
	case errors.Is(err, billing.ErrNoItems),
		errors.Is(err, billing.ErrInvalidItem),
		errors.Is(err, billing.ErrInvalidDiscount),
		errors.Is(err, billing.ErrInvalidStatus),
		errors.Is(err, billing.ErrInvalidAmount),
		errors.Is(err, billing.ErrInvalidMethod):
		return badRequest(c, err.Error())
	case errors.Is(err, billing.ErrPaymentFailed):
		return fail(c, fiber.StatusPaymentRequired, err.Error())
	case errors.Is(err, billing.ErrGatewayFailure):
		return fail(c, fiber.StatusBadGateway, err.Error())
	case errors.Is(err, billing.ErrGatewayUnavailable):
		return unavailable(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// ---------------------------------------------------------------------------
// Invoices
// ---------------------------------------------------------------------------

// GET /invoices
func (h *BillingHandler) ListInvoices(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var q struct {
		pageQuery
		PatientID   string `query:"patient_id"`
		QueueItemID string `query:"queue_item_id"`
		Status      string `query:"status"`
	}
	_ = c.Bind().Query(&q)

	req := billing.ListInvoicesRequest{Request: q.request(), Status: q.Status}
	var valid bool
	if req.PatientID, valid = optionalID(q.PatientID); !valid {
		return badRequest(c, "invalid patient_id")
	}
	if req.QueueItemID, valid = optionalID(q.QueueItemID); !valid {
		return badRequest(c, "invalid queue_item_id")
	}

	result, err := h.svc.ListInvoices(c.Context(), scope, req)
	if err != nil {
		return mapBillingError(c, err)
	}
	return ok(c, result)
}

// POST /invoices
func (h *BillingHandler) CreateInvoice(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var body billing.CreateInvoiceRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.PatientID == uuid.Nil {
		return badRequest(c, "patient_id is required")
	}

	res, err := h.svc.CreateInvoice(c.Context(), scope, body)
	if err != nil {
		return mapBillingError(c, err)
	}
	return created(c, res)
}

// GET /invoices/:id
func (h *BillingHandler) GetInvoice(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid invoice id")
	}

	inv, err := h.svc.GetInvoice(c.Context(), scope, id)
	if err != nil {
		return mapBillingError(c, err)
	}
	return ok(c, inv)
}

// POST /invoices/:id/issue
func (h *BillingHandler) IssueInvoice(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid invoice id")
	}

	res, err := h.svc.IssueInvoice(c.Context(), scope, id)
	if err != nil {
		return mapBillingError(c, err)
	}
	return ok(c, res)
}

// POST /invoices/:id/void
func (h *BillingHandler) VoidInvoice(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid invoice id")
	}

	inv, err := h.svc.VoidInvoice(c.Context(), scope, id)
	if err != nil {
		return mapBillingError(c, err)
	}
	return ok(c, inv)
}

// ---------------------------------------------------------------------------
// Payments
// ---------------------------------------------------------------------------

// GET /payments
func (h *BillingHandler) ListPayments(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var q struct {
		pageQuery
		InvoiceID string `query:"invoice_id"`
		Status    string `query:"status"`
	}
	_ = c.Bind().Query(&q)

	req := billing.ListPaymentsRequest{Request: q.request(), Status: q.Status}
	var valid bool
	if req.InvoiceID, valid = optionalID(q.InvoiceID); !valid {
		return badRequest(c, "invalid invoice_id")
	}

	result, err := h.svc.ListPayments(c.Context(), scope, req)
	if err != nil {
		return mapBillingError(c, err)
	}
	return ok(c, result)
}

// GET /payments/:id
func (h *BillingHandler) GetPayment(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid payment id")
	}

	p, err := h.svc.GetPayment(c.Context(), scope, id)
	if err != nil {
		return mapBillingError(c, err)
	}
	return ok(c, p)
}

// POST /payments
func (h *BillingHandler) RecordPayment(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var body billing.RecordPaymentRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.InvoiceID == uuid.Nil {
		return badRequest(c, "invoice_id is required")
	}

	res, err := h.svc.RecordPayment(c.Context(), scope, body)
	if err != nil {
		return mapBillingError(c, err)
	}
	return created(c, res)
}

// POST /payments/online
func (h *BillingHandler) StartOnlinePayment(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var body billing.OnlinePaymentRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.InvoiceID == uuid.Nil {
		return badRequest(c, "invoice_id is required")
	}

	res, err := h.svc.StartOnlinePayment(c.Context(), scope, body)
	if err != nil {
		return mapBillingError(c, err)
	}
	return created(c, res)
}

// GET /payments/verify?Authority=...&Status=OK|NOK
// Public ZarinPal callback.
func (h *BillingHandler) VerifyOnlinePayment(c fiber.Ctx) error {
	authority := c.Query("Authority")
	if authority == "" {
		return badRequest(c, "Authority is required")
	}

	res, err := h.svc.VerifyOnlinePayment(c.Context(), authority, c.Query("Status"))
	if err != nil {
		return mapBillingError(c, err)
	}
	return ok(c, res)
}
