package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/service/rules"
)

type RuleHandler struct {
	svc rules.Service
}

func NewRuleHandler(svc rules.Service) *RuleHandler {
	return &RuleHandler{svc: svc}
}

func mapRuleError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, rules.ErrRuleNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, rules.ErrInvalidTrigger),
		errors.Is(err, rules.ErrInvalidMatch),
		errors.Is(err, rules.ErrInvalidOperator),
		errors.Is(err, rules.ErrInvalidCondition),
		errors.Is(err, rules.ErrInvalidAction),
		errors.Is(err, rules.ErrInvalidExpression),
		errors.Is(err, rules.ErrNameRequired):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// GET /business-rules
func (h *RuleHandler) List(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var q struct {
		pageQuery
		Trigger    string `query:"trigger"`
		ActiveOnly bool   `query:"active_only"`
	}
	_ = c.Bind().Query(&q)

	result, err := h.svc.List(c.Context(), scope.CenterID, rules.ListRequest{
		Request:    q.request(),
		Trigger:    q.Trigger,
		ActiveOnly: q.ActiveOnly,
	})
	if err != nil {
		return mapRuleError(c, err)
	}
	return ok(c, result)
}

// POST /business-rules
func (h *RuleHandler) Create(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var body rules.CreateRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	r, err := h.svc.Create(c.Context(), scope.CenterID, body)
	if err != nil {
		return mapRuleError(c, err)
	}
	return created(c, r)
}

// GET /business-rules/:id
func (h *RuleHandler) Get(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid rule id")
	}

	r, err := h.svc.Get(c.Context(), scope.CenterID, id)
	if err != nil {
		return mapRuleError(c, err)
	}
	return ok(c, r)
}

// PATCH /business-rules/:id
func (h *RuleHandler) Update(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid rule id")
	}

	var body rules.UpdateRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	r, err := h.svc.Update(c.Context(), scope.CenterID, id, body)
	if err != nil {
		return mapRuleError(c, err)
	}
	return ok(c, r)
}

// DELETE /business-rules/:id
func (h *RuleHandler) Delete(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid rule id")
	}

	if err := h.svc.Delete(c.Context(), scope.CenterID, id); err != nil {
		return mapRuleError(c, err)
	}
	return noContent(c)
}

// POST /business-rules/evaluate
// Dry run against a caller-supplied context; nothing is persisted.
func (h *RuleHandler) Evaluate(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var body rules.DryRunRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.svc.DryRun(c.Context(), scope.CenterID, body)
	if err != nil {
		return mapRuleError(c, err)
	}
	return ok(c, res)
}
