package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/service/workflow"
)

type WorkflowHandler struct {
	svc workflow.Service
}

func NewWorkflowHandler(svc workflow.Service) *WorkflowHandler {
	return &WorkflowHandler{svc: svc}
}

func mapWorkflowError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, workflow.ErrNameRequired),
		errors.Is(err, workflow.ErrTriggerRequired),
		errors.Is(err, workflow.ErrInvalidSteps),
		errors.Is(err, workflow.ErrDuplicateStep),
		errors.Is(err, workflow.ErrInvalidRole):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// GET /workflows
func (h *WorkflowHandler) List(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var q struct {
		pageQuery
		Trigger string `query:"trigger"`
	}
	_ = c.Bind().Query(&q)

	result, err := h.svc.List(c.Context(), scope.CenterID, workflow.ListRequest{Request: q.request(), Trigger: q.Trigger})
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return ok(c, result)
}

// POST /workflows
func (h *WorkflowHandler) Create(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var body workflow.CreateRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	w, err := h.svc.Create(c.Context(), scope.CenterID, body)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return created(c, w)
}

// GET /workflows/:id
func (h *WorkflowHandler) Get(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid workflow id")
	}

	w, err := h.svc.Get(c.Context(), scope.CenterID, id)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return ok(c, w)
}

// PATCH /workflows/:id
func (h *WorkflowHandler) Update(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid workflow id")
	}

	var body workflow.UpdateRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	w, err := h.svc.Update(c.Context(), scope.CenterID, id, body)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return ok(c, w)
}

// DELETE /workflows/:id
func (h *WorkflowHandler) Delete(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid workflow id")
	}

	if err := h.svc.Delete(c.Context(), scope.CenterID, id); err != nil {
		return mapWorkflowError(c, err)
	}
	return noContent(c)
}
