package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/service/visit"
)

type VisitHandler struct {
	svc visit.Service
}

func NewVisitHandler(svc visit.Service) *VisitHandler {
	return &VisitHandler{svc: svc}
}

func mapVisitError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, visit.ErrNotFound), errors.Is(err, visit.ErrQueueItemNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, visit.ErrNotAssigned):
		return forbidden(c)
	case errors.Is(err, visit.ErrNotConfirmed), errors.Is(err, visit.ErrVisitClosed):
		return unprocessable(c, err.Error())
	case errors.Is(err, visit.ErrDiagnosisRequired), errors.Is(err, visit.ErrInvalidStatus):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// GET /visits
func (h *VisitHandler) List(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var q struct {
		pageQuery
		PatientID string `query:"patient_id"`
		DoctorID  string `query:"doctor_id"`
		Status    string `query:"status"`
	}
	_ = c.Bind().Query(&q)

	req := visit.ListRequest{Request: q.request(), Status: q.Status}
	var valid bool
	if req.PatientID, valid = optionalID(q.PatientID); !valid {
		return badRequest(c, "invalid patient_id")
	}
	if req.DoctorID, valid = optionalID(q.DoctorID); !valid {
		return badRequest(c, "invalid doctor_id")
	}

	result, err := h.svc.List(c.Context(), scope, req)
	if err != nil {
		return mapVisitError(c, err)
	}
	return ok(c, result)
}

// POST /visits
func (h *VisitHandler) Open(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var body visit.OpenRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	v, err := h.svc.Open(c.Context(), scope, body)
	if err != nil {
		return mapVisitError(c, err)
	}
	return created(c, v)
}

// GET /visits/:id
func (h *VisitHandler) Get(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid visit id")
	}

	v, err := h.svc.Get(c.Context(), scope, id)
	if err != nil {
		return mapVisitError(c, err)
	}
	return ok(c, v)
}

// PATCH /visits/:id
func (h *VisitHandler) Update(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid visit id")
	}

	var body visit.UpdateRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	v, err := h.svc.Update(c.Context(), scope, id, body)
	if err != nil {
		return mapVisitError(c, err)
	}
	return ok(c, v)
}

// POST /visits/:id/close
func (h *VisitHandler) Close(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid visit id")
	}

	var body visit.CloseRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	v, err := h.svc.Close(c.Context(), scope, id, body)
	if err != nil {
		return mapVisitError(c, err)
	}
	return ok(c, v)
}
