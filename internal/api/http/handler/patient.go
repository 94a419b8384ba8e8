package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/service/patient"
)

type PatientHandler struct {
	svc patient.Service
}

func NewPatientHandler(svc patient.Service) *PatientHandler {
	return &PatientHandler{svc: svc}
}

func mapPatientError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, patient.ErrPatientNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, patient.ErrNationalIDExists):
		return conflict(c, err.Error())
	case errors.Is(err, patient.ErrNameRequired),
		errors.Is(err, patient.ErrInvalidPhone),
		errors.Is(err, patient.ErrInvalidNationalID),
		errors.Is(err, patient.ErrInvalidGender),
		errors.Is(err, patient.ErrInvalidStatus):
		return badRequest(c, err.Error())
	case errors.Is(err, patient.ErrAccessDenied):
		return forbidden(c)
	default:
		return internalError(c, err)
	}
}

// GET /patients
func (h *PatientHandler) List(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var q struct {
		pageQuery
		Search string `query:"search"`
		Status string `query:"status"`
	}
	_ = c.Bind().Query(&q)

	result, err := h.svc.List(c.Context(), scope, patient.ListPatientsRequest{
		Request: q.request(),
		Search:  q.Search,
		Status:  q.Status,
	})
	if err != nil {
		return mapPatientError(c, err)
	}
	return ok(c, result)
}

// POST /patients
func (h *PatientHandler) Create(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var body patient.CreatePatientRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	rec, err := h.svc.Create(c.Context(), scope, body)
	if err != nil {
		return mapPatientError(c, err)
	}
	return created(c, rec)
}

// GET /patients/:id
func (h *PatientHandler) Get(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid patient id")
	}

	rec, err := h.svc.Get(c.Context(), scope, id)
	if err != nil {
		return mapPatientError(c, err)
	}
	return ok(c, rec)
}

// PATCH /patients/:id
func (h *PatientHandler) Update(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid patient id")
	}

	var body patient.UpdatePatientRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	rec, err := h.svc.Update(c.Context(), scope, id, body)
	if err != nil {
		return mapPatientError(c, err)
	}
	return ok(c, rec)
}

// DELETE /patients/:id
func (h *PatientHandler) Delete(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid patient id")
	}

	if err := h.svc.Delete(c.Context(), scope, id); err != nil {
		return mapPatientError(c, err)
	}
	return noContent(c)
}
