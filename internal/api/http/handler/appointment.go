package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/service/appointment"
	"github.com/Alijeyrad/medcenter_backend/internal/service/rules"
)

type AppointmentHandler struct {
	svc appointment.Service
}

func NewAppointmentHandler(svc appointment.Service) *AppointmentHandler {
	return &AppointmentHandler{svc: svc}
}

func mapAppointmentError(c fiber.Ctx, err error) error {
	var blocked *rules.BlockedError
	switch {
	case errors.As(err, &blocked):
		return failWith(c, fiber.StatusUnprocessableEntity, blocked.Error(), fiber.Map{"rule": blocked.Match})
	case errors.Is(err, appointment.ErrNotFound), errors.Is(err, appointment.ErrPatientNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, appointment.ErrOverlap):
		return conflict(c, err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition), errors.Is(err, appointment.ErrNotDeletable):
		return unprocessable(c, err.Error())
	case errors.Is(err, appointment.ErrInvalidTime),
		errors.Is(err, appointment.ErrDoctorNotFound),
		errors.Is(err, appointment.ErrInvalidStatus):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// GET /appointments
func (h *AppointmentHandler) List(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var q struct {
		pageQuery
		PatientID string `query:"patient_id"`
		DoctorID  string `query:"doctor_id"`
		Status    string `query:"status"`
		From      string `query:"from"`
		To        string `query:"to"`
	}
	_ = c.Bind().Query(&q)

	req := appointment.ListRequest{Request: q.request(), Status: q.Status}
	var valid bool
	if req.PatientID, valid = optionalID(q.PatientID); !valid {
		return badRequest(c, "invalid patient_id")
	}
	if req.DoctorID, valid = optionalID(q.DoctorID); !valid {
		return badRequest(c, "invalid doctor_id")
	}
	if q.From != "" {
		t, err := time.Parse(time.RFC3339, q.From)
		if err != nil {
			return badRequest(c, "from must be RFC 3339")
		}
		req.From = &t
	}
	if q.To != "" {
		t, err := time.Parse(time.RFC3339, q.To)
		if err != nil {
			return badRequest(c, "to must be RFC 3339")
		}
		req.To = &t
	}

	result, err := h.svc.List(c.Context(), scope, req)
	if err != nil {
		return mapAppointmentError(c, err)
	}
	return ok(c, result)
}

// POST /appointments
func (h *AppointmentHandler) Create(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var body appointment.CreateRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.svc.Create(c.Context(), scope, body)
	if err != nil {
		return mapAppointmentError(c, err)
	}
	return created(c, res)
}

// GET /appointments/:id
func (h *AppointmentHandler) Get(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid appointment id")
	}

	a, err := h.svc.Get(c.Context(), scope, id)
	if err != nil {
		return mapAppointmentError(c, err)
	}
	return ok(c, a)
}

// PATCH /appointments/:id
func (h *AppointmentHandler) Update(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid appointment id")
	}

	var body appointment.UpdateRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	a, err := h.svc.Update(c.Context(), scope, id, body)
	if err != nil {
		return mapAppointmentError(c, err)
	}
	return ok(c, a)
}

// PATCH /appointments/:id/status
func (h *AppointmentHandler) SetStatus(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid appointment id")
	}

	var body struct {
		Status string  `json:"status"`
		Reason *string `json:"reason"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Status == "" {
		return badRequest(c, "status is required")
	}

	a, err := h.svc.SetStatus(c.Context(), scope, id, body.Status, body.Reason)
	if err != nil {
		return mapAppointmentError(c, err)
	}
	return ok(c, a)
}

// DELETE /appointments/:id
func (h *AppointmentHandler) Delete(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid appointment id")
	}

	if err := h.svc.Delete(c.Context(), scope, id); err != nil {
		return mapAppointmentError(c, err)
	}
	return noContent(c)
}
