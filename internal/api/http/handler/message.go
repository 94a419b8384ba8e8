package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/service/messaging"
)

type MessageHandler struct {
	svc messaging.Service
}

func NewMessageHandler(svc messaging.Service) *MessageHandler {
	return &MessageHandler{svc: svc}
}

func mapMessageError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, messaging.ErrNotFound), errors.Is(err, messaging.ErrPatientNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, messaging.ErrInvalidChannel),
		errors.Is(err, messaging.ErrBodyRequired),
		errors.Is(err, messaging.ErrBodyTooLong),
		errors.Is(err, messaging.ErrRecipientRequired),
		errors.Is(err, messaging.ErrInvalidRecipient):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// GET /messages
func (h *MessageHandler) List(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var q struct {
		pageQuery
		PatientID string `query:"patient_id"`
		Channel   string `query:"channel"`
	}
	_ = c.Bind().Query(&q)

	req := messaging.ListRequest{Request: q.request(), Channel: q.Channel}
	var valid bool
	if req.PatientID, valid = optionalID(q.PatientID); !valid {
		return badRequest(c, "invalid patient_id")
	}

	result, err := h.svc.List(c.Context(), scope, req)
	if err != nil {
		return mapMessageError(c, err)
	}
	return ok(c, result)
}

// GET /messages/:id
func (h *MessageHandler) Get(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid message id")
	}

	m, err := h.svc.Get(c.Context(), scope, id)
	if err != nil {
		return mapMessageError(c, err)
	}
	return ok(c, m)
}

// POST /messages
// Queues an outbound message for the relay.
func (h *MessageHandler) Send(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var body messaging.SendRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	m, err := h.svc.Send(c.Context(), scope, body)
	if err != nil {
		return mapMessageError(c, err)
	}
	return accepted(c, m)
}
