package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/medcenter_backend/internal/service/handoff"
	"github.com/Alijeyrad/medcenter_backend/internal/service/queue"
	"github.com/Alijeyrad/medcenter_backend/internal/service/rules"
	"github.com/Alijeyrad/medcenter_backend/internal/service/verification"
)

type QueueHandler struct {
	svc      queue.Service
	handoff  handoff.Service
	verifier verification.Service
}

func NewQueueHandler(svc queue.Service, ho handoff.Service, verifier verification.Service) *QueueHandler {
	return &QueueHandler{svc: svc, handoff: ho, verifier: verifier}
}

func mapQueueError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, queue.ErrNotFound),
		errors.Is(err, queue.ErrPatientNotFound),
		errors.Is(err, queue.ErrAppointmentNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, queue.ErrInvalidTransition),
		errors.Is(err, queue.ErrPatientArchived),
		errors.Is(err, queue.ErrAppointmentClosed):
		return unprocessable(c, err.Error())
	case errors.Is(err, queue.ErrAppointmentMismatch),
		errors.Is(err, queue.ErrDoctorNotFound),
		errors.Is(err, queue.ErrInvalidStatus):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

func mapHandoffError(c fiber.Ctx, err error) error {
	var (
		blocked *rules.BlockedError
		failed  *handoff.VerificationError
	)
	switch {
	case errors.As(err, &blocked):
		return failWith(c, fiber.StatusUnprocessableEntity, blocked.Error(), fiber.Map{"rule": blocked.Match})
	case errors.As(err, &failed):
		return failWith(c, fiber.StatusUnprocessableEntity, handoff.ErrVerificationFailed.Error(),
			fiber.Map{"verification": failed.Result})
	case errors.Is(err, handoff.ErrInvalidTransition):
		return conflict(c, err.Error())
	case errors.Is(err, handoff.ErrDoctorNotFound):
		return badRequest(c, err.Error())
	case errors.Is(err, verification.ErrQueueItemNotFound), errors.Is(err, verification.ErrPatientNotFound):
		return notFound(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// GET /queue
func (h *QueueHandler) List(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var q struct {
		pageQuery
		Date     string `query:"date"`
		Status   string `query:"status"`
		DoctorID string `query:"doctor_id"`
	}
	_ = c.Bind().Query(&q)

	req := queue.ListRequest{Request: q.request()}
	if q.Date != "" {
		d, err := time.Parse(time.DateOnly, q.Date)
		if err != nil {
			return badRequest(c, "date must be YYYY-MM-DD")
		}
		req.Date = &d
	}
	if q.Status != "" {
		for _, s := range strings.Split(q.Status, ",") {
			if s = strings.TrimSpace(s); s != "" {
				req.Status = append(req.Status, s)
			}
		}
	}
	var valid bool
	if req.DoctorID, valid = optionalID(q.DoctorID); !valid {
		return badRequest(c, "invalid doctor_id")
	}

	result, err := h.svc.List(c.Context(), scope, req)
	if err != nil {
		return mapQueueError(c, err)
	}
	return ok(c, result)
}

// GET /queue/worklist
func (h *QueueHandler) Worklist(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	items, err := h.svc.Worklist(c.Context(), scope)
	if err != nil {
		return mapQueueError(c, err)
	}
	return ok(c, items)
}

// POST /queue
func (h *QueueHandler) CheckIn(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}

	var body queue.CheckInRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.PatientID == uuid.Nil {
		return badRequest(c, "patient_id is required")
	}

	item, err := h.svc.CheckIn(c.Context(), scope, body)
	if err != nil {
		return mapQueueError(c, err)
	}
	return created(c, item)
}

// GET /queue/:id
func (h *QueueHandler) Get(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid queue item id")
	}

	item, err := h.svc.Get(c.Context(), scope, id)
	if err != nil {
		return mapQueueError(c, err)
	}
	return ok(c, item)
}

// POST /queue/:id/cancel
func (h *QueueHandler) Cancel(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid queue item id")
	}

	item, err := h.svc.Cancel(c.Context(), scope, id)
	if err != nil {
		return mapQueueError(c, err)
	}
	return ok(c, item)
}

// GET /queue/:id/payment-verification
func (h *QueueHandler) PaymentVerification(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid queue item id")
	}

	res, err := h.verifier.ForQueueItem(c.Context(), scope, id)
	if err != nil {
		return mapHandoffError(c, err)
	}
	return ok(c, res)
}

// POST /queue/:id/confirm-to-doctor
func (h *QueueHandler) ConfirmToDoctor(c fiber.Ctx) error {
	scope, found := scopeFrom(c)
	if !found {
		return badRequest(c, "missing center context")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid queue item id")
	}

	var body struct {
		DoctorID uuid.UUID `json:"doctor_id"`
		Note     *string   `json:"note"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.DoctorID == uuid.Nil {
		return badRequest(c, "doctor_id is required")
	}

	out, err := h.handoff.ConfirmToDoctor(c.Context(), handoff.ConfirmRequest{
		CenterID:    scope.CenterID,
		QueueItemID: id,
		DoctorID:    body.DoctorID,
		ActorID:     scope.Actor(),
		ActorRole:   scope.Role,
		Note:        body.Note,
	})
	if err != nil {
		return mapHandoffError(c, err)
	}
	return ok(c, out)
}
