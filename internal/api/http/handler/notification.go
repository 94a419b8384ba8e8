package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/service/notification"
)

type NotificationHandler struct {
	svc notification.Service
}

func NewNotificationHandler(svc notification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func mapNotificationError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, notification.ErrNotFound):
		return notFound(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// GET /notifications
func (h *NotificationHandler) List(c fiber.Ctx) error {
	userID, found := userIDFrom(c)
	if !found {
		return unauthorized(c)
	}

	var q struct {
		pageQuery
		UnreadOnly bool `query:"unread_only"`
	}
	_ = c.Bind().Query(&q)

	notifs, err := h.svc.List(c.Context(), userID, notification.ListRequest{
		Request:    q.request(),
		UnreadOnly: q.UnreadOnly,
	})
	if err != nil {
		return mapNotificationError(c, err)
	}

	return ok(c, notifs)
}

// PATCH /notifications/:id/read
func (h *NotificationHandler) MarkRead(c fiber.Ctx) error {
	userID, found := userIDFrom(c)
	if !found {
		return unauthorized(c)
	}

	notifID, valid := paramID(c, "id")
	if !valid {
		return badRequest(c, "invalid notification id")
	}

	if err := h.svc.MarkRead(c.Context(), userID, notifID); err != nil {
		return mapNotificationError(c, err)
	}

	return noContent(c)
}

// PATCH /notifications/read-all
func (h *NotificationHandler) MarkAllRead(c fiber.Ctx) error {
	userID, found := userIDFrom(c)
	if !found {
		return unauthorized(c)
	}

	n, err := h.svc.MarkAllRead(c.Context(), userID)
	if err != nil {
		return mapNotificationError(c, err)
	}

	return ok(c, fiber.Map{"marked": n})
}
