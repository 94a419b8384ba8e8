package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/service/webhook"
)

type WebhookHandler struct {
	svc webhook.Service
}

func NewWebhookHandler(svc webhook.Service) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

func mapWebhookError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, webhook.ErrInvalidSignature), errors.Is(err, webhook.ErrStaleTimestamp):
		return fail(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, webhook.ErrVerifyFailed):
		return forbidden(c)
	case errors.Is(err, webhook.ErrInvalidPayload):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// GET /webhooks/whatsapp
// Subscription handshake; echoes hub.challenge as plain text.
func (h *WebhookHandler) VerifyWhatsApp(c fiber.Ctx) error {
	challenge, err := h.svc.VerifyWhatsApp(c.Query("hub.mode"), c.Query("hub.verify_token"), c.Query("hub.challenge"))
	if err != nil {
		return mapWebhookError(c, err)
	}
	return c.SendString(challenge)
}

// POST /webhooks/whatsapp
func (h *WebhookHandler) WhatsApp(c fiber.Ctx) error {
	sum, err := h.svc.HandleWhatsApp(c.Context(), c.Body(), c.Get("X-Hub-Signature-256"))
	if err != nil {
		return mapWebhookError(c, err)
	}
	return ok(c, sum)
}

// POST /webhooks/slack
func (h *WebhookHandler) Slack(c fiber.Ctx) error {
	res, err := h.svc.HandleSlack(c.Context(), c.Body(),
		c.Get("X-Slack-Request-Timestamp"), c.Get("X-Slack-Signature"))
	if err != nil {
		return mapWebhookError(c, err)
	}
	// Slack expects the bare challenge object.
	if res.Challenge != "" {
		return c.JSON(fiber.Map{"challenge": res.Challenge})
	}
	return ok(c, res)
}
