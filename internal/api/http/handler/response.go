package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medcenter_backend/internal/api/http/middleware"
)

func ok(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func created(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": data})
}

func accepted(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true, "data": data})
}

func noContent(c fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func fail(c fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": msg})
}

func badRequest(c fiber.Ctx, msg string) error {
	return fail(c, fiber.StatusBadRequest, msg)
}

func unauthorized(c fiber.Ctx) error {
	return fail(c, fiber.StatusUnauthorized, "unauthorized")
}

func forbidden(c fiber.Ctx) error {
	return fail(c, fiber.StatusForbidden, "forbidden")
}

func notFound(c fiber.Ctx, msg string) error {
	return fail(c, fiber.StatusNotFound, msg)
}

func conflict(c fiber.Ctx, msg string) error {
	return fail(c, fiber.StatusConflict, msg)
}

func unprocessable(c fiber.Ctx, msg string) error {
	return fail(c, fiber.StatusUnprocessableEntity, msg)
}

func tooManyRequests(c fiber.Ctx, msg string) error {
	return fail(c, fiber.StatusTooManyRequests, msg)
}

func unavailable(c fiber.Ctx, msg string) error {
	return fail(c, fiber.StatusServiceUnavailable, msg)
}

// internalError logs err with the request id and hides it from the client.
func internalError(c fiber.Ctx, err error) error {
	rid, _ := middleware.RequestIDFromFiber(c)
	slog.ErrorContext(c.Context(), "request failed",
		slog.String("request_id", rid),
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.Any("error", err),
	)
	return fail(c, fiber.StatusInternalServerError, "internal server error")
}

// ErrorHandler renders errors that escape handlers (middleware rejections,
// unknown routes) in the response envelope.
func ErrorHandler(c fiber.Ctx, err error) error {
	if fe, isFiber := err.(*fiber.Error); isFiber {
		return fail(c, fe.Code, fe.Message)
	}
	return internalError(c, err)
}

// failWith renders an error envelope with extra detail fields.
func failWith(c fiber.Ctx, status int, msg string, extra fiber.Map) error {
	body := fiber.Map{"success": false, "error": msg}
	for k, v := range extra {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}
