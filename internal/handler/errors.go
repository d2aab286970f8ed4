package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/portfolio-assistant/internal/port"
)

// statusFor maps the error taxonomy to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, port.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, port.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, port.ErrAuthInvalid), errors.Is(err, port.ErrTokenInvalid), errors.Is(err, port.ErrTokenExpired):
		return fiber.StatusUnauthorized
	case errors.Is(err, port.ErrAuthDisabled):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError renders err as {"error": message} with the mapped status.
func writeError(c fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
