package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/rescueroute/rescueroute-backend/internal/apperrors"
)

// fail maps a lifecycle error to its HTTP status and surfaces the error kind
// alongside the human-readable reason
func fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	kind := "INTERNAL"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, kind = fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, apperrors.ErrForbidden):
		status, kind = fiber.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, apperrors.ErrInvalidState):
		status, kind = fiber.StatusConflict, "INVALID_STATE"
	case errors.Is(err, apperrors.ErrValidation):
		status, kind = fiber.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, apperrors.ErrCodeMismatch):
		status, kind = fiber.StatusBadRequest, "CODE_MISMATCH"
	}

	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		msg = "Internal server error"
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"kind":  kind,
	})
}
