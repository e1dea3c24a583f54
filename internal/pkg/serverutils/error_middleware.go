package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"meeting-moderator-be/internal/pkg/apperrors"
)

// ErrorHandlerMiddleware maps domain errors to HTTP statuses so handlers can
// simply return them.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message))
		}

		switch {
		case errors.Is(err, apperrors.ErrSessionNotFound):
			return ctx.Status(fiber.StatusNotFound).JSON(ErrorResponse(err.Error()))
		case errors.Is(err, apperrors.ErrInvalidEvent):
			return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse(err.Error()))
		case errors.Is(err, apperrors.ErrSessionEnded):
			return ctx.Status(fiber.StatusConflict).JSON(ErrorResponse(err.Error()))
		case errors.Is(err, apperrors.ErrExternalCall):
			return ctx.Status(fiber.StatusBadGateway).JSON(ErrorResponse(err.Error()))
		default:
			return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse("internal server error"))
		}
	}
}

// WebhookTokenMiddleware guards webhook endpoints with a shared query token.
// An empty configured token disables the check (local development).
func WebhookTokenMiddleware(token string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if token != "" && ctx.Query("token") != token {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse("invalid webhook token"))
		}
		return ctx.Next()
	}
}
