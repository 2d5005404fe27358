package serverutils

import (
	"errors"

	"casebook/internal/backend"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps a service error onto an HTTP status.
func StatusFor(err error) int {
	var fe *fiber.Error
	var ve *ValidationError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &ve):
		return fiber.StatusUnprocessableEntity
	case backend.IsNotFound(err):
		return fiber.StatusNotFound
	case backend.IsAuth(err):
		return fiber.StatusUnauthorized
	}

	switch backend.KindOf(err) {
	case backend.KindFetch, backend.KindWrite:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// ErrorHandlerMiddleware turns errors returned by API handlers into the JSON envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := StatusFor(err)
		message := err.Error()
		switch code {
		case fiber.StatusInternalServerError:
			message = "Internal server error"
		case fiber.StatusBadGateway:
			message = "Backend unavailable"
		case fiber.StatusNotFound:
			message = "Not found"
		}

		res := ErrorResponse(code, message)
		var ve *ValidationError
		if errors.As(err, &ve) {
			res.Data = ve.Fields
		}
		return ctx.Status(code).JSON(res)
	}
}
