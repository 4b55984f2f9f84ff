package middleware

import (
	"errors"

	"github.com/contactrelay/mailgateway/internal/constants"
	"github.com/contactrelay/mailgateway/internal/service"
	"github.com/gofiber/fiber/v2"
)

func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if errors.Is(err, service.ErrMessageNotFound) {
			return respond(c, constants.ErrCodeMessageNotFound)
		}

		var serviceErr service.Error
		if errors.As(err, &serviceErr) {
			return handleServiceError(c, serviceErr)
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"code":    constants.ErrCodeInternalError,
				"message": fiberErr.Message,
			})
		}

		return respond(c, constants.ErrCodeInternalError)
	}
}

func handleServiceError(c *fiber.Ctx, err service.Error) error {
	errorCode := err.Code

	status := constants.GetHTTPStatus(errorCode)
	if status == 500 && err.Code != constants.ErrCodeInternalError {
		errorCode = constants.ErrCodeInternalError
	}

	return c.Status(status).JSON(fiber.Map{
		"code":    errorCode,
		"message": constants.GetErrorMessage(errorCode),
	})
}

func respond(c *fiber.Ctx, code string) error {
	return c.Status(constants.GetHTTPStatus(code)).JSON(fiber.Map{
		"code":    code,
		"message": constants.GetErrorMessage(code),
	})
}
