package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/stupid-simple/pkgledger/errkind"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusOf maps an error kind onto an HTTP status.
func StatusOf(kind errkind.Kind) int {
	switch kind {
	case errkind.Validation, errkind.LimitExceeded:
		return fiber.StatusBadRequest
	case errkind.NotFound:
		return fiber.StatusNotFound
	case errkind.Conflict:
		return fiber.StatusConflict
	case errkind.FeedUnavailable, errkind.FeedMalformed:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return c.Status(ferr.Code).JSON(errorBody{
			Error:   "HTTP_" + statusName(ferr.Code),
			Message: ferr.Message,
		})
	}

	kind := errkind.KindOf(err)
	status := StatusOf(kind)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		// Storage details stay in the logs.
		msg = "internal error"
	}
	return c.Status(status).JSON(errorBody{Error: string(kind), Message: msg})
}

func statusName(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestEntityTooLarge:
		return "TOO_LARGE"
	default:
		return "ERROR"
	}
}

func validation(format string, args ...any) error {
	return errkind.New(errkind.Validation, "request", format, args...)
}
