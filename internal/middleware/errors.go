package middleware

import (
	"errors"
	"log/slog"

	"minimarket/internal/apperrors"

	"github.com/gofiber/fiber/v2"
)

// generic client messages for kinds whose detail stays server-side
var genericMessages = map[apperrors.Kind]string{
	apperrors.KindInternal:            "internal server error",
	apperrors.KindUploadFailed:        "image upload failed",
	apperrors.KindDatabaseUnavailable: "service temporarily unavailable",
}

// ErrorHandler renders every error as {ok:false, msg}. Server-side faults are
// logged in full; their detail reaches the client only when diagnostic is set.
func ErrorHandler(log *slog.Logger, diagnostic bool) fiber.ErrorHandler {
	if log == nil {
		log = slog.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return fromFiberError(c, fiberErr)
		}

		var appErr *apperrors.Error
		if !errors.As(err, &appErr) {
			appErr = apperrors.Internal("unexpected error", err)
		}
		status := apperrors.HTTPStatus(appErr.Kind)
		body := fiber.Map{"ok": false, "msg": appErr.Message}

		if apperrors.ServerSide(appErr.Kind) {
			log.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"kind", appErr.Kind.String(),
				"error", err.Error(),
			)
			body["msg"] = genericMessages[appErr.Kind]
			if diagnostic {
				body["error"] = err.Error()
			}
		} else {
			log.Debug("request rejected", "path", c.Path(), "status", status, "kind", appErr.Kind.String(), "error", err.Error())
		}
		if len(appErr.Fields) > 0 {
			body["errors"] = appErr.Fields
		}
		return c.Status(status).JSON(body)
	}
}

func fromFiberError(c *fiber.Ctx, e *fiber.Error) error {
	msg := e.Message
	if e.Code == fiber.StatusRequestEntityTooLarge {
		msg = "request body too large"
	}
	return c.Status(e.Code).JSON(fiber.Map{"ok": false, "msg": msg})
}
