package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/devansh728/BYVS/internal/logger"
)

// SMSStatusHandler receives Twilio delivery callbacks.
type SMSStatusHandler struct {
	log *slog.Logger
}

func NewSMSStatusHandler(log *slog.Logger) *SMSStatusHandler {
	return &SMSStatusHandler{log: log.With(logger.Module("handlers.sms_status"))}
}

func (h *SMSStatusHandler) Handle(c *fiber.Ctx) error {
	status := c.FormValue("MessageStatus")
	attrs := []any{
		slog.String("sid", c.FormValue("MessageSid")),
		slog.String("status", status),
		logger.Secret("to", c.FormValue("To")),
	}

	switch status {
	case "failed", "undelivered":
		attrs = append(attrs, slog.String("error_code", c.FormValue("ErrorCode")))
		h.log.Warn("sms not delivered", attrs...)
	default:
		h.log.Debug("sms status", attrs...)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
