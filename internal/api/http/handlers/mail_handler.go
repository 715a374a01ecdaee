package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-pipeline/internal/mail"
	apperrors "github.com/spec-kit/ticket-pipeline/pkg/util/errorutil"
)

// MailHandler exposes email transport monitoring.
type MailHandler struct {
	transport mail.Transport
}

// NewMailHandler constructs handler.
func NewMailHandler(transport mail.Transport) *MailHandler {
	return &MailHandler{transport: transport}
}

// Quota GET /mail/quota.
func (h *MailHandler) Quota(c *fiber.Ctx) error {
	quota, err := h.transport.Quota(c.UserContext())
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": quota})
}

// Stats GET /mail/stats.
func (h *MailHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.transport.Stats(c.UserContext())
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if stats == nil {
		stats = []mail.StatPoint{}
	}
	return c.JSON(fiber.Map{"data": stats})
}
