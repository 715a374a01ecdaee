package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-pipeline/internal/service"
)

const defaultAnalyticsDays = 30

// AnalyticsHandler serves dashboard aggregates.
type AnalyticsHandler struct {
	service *service.AnalyticsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: analytics}
}

// Get GET /analytics?days=N.
func (h *AnalyticsHandler) Get(c *fiber.Ctx) error {
	result, err := h.service.Analytics(c.UserContext(), parseInt(c.Query("days"), defaultAnalyticsDays))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
