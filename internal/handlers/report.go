package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/finzzzi/event-management-api/internal/middleware"
	"github.com/finzzzi/event-management-api/internal/services"
)

// ReportHandler exposes organizer statistics.
type ReportHandler struct {
	reports *services.ReportService
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// GetStatistics returns daily, monthly and yearly completed-transaction counts
// plus per-event breakdowns for the authenticated organizer.
func (h *ReportHandler) GetStatistics(c *fiber.Ctx) error {
	organizerID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	stats, err := h.reports.Statistics(organizerID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": stats})
}
