package controllers

import (
	"github.com/bountyhub-app/bountyhub/internal/pkg/analytics"
	"github.com/gofiber/fiber/v2"
)

// HandleAdminAnalytics serves the admin dashboard aggregates.
func HandleAdminAnalytics(c *fiber.Ctx) error {
	data, err := analytics.GetDashboard()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "analytics_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(data)
}
