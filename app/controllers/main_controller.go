package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agenciohq/agencio/internal/pkg/database"
)

// HandleHealthCheck reports service and database health.
func HandleHealthCheck(c *fiber.Ctx) error {
	db := database.GetDB()
	if db == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "database": "down"})
	}
	sqlDB, err := db.DB()
	if err != nil || sqlDB.Ping() != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "database": "down"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
