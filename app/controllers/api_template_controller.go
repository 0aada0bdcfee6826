package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agenciohq/agencio/app/models"
	"github.com/agenciohq/agencio/app/repository"
	"github.com/agenciohq/agencio/internal/pkg/middleware"
)

// HandleListTemplatesAPI returns the approved outbound message templates.
func HandleListTemplatesAPI(c *fiber.Ctx) error {
	client := middleware.ClientFromContext(c)
	if client == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	offset, limit := parsePagination(c)
	templateRepo := repository.GetGlobalFactory().GetTemplateRepository()
	templates, err := templateRepo.List(offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "template lookup failed"})
	}
	return c.JSON(fiber.Map{"templates": templates})
}

// HandleCreateTemplateAPI registers a new outbound message template.
func HandleCreateTemplateAPI(c *fiber.Ctx) error {
	client := middleware.ClientFromContext(c)
	if client == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var template models.WhatsAppTemplate
	if err := c.BodyParser(&template); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid template payload"})
	}
	if err := template.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	templateRepo := repository.GetGlobalFactory().GetTemplateRepository()
	if err := templateRepo.Create(&template); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "template create failed"})
	}
	return c.Status(fiber.StatusCreated).JSON(template)
}
