package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agenciohq/agencio/app/repository"
	"github.com/agenciohq/agencio/internal/pkg/middleware"
)

// HandleListLeadsAPI returns the authenticated client's captured leads.
// Security: API key required via router middleware.
func HandleListLeadsAPI(c *fiber.Ctx) error {
	client := middleware.ClientFromContext(c)
	if client == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	offset, limit := parsePagination(c)
	leadRepo := repository.GetGlobalFactory().GetLeadRepository()
	leads, err := leadRepo.ListByClient(client.ID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "lead lookup failed"})
	}

	return c.JSON(fiber.Map{
		"leads":  leads,
		"offset": offset,
		"limit":  limit,
	})
}

// HandleGetLeadAPI returns one lead by external id, scoped to the
// authenticated client.
func HandleGetLeadAPI(c *fiber.Ctx) error {
	client := middleware.ClientFromContext(c)
	if client == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	provider := c.Params("provider")
	externalID := c.Params("external_id")
	if provider == "" || externalID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "provider or external_id missing"})
	}

	leadRepo := repository.GetGlobalFactory().GetLeadRepository()
	lead, err := leadRepo.GetByExternalID(provider, externalID)
	if err != nil || lead.BusinessClientID != client.ID {
		// Do not leak existence of other clients' leads.
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "lead not found"})
	}
	return c.JSON(lead)
}

// HandleListLeadMessagesAPI returns the message thread with one lead,
// matched by the lead's phone number.
func HandleListLeadMessagesAPI(c *fiber.Ctx) error {
	client := middleware.ClientFromContext(c)
	if client == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	provider := c.Params("provider")
	externalID := c.Params("external_id")
	if provider == "" || externalID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "provider or external_id missing"})
	}

	factory := repository.GetGlobalFactory()
	lead, err := factory.GetLeadRepository().GetByExternalID(provider, externalID)
	if err != nil || lead.BusinessClientID != client.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "lead not found"})
	}
	if lead.Phone == "" {
		return c.JSON(fiber.Map{"messages": []interface{}{}})
	}

	offset, limit := parsePagination(c)
	messages, err := factory.GetMessageRepository().ListByCounterparty(lead.Phone, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "message lookup failed"})
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"offset":   offset,
		"limit":    limit,
	})
}
