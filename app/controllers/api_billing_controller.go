package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/agenciohq/agencio/app/models"
	"github.com/agenciohq/agencio/app/repository"
	"github.com/agenciohq/agencio/internal/pkg/middleware"
	metrics "github.com/agenciohq/agencio/internal/pkg/metrics/counter"
)

// HandleListSubscriptionsAPI returns the authenticated client's
// subscriptions.
func HandleListSubscriptionsAPI(c *fiber.Ctx) error {
	client := middleware.ClientFromContext(c)
	if client == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	billingRepo := repository.GetGlobalFactory().GetBillingRepository()
	subs, err := billingRepo.ListSubscriptionsByClient(client.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "subscription lookup failed"})
	}
	return c.JSON(fiber.Map{"subscriptions": subs})
}

// HandleListInvoicesAPI returns the invoices of one of the client's
// subscriptions.
func HandleListInvoicesAPI(c *fiber.Ctx) error {
	client := middleware.ClientFromContext(c)
	if client == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	subscriptionRef := c.Params("subscription_ref")
	if subscriptionRef == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "subscription_ref missing"})
	}

	billingRepo := repository.GetGlobalFactory().GetBillingRepository()
	sub, err := billingRepo.GetSubscription(subscriptionRef)
	if err != nil || sub.BusinessClientID != client.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "subscription not found"})
	}

	invoices, err := billingRepo.ListInvoicesBySubscription(subscriptionRef)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "invoice lookup failed"})
	}
	return c.JSON(fiber.Map{"invoices": invoices})
}

// HandleWebhookStatsAPI returns ingestion counters and 24h event volume per
// provider.
func HandleWebhookStatsAPI(c *fiber.Ctx) error {
	client := middleware.ClientFromContext(c)
	if client == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	eventRepo := repository.GetGlobalFactory().GetWebhookEventRepository()
	since := time.Now().UTC().Add(-24 * time.Hour)

	stats := fiber.Map{}
	for _, provider := range []string{models.ProviderLeadgen, models.ProviderMessaging, models.ProviderPayments} {
		counts, err := metrics.Snapshot(c.Context(), provider)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "counter lookup failed"})
		}
		recent, err := eventRepo.CountByProviderSince(provider, since)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "event count failed"})
		}
		stats[provider] = fiber.Map{
			"counters":   counts,
			"events_24h": recent,
		}
	}
	return c.JSON(stats)
}
