package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/agenciohq/agencio/app/models"
	"github.com/agenciohq/agencio/app/repository"
	"github.com/agenciohq/agencio/internal/pkg/env"
	"github.com/agenciohq/agencio/internal/pkg/jobqueue"
	"github.com/agenciohq/agencio/internal/pkg/mail"
	"github.com/agenciohq/agencio/internal/pkg/messaging"
	metrics "github.com/agenciohq/agencio/internal/pkg/metrics/counter"
	"github.com/agenciohq/agencio/internal/pkg/webhook"
)

// webhookPipeline bundles the stages every provider delivery runs through:
// verify, normalize, dedup, reconcile, dispatch.
type webhookPipeline struct {
	guard      *webhook.Guard
	reconciler *webhook.Reconciler
	dispatcher *webhook.Dispatcher
	archive    func(provider, eventID string, rawPayload []byte, receivedAt time.Time)
}

var pipeline *webhookPipeline

// InitializeWebhookController wires the webhook pipeline over the global
// repositories and the job queue. Must run after the database and cache are
// up.
func InitializeWebhookController() {
	repos := repository.GetGlobalRepositories()
	queue := jobqueue.GetManager().GetQueue()

	dispatcher := webhook.NewDispatcher(
		messaging.NewGatewayFromEnv(),
		mail.NewNotifier(repos.Client),
		&jobqueue.IntentRetryEnqueuer{Queue: queue},
		repos,
	)
	queue.SetIntentExecutor(dispatcher)

	guard := webhook.NewGuard(repos.WebhookEvent)
	guard.Cache = cacheClaims{}

	pipeline = &webhookPipeline{
		guard:      guard,
		reconciler: webhook.NewReconciler(repos),
		dispatcher: dispatcher,
		archive: func(provider, eventID string, rawPayload []byte, receivedAt time.Time) {
			if err := queue.EnqueuePayloadArchive(provider, eventID, rawPayload, receivedAt); err != nil {
				log.Warnf("[Webhook] Payload archive enqueue failed for %s/%s: %v", provider, eventID, err)
			}
		},
	}
}

// SetWebhookPipeline replaces the pipeline, used by tests.
func SetWebhookPipeline(guard *webhook.Guard, reconciler *webhook.Reconciler, dispatcher *webhook.Dispatcher) {
	pipeline = &webhookPipeline{
		guard:      guard,
		reconciler: reconciler,
		dispatcher: dispatcher,
	}
}

// HandleLeadgenVerify answers the lead-gen provider's subscription handshake.
func HandleLeadgenVerify(c *fiber.Ctx) error {
	return handleVerify(c, env.GetEnv("LEADGEN_VERIFY_TOKEN", ""))
}

// HandleMessagingVerify answers the messaging provider's subscription
// handshake.
func HandleMessagingVerify(c *fiber.Ctx) error {
	return handleVerify(c, env.GetEnv("MESSAGING_VERIFY_TOKEN", ""))
}

func handleVerify(c *fiber.Ctx, expectedToken string) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if !webhook.VerifyHandshake(mode, token, expectedToken) {
		log.Warnf("[Webhook] Handshake rejected (mode=%s)", mode)
		return c.SendStatus(fiber.StatusForbidden)
	}
	// The challenge must be echoed back verbatim.
	return c.SendString(challenge)
}

// HandleLeadgenWebhook ingests lead-gen provider deliveries.
func HandleLeadgenWebhook(c *fiber.Ctx) error {
	return handleProviderWebhook(c, models.ProviderLeadgen,
		env.GetEnv("LEADGEN_WEBHOOK_SECRET", ""), webhook.NormalizeLeadgen)
}

// HandleMessagingWebhook ingests messaging provider deliveries.
func HandleMessagingWebhook(c *fiber.Ctx) error {
	return handleProviderWebhook(c, models.ProviderMessaging,
		env.GetEnv("MESSAGING_WEBHOOK_SECRET", ""), webhook.NormalizeMessaging)
}

// HandlePaymentsWebhook ingests payments provider deliveries.
func HandlePaymentsWebhook(c *fiber.Ctx) error {
	return handleProviderWebhook(c, models.ProviderPayments,
		env.GetEnv("PAYMENTS_WEBHOOK_SECRET", ""), webhook.NormalizePayments)
}

type normalizeFunc func(rawBody []byte, receivedAt time.Time) ([]webhook.Event, error)

func handleProviderWebhook(c *fiber.Ctx, provider, secret string, normalize normalizeFunc) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	receivedAt := time.Now().UTC()
	_ = metrics.AddReceived(provider)

	// Verification runs over the raw bytes, before any decoding.
	scheme := webhook.SchemeFor(provider)
	if webhook.Enforced(provider) {
		if !scheme.Verify(rawBody, c.Get(scheme.Header), secret) {
			_ = metrics.AddRejected(provider)
			log.Warnf("[Webhook] Invalid signature from %s (%d bytes)", provider, len(rawBody))
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "invalid_signature"})
		}
	}

	events, err := normalize(rawBody, receivedAt)
	if err != nil {
		// A verified but malformed payload is acknowledged so the provider
		// stops redelivering; the raw body is in the log for diagnosis.
		log.Errorf("[Webhook] Malformed %s payload: %v body=%s", provider, err, string(rawBody))
		_ = metrics.AddFailed(provider)
		return acknowledge(c, provider)
	}

	duplicates := 0
	for _, evt := range events {
		fresh, stored, err := pipeline.guard.CheckAndRecord(c.UserContext(), evt, true)
		if err != nil {
			log.Errorf("[Webhook] Dedup store unavailable for %s/%s: %v", provider, evt.ID, err)
			// Unrecorded events must be redelivered.
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
		}
		if !fresh {
			_ = metrics.AddDeduplicated(provider)
			duplicates++
			continue
		}

		if pipeline.archive != nil {
			pipeline.archive(provider, evt.ID, rawBody, receivedAt)
		}

		intents, err := pipeline.reconciler.Apply(evt)
		if err != nil {
			_ = metrics.AddFailed(provider)
			if errors.Is(err, webhook.ErrStoreUnavailable) {
				log.Errorf("[Webhook] Store unavailable reconciling %s/%s: %v", provider, evt.ID, err)
				// The ledger entry must not outlive a mutation that never
				// happened, or the redelivery would be dropped as a
				// duplicate.
				pipeline.guard.Release(c.UserContext(), evt, stored.ID)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reconciliation_failed"})
			}
			pipeline.guard.MarkProcessed(stored.ID, err)
			log.Errorf("[Webhook] Reconciling %s/%s failed: %v", provider, evt.ID, err)
			continue
		}
		pipeline.guard.MarkProcessed(stored.ID, nil)

		// State is committed; side effects run after and never change the
		// response.
		pipeline.dispatcher.Dispatch(context.Background(), intents)
	}

	if duplicates > 0 {
		log.Infof("[Webhook] %s delivery contained %d duplicate event(s)", provider, duplicates)
	}
	return acknowledge(c, provider)
}

// acknowledge returns each provider's expected success response.
func acknowledge(c *fiber.Ctx, provider string) error {
	if provider == models.ProviderPayments {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "success"})
	}
	return c.Status(fiber.StatusOK).SendString("EVENT_RECEIVED")
}
