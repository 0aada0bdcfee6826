package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/agenciohq/agencio/app/models"
	"github.com/agenciohq/agencio/app/repository"
	"github.com/gofiber/fiber/v2/log"
)

// ClaimCache is the optional fast path in front of the database ledger. A
// Redis SETNX implementation lets hot duplicate deliveries short-circuit
// without a database roundtrip. Delete releases a claim so a redelivery of
// an event that never finished processing is treated as fresh.
type ClaimCache interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Guard suppresses duplicate processing of provider event ids. The database
// unique index is the source of truth: CheckAndRecord performs one
// conditional insert, so two concurrent deliveries of the same event can
// never both observe "not seen".
type Guard struct {
	Events repository.WebhookEventRepository
	Cache  ClaimCache
	TTL    time.Duration
}

// NewGuard creates an idempotency guard over the webhook event ledger.
func NewGuard(events repository.WebhookEventRepository) *Guard {
	return &Guard{
		Events: events,
		TTL:    24 * time.Hour,
	}
}

// CheckAndRecord records the event and reports whether it is fresh. A
// previously seen (provider, event id) pair returns fresh=false with the
// originally stored row. If the ledger insert fails after the cache claim
// was taken, the claim is released again so the provider's redelivery is
// not short-circuited by a claim with no backing row.
func (g *Guard) CheckAndRecord(ctx context.Context, evt Event, signatureValid bool) (bool, *models.WebhookEvent, error) {
	claimed := false
	if g.Cache != nil {
		var err error
		claimed, err = g.Cache.SetNX(ctx, claimKey(evt), 1, g.ttl())
		if err != nil {
			// Cache trouble never blocks ingestion; the database index
			// still dedupes.
			log.Warnf("[Webhook] idempotency cache unavailable: %v", err)
			claimed = false
		} else if !claimed {
			stored := &models.WebhookEvent{
				Provider:        evt.Provider,
				ProviderEventID: evt.ID,
				EventType:       string(evt.Type),
			}
			return false, stored, nil
		}
	}

	record := &models.WebhookEvent{
		Provider:        evt.Provider,
		ProviderEventID: evt.ID,
		EventType:       string(evt.Type),
		PayloadJSON:     string(evt.RawPayload),
		SignatureValid:  signatureValid,
	}
	created, stored, err := g.Events.CreateIfNotExists(record)
	if err != nil {
		if claimed {
			g.releaseClaim(ctx, evt)
		}
		return false, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return created, stored, nil
}

// Release undoes CheckAndRecord for an event whose state mutation never
// happened: the ledger row and the cache claim are removed so the
// provider's redelivery runs through reconciliation again.
func (g *Guard) Release(ctx context.Context, evt Event, eventRecordID uint) {
	if eventRecordID != 0 {
		if err := g.Events.Delete(eventRecordID); err != nil {
			log.Errorf("[Webhook] failed to release ledger row %d for %s/%s: %v", eventRecordID, evt.Provider, evt.ID, err)
		}
	}
	g.releaseClaim(ctx, evt)
}

// MarkProcessed records the reconciliation outcome on the stored event.
func (g *Guard) MarkProcessed(eventRecordID uint, processingErr error) {
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	if err := g.Events.MarkProcessed(eventRecordID, errMsg); err != nil {
		log.Errorf("[Webhook] failed to mark event %d processed: %v", eventRecordID, err)
	}
}

func (g *Guard) releaseClaim(ctx context.Context, evt Event) {
	if g.Cache == nil {
		return
	}
	if err := g.Cache.Delete(ctx, claimKey(evt)); err != nil {
		log.Warnf("[Webhook] failed to release idempotency claim for %s/%s: %v", evt.Provider, evt.ID, err)
	}
}

func (g *Guard) ttl() time.Duration {
	if g.TTL > 0 {
		return g.TTL
	}
	return 24 * time.Hour
}

func claimKey(evt Event) string {
	return "webhook:seen:" + evt.Provider + ":" + evt.ID
}
