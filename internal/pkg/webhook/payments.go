package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agenciohq/agencio/app/models"
)

type paymentsEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Subscription struct {
			Entity subscriptionEntity `json:"entity"`
		} `json:"subscription"`
		Invoice struct {
			Entity invoiceEntity `json:"entity"`
		} `json:"invoice"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

// Amounts arrive as integer minor currency units (main unit * 100). They are
// kept as int64 end to end; no float currency arithmetic anywhere.
type paymentEntity struct {
	ID               string `json:"id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	SubscriptionID   string `json:"subscription_id"`
	CustomerID       string `json:"customer_id"`
	ErrorDescription string `json:"error_description"`
}

type subscriptionEntity struct {
	ID             string `json:"id"`
	PlanID         string `json:"plan_id"`
	CustomerID     string `json:"customer_id"`
	PaidCount      int    `json:"paid_count"`
	RemainingCount int    `json:"remaining_count"`
	TotalCount     int    `json:"total_count"`
	CurrentStart   int64  `json:"current_start"`
	CurrentEnd     int64  `json:"current_end"`
}

type invoiceEntity struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscription_id"`
	Amount         int64  `json:"amount"`
	AmountPaid     int64  `json:"amount_paid"`
	Currency       string `json:"currency"`
}

// paymentsEventTypes maps the provider's event names onto canonical types.
// Names not present here normalize to a noop event, which keeps ingestion
// forward compatible with provider additions.
var paymentsEventTypes = map[string]EventType{
	"payment.authorized":     EventPaymentAuthorized,
	"payment.captured":       EventPaymentCaptured,
	"payment.failed":         EventPaymentFailed,
	"subscription.activated": EventSubActivated,
	"subscription.charged":   EventSubCharged,
	"subscription.cancelled": EventSubCancelled,
	"subscription.completed": EventSubCompleted,
	"invoice.paid":           EventInvoicePaid,
	"invoice.partially_paid": EventInvoicePartPaid,
	"invoice.expired":        EventInvoiceExpired,
}

// NormalizePayments maps a payments provider payload into exactly one
// canonical event. The event id is event name + ":" + entity id.
func NormalizePayments(rawBody []byte, receivedAt time.Time) ([]Event, error) {
	var envelope paymentsEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	eventName := strings.ToLower(strings.TrimSpace(envelope.Event))
	if eventName == "" {
		return nil, fmt.Errorf("%w: payments payload missing event name", ErrMalformedPayload)
	}

	eventType, known := paymentsEventTypes[eventName]
	if !known {
		return []Event{{
			Provider:   models.ProviderPayments,
			ID:         eventName + ":unknown",
			Type:       EventNoop,
			ReceivedAt: receivedAt,
			RawPayload: rawBody,
		}}, nil
	}

	evt := Event{
		Provider:   models.ProviderPayments,
		Type:       eventType,
		ReceivedAt: receivedAt,
		RawPayload: rawBody,
	}

	switch eventType {
	case EventPaymentAuthorized, EventPaymentCaptured, EventPaymentFailed:
		entity := envelope.Payload.Payment.Entity
		if strings.TrimSpace(entity.ID) == "" {
			return nil, fmt.Errorf("%w: payment entity missing id", ErrMalformedPayload)
		}
		evt.ID = eventName + ":" + entity.ID
		evt.Payment = &PaymentEvent{
			PaymentID:        strings.TrimSpace(entity.ID),
			AmountMinorUnits: entity.Amount,
			Currency:         strings.ToUpper(strings.TrimSpace(entity.Currency)),
			SubscriptionRef:  strings.TrimSpace(entity.SubscriptionID),
			CustomerRef:      strings.TrimSpace(entity.CustomerID),
			FailureReason:    strings.TrimSpace(entity.ErrorDescription),
		}
	case EventSubActivated, EventSubCharged, EventSubCancelled, EventSubCompleted:
		entity := envelope.Payload.Subscription.Entity
		if strings.TrimSpace(entity.ID) == "" {
			return nil, fmt.Errorf("%w: subscription entity missing id", ErrMalformedPayload)
		}
		evt.ID = eventName + ":" + entity.ID
		evt.Subscription = &SubscriptionEvent{
			SubscriptionID: strings.TrimSpace(entity.ID),
			PlanRef:        strings.TrimSpace(entity.PlanID),
			CustomerRef:    strings.TrimSpace(entity.CustomerID),
			PaidCount:      entity.PaidCount,
			RemainingCount: entity.RemainingCount,
			TotalCount:     entity.TotalCount,
			PeriodStart:    unixTimePtr(entity.CurrentStart),
			PeriodEnd:      unixTimePtr(entity.CurrentEnd),
		}
	case EventInvoicePaid, EventInvoicePartPaid, EventInvoiceExpired:
		entity := envelope.Payload.Invoice.Entity
		if strings.TrimSpace(entity.ID) == "" {
			return nil, fmt.Errorf("%w: invoice entity missing id", ErrMalformedPayload)
		}
		evt.ID = eventName + ":" + entity.ID
		evt.Invoice = &InvoiceEvent{
			InvoiceID:            strings.TrimSpace(entity.ID),
			SubscriptionRef:      strings.TrimSpace(entity.SubscriptionID),
			AmountMinorUnits:     entity.Amount,
			AmountPaidMinorUnits: entity.AmountPaid,
			Currency:             strings.ToUpper(strings.TrimSpace(entity.Currency)),
		}
	}

	return []Event{evt}, nil
}

func unixTimePtr(secs int64) *time.Time {
	if secs <= 0 {
		return nil
	}
	t := time.Unix(secs, 0).UTC()
	return &t
}
