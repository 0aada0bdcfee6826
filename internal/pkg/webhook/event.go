package webhook

import "time"

// EventType identifies the canonical meaning of an inbound provider event.
type EventType string

const (
	EventLeadCreated       EventType = "lead_created"
	EventMessageReceived   EventType = "message_received"
	EventMessageStatus     EventType = "message_status"
	EventPaymentAuthorized EventType = "payment_authorized"
	EventPaymentCaptured   EventType = "payment_captured"
	EventPaymentFailed     EventType = "payment_failed"
	EventSubActivated      EventType = "subscription_activated"
	EventSubCharged        EventType = "subscription_charged"
	EventSubCancelled      EventType = "subscription_cancelled"
	EventSubCompleted      EventType = "subscription_completed"
	EventInvoicePaid       EventType = "invoice_paid"
	EventInvoicePartPaid   EventType = "invoice_partially_paid"
	EventInvoiceExpired    EventType = "invoice_expired"
	// EventNoop marks a provider event we do not recognize. The reconciler
	// discards it without error so new provider event names never break
	// ingestion.
	EventNoop EventType = "noop"
)

// Event is the canonical, provider-agnostic representation of one inbound
// webhook occurrence. Exactly one variant pointer is set, matching Type; the
// reconciler never re-parses raw JSON.
type Event struct {
	Provider   string
	ID         string
	Type       EventType
	ReceivedAt time.Time
	RawPayload []byte

	Lead         *LeadCreated
	Message      *MessageReceived
	Status       *MessageStatus
	Payment      *PaymentEvent
	Subscription *SubscriptionEvent
	Invoice      *InvoiceEvent
}

// LeadCreated carries a lead-gen form submission. Contact fields may be
// partial; attribution fields are optional.
type LeadCreated struct {
	LeadgenID   string
	PageRef     string
	FormID      string
	AdID        string
	CampaignID  string
	FullName    string
	Email       string
	Phone       string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	CreatedTime time.Time
}

// MessageReceived carries an inbound user message.
type MessageReceived struct {
	MessageID string
	From      string
	Body      string
	Timestamp time.Time
}

// MessageStatus carries a delivery/read receipt for a message.
type MessageStatus struct {
	MessageID     string
	Status        string
	RecipientID   string
	Timestamp     time.Time
	FailureReason string
}

// PaymentEvent carries a payment lifecycle change. Amounts are integer minor
// currency units; no float arithmetic happens anywhere downstream.
type PaymentEvent struct {
	PaymentID        string
	AmountMinorUnits int64
	Currency         string
	SubscriptionRef  string
	CustomerRef      string
	FailureReason    string
}

// SubscriptionEvent carries a subscription lifecycle change. Cycle counters
// are the provider's view and win over local increments when present.
type SubscriptionEvent struct {
	SubscriptionID string
	PlanRef        string
	CustomerRef    string
	PaidCount      int
	RemainingCount int
	TotalCount     int
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
}

// InvoiceEvent carries an invoice lifecycle change.
type InvoiceEvent struct {
	InvoiceID            string
	SubscriptionRef      string
	AmountMinorUnits     int64
	AmountPaidMinorUnits int64
	Currency             string
}
