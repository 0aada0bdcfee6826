package repository

import (
	"time"

	"github.com/agenciohq/agencio/app/models"
)

// ClientRepository defines database operations for agency business clients.
type ClientRepository interface {
	Create(client *models.BusinessClient) error
	GetByID(id uint) (*models.BusinessClient, error)
	GetByLeadgenPageRef(pageRef string) (*models.BusinessClient, error)
	GetByBillingCustomerRef(customerRef string) (*models.BusinessClient, error)
	GetByAPIKeyHash(hash string) (*models.BusinessClient, error)
	ActivateFeatures(id uint, at time.Time) error
	Update(client *models.BusinessClient) error
	List(offset, limit int) ([]models.BusinessClient, error)
}

// LeadRepository defines database operations for captured leads.
type LeadRepository interface {
	// CreateIfNotExists inserts the lead unless (provider, external_id) is
	// already present. Returns whether a new row was created plus the stored
	// row either way.
	CreateIfNotExists(lead *models.Lead) (bool, *models.Lead, error)
	GetByExternalID(provider, externalID string) (*models.Lead, error)
	ListByClient(clientID uint, offset, limit int) ([]models.Lead, error)
	List(offset, limit int) ([]models.Lead, error)
	Count() (int64, error)
}

// MessageRepository defines database operations for provider messages.
type MessageRepository interface {
	GetByProviderMessageID(providerMessageID string) (*models.Message, error)
	Upsert(message *models.Message) error
	UpdateStatus(id uint, status, failureReason string) error
	AppendStatusHistory(messageID uint, status string, occurredAt time.Time) error
	ListByCounterparty(address string, offset, limit int) ([]models.Message, error)
}

// BillingRepository defines database operations for payment transactions,
// subscriptions and invoices.
type BillingRepository interface {
	GetPayment(providerPaymentID string) (*models.PaymentTransaction, error)
	UpsertPayment(payment *models.PaymentTransaction) error
	GetSubscription(providerSubscriptionID string) (*models.Subscription, error)
	UpsertSubscription(sub *models.Subscription) error
	ListSubscriptionsByClient(clientID uint) ([]models.Subscription, error)
	GetInvoice(providerInvoiceID string) (*models.Invoice, error)
	UpsertInvoice(invoice *models.Invoice) error
	ListInvoicesBySubscription(subscriptionRef string) ([]models.Invoice, error)
}

// WebhookEventRepository defines database operations for the webhook dedup
// ledger.
type WebhookEventRepository interface {
	// CreateIfNotExists inserts the event unless (provider, provider_event_id)
	// was already recorded. The insert is a single statement so two concurrent
	// deliveries of the same event cannot both observe "not seen".
	CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkProcessed(id uint, processingError string) error
	// Delete removes a ledger row whose event was never applied, so the
	// provider's redelivery is recorded fresh.
	Delete(id uint) error
	CountByProviderSince(provider string, since time.Time) (int64, error)
}

// TemplateRepository defines database operations for outbound message
// templates.
type TemplateRepository interface {
	GetActiveByName(name string) (*models.WhatsAppTemplate, error)
	Create(template *models.WhatsAppTemplate) error
	List(offset, limit int) ([]models.WhatsAppTemplate, error)
}

// Repositories bundles all repository instances
type Repositories struct {
	Client       ClientRepository
	Lead         LeadRepository
	Message      MessageRepository
	Billing      BillingRepository
	WebhookEvent WebhookEventRepository
	Template     TemplateRepository
}
