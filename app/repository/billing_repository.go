package repository

import (
	"github.com/agenciohq/agencio/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// billingRepository implements the BillingRepository interface
type billingRepository struct {
	db *gorm.DB
}

// NewBillingRepository creates a new billing repository instance
func NewBillingRepository(db *gorm.DB) BillingRepository {
	return &billingRepository{db: db}
}

// GetPayment retrieves a payment transaction by its provider id
func (r *billingRepository) GetPayment(providerPaymentID string) (*models.PaymentTransaction, error) {
	var payment models.PaymentTransaction
	err := r.db.Where("provider_payment_id = ?", providerPaymentID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpsertPayment creates or updates a payment keyed by provider payment id
func (r *billingRepository) UpsertPayment(payment *models.PaymentTransaction) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider_payment_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"amount_minor_units",
			"currency",
			"status",
			"subscription_ref",
			"business_client_id",
			"failure_reason",
			"updated_at",
		}),
	}).Create(payment).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("provider_payment_id = ?", payment.ProviderPaymentID).
		First(payment).Error
}

// GetSubscription retrieves a subscription by its provider id
func (r *billingRepository) GetSubscription(providerSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("provider_subscription_id = ?", providerSubscriptionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscription creates or updates a subscription keyed by provider id
func (r *billingRepository) UpsertSubscription(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider_subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"business_client_id",
			"plan_ref",
			"status",
			"paid_count",
			"remaining_count",
			"total_count",
			"current_period_start",
			"current_period_end",
			"last_payment_ref",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("provider_subscription_id = ?", sub.ProviderSubscriptionID).
		First(sub).Error
}

// ListSubscriptionsByClient retrieves all subscriptions for a client
func (r *billingRepository) ListSubscriptionsByClient(clientID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("business_client_id = ?", clientID).Find(&subs).Error
	return subs, err
}

// GetInvoice retrieves an invoice by its provider id
func (r *billingRepository) GetInvoice(providerInvoiceID string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.Where("provider_invoice_id = ?", providerInvoiceID).First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// UpsertInvoice creates or updates an invoice keyed by provider id
func (r *billingRepository) UpsertInvoice(invoice *models.Invoice) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider_invoice_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"subscription_ref",
			"amount_minor_units",
			"amount_paid_minor_units",
			"currency",
			"status",
			"updated_at",
		}),
	}).Create(invoice).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("provider_invoice_id = ?", invoice.ProviderInvoiceID).
		First(invoice).Error
}

// ListInvoicesBySubscription retrieves invoices for a subscription ref
func (r *billingRepository) ListInvoicesBySubscription(subscriptionRef string) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.Where("subscription_ref = ?", subscriptionRef).Order("created_at DESC").Find(&invoices).Error
	return invoices, err
}
