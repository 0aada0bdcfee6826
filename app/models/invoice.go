package models

import "time"

const (
	InvoiceStatusPending       = "pending"
	InvoiceStatusPartiallyPaid = "partially_paid"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusExpired       = "expired"
)

// Invoice mirrors a payments-provider invoice. Partially-paid may recur with
// an updated paid amount; paid and expired are terminal.
type Invoice struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	ProviderInvoiceID    string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"provider_invoice_id"`
	SubscriptionRef      string    `gorm:"type:varchar(191);default:'';index" json:"subscription_ref"`
	AmountMinorUnits     int64     `gorm:"not null;default:0" json:"amount_minor_units"`
	AmountPaidMinorUnits int64     `gorm:"not null;default:0" json:"amount_paid_minor_units"`
	Currency             string    `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	Status               string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Terminal reports whether the invoice can accept further transitions.
func (i *Invoice) Terminal() bool {
	return i.Status == InvoiceStatusPaid || i.Status == InvoiceStatusExpired
}
