package models

import "time"

const (
	PaymentStatusAuthorized = "authorized"
	PaymentStatusCaptured   = "captured"
	PaymentStatusFailed     = "failed"
)

// PaymentTransaction mirrors a payments-provider payment. Captured and failed
// are terminal; later events against a terminal transaction are conflicts.
type PaymentTransaction struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ProviderPaymentID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"provider_payment_id"`
	AmountMinorUnits  int64     `gorm:"not null;default:0" json:"amount_minor_units"`
	Currency          string    `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	Status            string    `gorm:"type:varchar(20);not null;index" json:"status"`
	SubscriptionRef   string    `gorm:"type:varchar(191);default:'';index" json:"subscription_ref"`
	BusinessClientID  uint      `gorm:"index" json:"business_client_id"`
	FailureReason     string    `gorm:"type:text" json:"failure_reason"`
	CreatedAt         time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Terminal reports whether the transaction can accept further transitions.
func (p *PaymentTransaction) Terminal() bool {
	return p.Status == PaymentStatusCaptured || p.Status == PaymentStatusFailed
}
