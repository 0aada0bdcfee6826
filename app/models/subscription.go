package models

import "time"

const (
	SubscriptionStatusPending   = "pending"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusCompleted = "completed"
)

// Subscription mirrors a payments-provider subscription. Charged is a
// re-entrant transition: the subscription stays active while the cycle
// counters and period advance.
type Subscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"provider_subscription_id"`
	BusinessClientID       uint       `gorm:"index" json:"business_client_id"`
	PlanRef                string     `gorm:"type:varchar(191);default:''" json:"plan_ref"`
	Status                 string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaidCount              int        `gorm:"not null;default:0" json:"paid_count"`
	RemainingCount         int        `gorm:"not null;default:0" json:"remaining_count"`
	TotalCount             int        `gorm:"not null;default:0" json:"total_count"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	LastPaymentRef         string     `gorm:"type:varchar(191);default:''" json:"last_payment_ref"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Terminal reports whether the subscription can accept further transitions.
func (s *Subscription) Terminal() bool {
	return s.Status == SubscriptionStatusCancelled || s.Status == SubscriptionStatusCompleted
}
