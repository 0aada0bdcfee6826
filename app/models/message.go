package models

import "time"

const (
	MessageDirectionInbound  = "inbound"
	MessageDirectionOutbound = "outbound"
)

const (
	MessageStatusQueued    = "queued"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

// Message mirrors a messaging-provider message. Status only moves forward in
// the delivery ordering; out-of-order callbacks land in the history table
// without regressing the current status.
type Message struct {
	ID                  uint                   `gorm:"primaryKey" json:"id"`
	ProviderMessageID   string                 `gorm:"type:varchar(191);not null;uniqueIndex" json:"provider_message_id"`
	Direction           string                 `gorm:"type:varchar(10);not null" json:"direction"`
	CounterpartyAddress string                 `gorm:"type:varchar(64);index" json:"counterparty_address"`
	TemplateName        string                 `gorm:"type:varchar(191);default:''" json:"template_name"`
	Body                string                 `gorm:"type:text" json:"body"`
	Status              string                 `gorm:"type:varchar(20);not null;default:'queued';index" json:"status"`
	FailureReason       string                 `gorm:"type:text" json:"failure_reason"`
	StatusHistory       []MessageStatusHistory `gorm:"foreignKey:MessageID" json:"status_history,omitempty"`
	CreatedAt           time.Time              `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt           time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

// MessageStatusHistory records every status callback we saw for a message,
// including duplicates and out-of-order arrivals.
type MessageStatusHistory struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MessageID  uint      `gorm:"not null;index" json:"message_id"`
	Status     string    `gorm:"type:varchar(20);not null" json:"status"`
	OccurredAt time.Time `gorm:"type:timestamp;not null" json:"occurred_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// MessageStatusRank orders delivery statuses. Unknown statuses rank lowest so
// they can never advance a message.
func MessageStatusRank(status string) int {
	switch status {
	case MessageStatusQueued:
		return 1
	case MessageStatusSent:
		return 2
	case MessageStatusDelivered:
		return 3
	case MessageStatusRead:
		return 4
	default:
		return 0
	}
}
