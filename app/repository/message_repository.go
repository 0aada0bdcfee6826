package repository

import (
	"time"

	"github.com/agenciohq/agencio/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// messageRepository implements the MessageRepository interface
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository instance
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// GetByProviderMessageID retrieves a message by its provider id
func (r *messageRepository) GetByProviderMessageID(providerMessageID string) (*models.Message, error) {
	var message models.Message
	err := r.db.Where("provider_message_id = ?", providerMessageID).First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// Upsert creates or updates a message keyed by provider message id
func (r *messageRepository) Upsert(message *models.Message) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider_message_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"direction",
			"counterparty_address",
			"template_name",
			"body",
			"status",
			"failure_reason",
			"updated_at",
		}),
	}).Create(message).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("provider_message_id = ?", message.ProviderMessageID).
		First(message).Error
}

// UpdateStatus writes a new status (and optional failure reason) for a message
func (r *messageRepository) UpdateStatus(id uint, status, failureReason string) error {
	updates := map[string]interface{}{
		"status": status,
	}
	if failureReason != "" {
		updates["failure_reason"] = failureReason
	}
	return r.db.Model(&models.Message{}).Where("id = ?", id).Updates(updates).Error
}

// AppendStatusHistory records a status callback for a message
func (r *messageRepository) AppendStatusHistory(messageID uint, status string, occurredAt time.Time) error {
	return r.db.Create(&models.MessageStatusHistory{
		MessageID:  messageID,
		Status:     status,
		OccurredAt: occurredAt,
	}).Error
}

// ListByCounterparty retrieves messages exchanged with an address
func (r *messageRepository) ListByCounterparty(address string, offset, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("counterparty_address = ?", address).
		Preload("StatusHistory").
		Offset(offset).Limit(limit).Order("created_at DESC").Find(&messages).Error
	return messages, err
}
