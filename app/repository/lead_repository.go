package repository

import (
	"github.com/agenciohq/agencio/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// leadRepository implements the LeadRepository interface
type leadRepository struct {
	db *gorm.DB
}

// NewLeadRepository creates a new lead repository instance
func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &leadRepository{db: db}
}

// CreateIfNotExists inserts a lead guarded by the (provider, external_id)
// unique index. A conflicting insert is a no-op and the stored row is
// returned with created=false.
func (r *leadRepository) CreateIfNotExists(lead *models.Lead) (bool, *models.Lead, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "external_id"},
		},
		DoNothing: true,
	}).Create(lead)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.Lead
	if err := r.db.Where("provider = ? AND external_id = ?", lead.Provider, lead.ExternalID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// GetByExternalID retrieves a lead by its provider identifier
func (r *leadRepository) GetByExternalID(provider, externalID string) (*models.Lead, error) {
	var lead models.Lead
	err := r.db.Where("provider = ? AND external_id = ?", provider, externalID).First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// ListByClient retrieves leads attributed to a client with pagination
func (r *leadRepository) ListByClient(clientID uint, offset, limit int) ([]models.Lead, error) {
	var leads []models.Lead
	err := r.db.Where("business_client_id = ?", clientID).
		Offset(offset).Limit(limit).Order("created_at DESC").Find(&leads).Error
	return leads, err
}

// List retrieves leads with pagination
func (r *leadRepository) List(offset, limit int) ([]models.Lead, error) {
	var leads []models.Lead
	err := r.db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&leads).Error
	return leads, err
}

// Count returns the total number of leads
func (r *leadRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Lead{}).Count(&count).Error
	return count, err
}
