package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/agenciohq/agencio/app/models"
	"gorm.io/gorm"
)

// clientRepository implements the ClientRepository interface
type clientRepository struct {
	db *gorm.DB
}

// NewClientRepository creates a new client repository instance
func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

// Create creates a new business client in the database
func (r *clientRepository) Create(client *models.BusinessClient) error {
	return r.db.Create(client).Error
}

// GetByID retrieves a business client by its ID
func (r *clientRepository) GetByID(id uint) (*models.BusinessClient, error) {
	var client models.BusinessClient
	err := r.db.First(&client, id).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// GetByLeadgenPageRef resolves a lead-gen page reference to its client
func (r *clientRepository) GetByLeadgenPageRef(pageRef string) (*models.BusinessClient, error) {
	ref := strings.TrimSpace(pageRef)
	if ref == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var client models.BusinessClient
	err := r.db.Where("leadgen_page_ref = ?", ref).First(&client).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// GetByBillingCustomerRef resolves a payments customer reference to its client
func (r *clientRepository) GetByBillingCustomerRef(customerRef string) (*models.BusinessClient, error) {
	ref := strings.TrimSpace(customerRef)
	if ref == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var client models.BusinessClient
	err := r.db.Where("billing_customer_ref = ?", ref).First(&client).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// GetByAPIKeyHash resolves an API key hash to its business client
func (r *clientRepository) GetByAPIKeyHash(hash string) (*models.BusinessClient, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, errors.New("api key hash is required")
	}
	var client models.BusinessClient
	err := r.db.Where("api_key_hash = ?", trimmed).First(&client).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// ActivateFeatures flips the features flag for a client, recording when
func (r *clientRepository) ActivateFeatures(id uint, at time.Time) error {
	return r.db.Model(&models.BusinessClient{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"features_active":     true,
			"features_activate_at": &at,
		}).Error
}

// Update saves changes to an existing business client
func (r *clientRepository) Update(client *models.BusinessClient) error {
	return r.db.Save(client).Error
}

// List retrieves business clients with pagination
func (r *clientRepository) List(offset, limit int) ([]models.BusinessClient, error) {
	var clients []models.BusinessClient
	err := r.db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&clients).Error
	return clients, err
}
