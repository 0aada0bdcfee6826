package repository

import (
	"github.com/agenciohq/agencio/app/models"
	"gorm.io/gorm"
)

// templateRepository implements the TemplateRepository interface
type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository creates a new template repository instance
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

// GetActiveByName retrieves an active template by name
func (r *templateRepository) GetActiveByName(name string) (*models.WhatsAppTemplate, error) {
	var template models.WhatsAppTemplate
	err := r.db.Where("name = ? AND is_active = ?", name, true).First(&template).Error
	if err != nil {
		return nil, err
	}
	return &template, nil
}

// Create creates a new template in the database
func (r *templateRepository) Create(template *models.WhatsAppTemplate) error {
	return r.db.Create(template).Error
}

// List retrieves templates with pagination
func (r *templateRepository) List(offset, limit int) ([]models.WhatsAppTemplate, error) {
	var templates []models.WhatsAppTemplate
	err := r.db.Offset(offset).Limit(limit).Order("name ASC").Find(&templates).Error
	return templates, err
}
