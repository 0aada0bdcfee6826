package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// WhatsAppTemplate is an approved outbound message template. The dispatcher
// only sends templates that exist here and are active.
type WhatsAppTemplate struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(191);not null;index:ux_whatsapp_templates_name_lang,unique,priority:1" json:"name" validate:"required,min=1,max=191"`
	Language   string    `gorm:"type:varchar(8);not null;default:'en';index:ux_whatsapp_templates_name_lang,unique,priority:2" json:"language"`
	Category   string    `gorm:"type:varchar(50);default:'utility'" json:"category"`
	BodyParams int       `gorm:"not null;default:0" json:"body_params" validate:"min=0,max=10"`
	IsActive   bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *WhatsAppTemplate) Validate() error {
	v := validator.New()

	return v.Struct(t)
}
