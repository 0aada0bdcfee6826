package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	CLIENT_STATUS_ACTIVE   = "active"
	CLIENT_STATUS_PAUSED   = "paused"
	CLIENT_STATUS_DISABLED = "disabled"
)

const apiKeyPrefix = "agc_"

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// BusinessClient is an agency customer. Webhook reconciliation resolves
// provider references (ad page, billing customer) to one of these rows.
type BusinessClient struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Name               string     `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	ContactEmail       string     `gorm:"type:varchar(200);index" json:"contact_email" validate:"omitempty,email,max=200"`
	ContactPhone       string     `gorm:"type:varchar(32)" json:"contact_phone" validate:"max=32"`
	LeadgenPageRef     string     `gorm:"type:varchar(191);index" json:"leadgen_page_ref"`
	BillingCustomerRef string     `gorm:"type:varchar(191);index" json:"billing_customer_ref"`
	Plan               string     `gorm:"type:varchar(50);not null;default:'starter'" json:"plan"`
	FeaturesActive     bool       `gorm:"default:false;index" json:"features_active"`
	FeaturesActivateAt *time.Time `gorm:"type:timestamp;default:null" json:"features_activated_at,omitempty"`
	WelcomeTemplate    string     `gorm:"type:varchar(191);default:''" json:"welcome_template"`
	APIKeyHash         string     `gorm:"type:varchar(64);index" json:"-"`
	APIKeyPrefix       string     `gorm:"type:varchar(16)" json:"-"`
	Status             string     `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active paused disabled"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *BusinessClient) Validate() error {
	v := validator.New()

	return v.Struct(c)
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

// GenerateAPIKey creates a fresh API key and stores prefix + hash on the
// client. The raw key is returned once and never persisted.
func (c *BusinessClient) GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	encoded := strings.ToLower(apiKeyEncoding.EncodeToString(b))
	rawKey := apiKeyPrefix + encoded
	if len(rawKey) < 12 {
		return "", fmt.Errorf("api key generation failed: key too short")
	}
	c.APIKeyPrefix = rawKey[:min(len(rawKey), 16)]
	c.APIKeyHash = HashAPIKey(rawKey)
	return rawKey, nil
}
