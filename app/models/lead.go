package models

import "time"

// Lead is a captured lead-form submission. Creation is insert-only, keyed by
// (provider, external_id); reconciliation never updates or deletes a lead.
type Lead struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UUID             string    `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	Provider         string    `gorm:"type:varchar(20);not null;index:ux_leads_provider_external,unique,priority:1" json:"provider"`
	ExternalID       string    `gorm:"type:varchar(191);not null;index:ux_leads_provider_external,unique,priority:2" json:"external_id"`
	BusinessClientID uint      `gorm:"index" json:"business_client_id"`
	FullName         string    `gorm:"type:varchar(200)" json:"full_name"`
	Email            string    `gorm:"type:varchar(200);index" json:"email"`
	Phone            string    `gorm:"type:varchar(32);index" json:"phone"`
	AdID             string    `gorm:"type:varchar(191)" json:"ad_id"`
	CampaignID       string    `gorm:"type:varchar(191);index" json:"campaign_id"`
	FormID           string    `gorm:"type:varchar(191)" json:"form_id"`
	PageRef          string    `gorm:"type:varchar(191);index" json:"page_ref"`
	UTMSource        string    `gorm:"type:varchar(100)" json:"utm_source"`
	UTMMedium        string    `gorm:"type:varchar(100)" json:"utm_medium"`
	UTMCampaign      string    `gorm:"type:varchar(100)" json:"utm_campaign"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Contactable reports whether the lead carries an address the messaging
// gateway can deliver to.
func (l *Lead) Contactable() bool {
	return l.Phone != ""
}
