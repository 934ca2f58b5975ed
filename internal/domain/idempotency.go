package domain

import "time"

// WebhookIdempotency remembers which interaction a webhook delivery produced,
// keyed by (company_id, idem_key). Platform retries of the same delivery are
// answered with the original interaction instead of appending a duplicate.
type WebhookIdempotency struct {
	ID            string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	CompanyID     int64     `gorm:"NOT NULL;uniqueIndex:ux_company_idem_key,priority:1"`
	IdemKey       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_company_idem_key,priority:2"`
	InteractionID string    `gorm:"type:TEXT NOT NULL"`
	CreatedAt     time.Time `gorm:"NOT NULL;autoCreateTime"`
	ExpiresAt     time.Time `gorm:"NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (WebhookIdempotency) TableName() string { return "webhook_idempotency" }
