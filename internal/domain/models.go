// Package domain defines the persistence models for consent records,
// interaction history and the compliance audit trail. These types are mapped
// with GORM and form the core data layer of the compliance engine.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Consent capture methods.
const (
	ConsentMethodWebForm         = "web_form"
	ConsentMethodWhatsAppMessage = "whatsapp_message"
	ConsentMethodManual          = "manual"
	ConsentMethodTestFlow        = "test_flow"
)

// ValidConsentMethod reports whether m is a known consent capture method.
func ValidConsentMethod(m string) bool {
	switch m {
	case ConsentMethodWebForm, ConsentMethodWhatsAppMessage, ConsentMethodManual, ConsentMethodTestFlow:
		return true
	}
	return false
}

// Interaction types. The first four are the user-facing message lifecycle;
// failed, blocked and reported are delivery outcomes that feed the quality score.
const (
	InteractionMessageReceived = "message_received"
	InteractionMessageSent     = "message_sent"
	InteractionDelivered       = "delivered"
	InteractionRead            = "read"
	InteractionFailed          = "failed"
	InteractionBlocked         = "blocked"
	InteractionReported        = "reported"
)

// ValidInteractionType reports whether t is a known interaction type.
func ValidInteractionType(t string) bool {
	switch t {
	case InteractionMessageReceived, InteractionMessageSent, InteractionDelivered, InteractionRead,
		InteractionFailed, InteractionBlocked, InteractionReported:
		return true
	}
	return false
}

// Compliance event types.
const (
	EventConsentRecorded = "consent_recorded"
	EventConsentRevoked  = "consent_revoked"
	EventContentRejected = "content_rejected"
	EventWindowViolation = "window_violation"
	EventLimitExceeded   = "limit_exceeded"
	EventConsentMissing  = "consent_missing"
	EventSendPermitted   = "send_permitted"
	EventCheckFailed     = "check_failed"
)

// ValidEventType reports whether t is a known compliance event type.
func ValidEventType(t string) bool {
	switch t {
	case EventConsentRecorded, EventConsentRevoked, EventContentRejected, EventWindowViolation,
		EventLimitExceeded, EventConsentMissing, EventSendPermitted, EventCheckFailed:
		return true
	}
	return false
}

// RevocationSuperseded marks a consent closed because a newer opt-in replaced it.
const RevocationSuperseded = "superseded"

// ConsentRecord is one opt-in of a phone number for a company. A record is
// active while RevokedAt is nil and GrantedAt lies within the policy validity
// horizon. Records are never hard-deleted.
type ConsentRecord struct {
	ID               string            `json:"id"                          gorm:"type:char(36);primaryKey"`
	CompanyID        int64             `json:"company_id"                  gorm:"not null;index:idx_consent_pair,priority:1"`
	PhoneNumber      string            `json:"phone_number"                gorm:"type:varchar(32);not null;index:idx_consent_pair,priority:2"`
	Method           string            `json:"method"                      gorm:"type:varchar(32);not null"`
	GrantedAt        time.Time         `json:"granted_at"                  gorm:"not null;index"`
	RevokedAt        *time.Time        `json:"revoked_at,omitempty"        gorm:"index:idx_consent_pair,priority:3"`
	RevocationReason string            `json:"revocation_reason,omitempty" gorm:"type:varchar(255)"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// TableName returns the database table name for ConsentRecord.
func (ConsentRecord) TableName() string { return "consent_records" }

// InteractionRecord is an append-only inbound or outbound event for a
// (company, phone) pair. The newest message_received row drives the
// customer-service window.
type InteractionRecord struct {
	ID              string            `json:"id"               gorm:"type:char(36);primaryKey"`
	CompanyID       int64             `json:"company_id"       gorm:"not null;index:idx_interaction_pair,priority:1;index:idx_interaction_company,priority:1"`
	PhoneNumber     string            `json:"phone_number"     gorm:"type:varchar(32);not null;index:idx_interaction_pair,priority:2"`
	InteractionType string            `json:"interaction_type" gorm:"type:varchar(32);not null;index:idx_interaction_pair,priority:3;index:idx_interaction_company,priority:2"`
	OccurredAt      time.Time         `json:"occurred_at"      gorm:"not null;index:idx_interaction_pair,priority:4;index:idx_interaction_company,priority:3"`
	Metadata        datatypes.JSONMap `json:"metadata,omitempty"`
}

// TableName returns the database table name for InteractionRecord.
func (InteractionRecord) TableName() string { return "interaction_logs" }

// ComplianceEvent is an immutable audit entry for a company.
type ComplianceEvent struct {
	ID        string            `json:"id"         gorm:"type:char(36);primaryKey"`
	CompanyID int64             `json:"company_id" gorm:"not null;index:idx_events_company,priority:1"`
	EventType string            `json:"event_type" gorm:"type:varchar(32);not null;index"`
	Details   datatypes.JSONMap `json:"details,omitempty"`
	CreatedAt time.Time         `json:"created_at" gorm:"not null;index:idx_events_company,priority:2"`
}

// TableName returns the database table name for ComplianceEvent.
func (ComplianceEvent) TableName() string { return "compliance_events" }

// QualityScoreSnapshot is a derived, non-persisted view of a company's
// sending reputation over a trailing window.
type QualityScoreSnapshot struct {
	CompanyID    int64     `json:"company_id"`
	CurrentScore float64   `json:"current_score"`
	Sent         int64     `json:"sent"`
	Delivered    int64     `json:"delivered"`
	Read         int64     `json:"read"`
	Failed       int64     `json:"failed"`
	Blocked      int64     `json:"blocked"`
	Reported     int64     `json:"reported"`
	Received     int64     `json:"received"`
	ColdStart    bool      `json:"cold_start"`
	WindowStart  time.Time `json:"window_start"`
	ComputedAt   time.Time `json:"computed_at"`
}
