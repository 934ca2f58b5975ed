// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the compliance
// audit trail. Events are insert-only.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/wa-compliance/internal/domain"
)

// CreateEvent inserts ev, assigning an ID and timestamp when unset.
func CreateEvent(ctx context.Context, db *gorm.DB, ev *domain.ComplianceEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(ev).Error
}

func eventsQuery(ctx context.Context, db *gorm.DB, companyID int64, eventType string) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.ComplianceEvent{}).Where("company_id = ?", companyID)
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	return q
}

// ListEventsPage returns a page of events, newest first. An empty eventType
// matches every type.
func ListEventsPage(ctx context.Context, db *gorm.DB, companyID int64, eventType string, offset, limit int) ([]domain.ComplianceEvent, error) {
	var out []domain.ComplianceEvent
	err := eventsQuery(ctx, db, companyID, eventType).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountEvents counts the company's events, optionally restricted to one type.
func CountEvents(ctx context.Context, db *gorm.DB, companyID int64, eventType string) (int64, error) {
	var n int64
	err := eventsQuery(ctx, db, companyID, eventType).Count(&n).Error
	return n, err
}

// CountEventsByTypeSince groups the company's events created after since by type.
func CountEventsByTypeSince(ctx context.Context, db *gorm.DB, companyID int64, since time.Time) (map[string]int64, error) {
	var rows []struct {
		EventType string
		N         int64
	}
	err := db.WithContext(ctx).Model(&domain.ComplianceEvent{}).
		Select("event_type, COUNT(*) AS n").
		Where("company_id = ? AND created_at > ?", companyID, since).
		Group("event_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.EventType] = r.N
	}
	return out, nil
}

// CountRevocationsSince counts consent_revoked events created after since
// that actually closed a consent. Repeated opt-outs journal revoked=false and
// are skipped.
func CountRevocationsSince(ctx context.Context, db *gorm.DB, companyID int64, since time.Time) (int64, error) {
	var n int64
	err := eventsQuery(ctx, db, companyID, domain.EventConsentRevoked).
		Where("created_at > ?", since).
		Where(datatypes.JSONQuery("details").Equals(true, "revoked")).
		Count(&n).Error
	return n, err
}
