// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the append-only
// interaction log.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/wa-compliance/internal/domain"
)

// CreateInteraction appends rec, assigning an ID and timestamp when unset.
func CreateInteraction(ctx context.Context, db *gorm.DB, rec *domain.InteractionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(rec).Error
}

// GetInteraction fetches an interaction by ID within a company, or ErrNotFound.
func GetInteraction(ctx context.Context, db *gorm.DB, companyID int64, id string) (*domain.InteractionRecord, error) {
	var rec domain.InteractionRecord
	err := db.WithContext(ctx).
		Where("id = ? AND company_id = ?", id, companyID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LastInboundAt returns the newest message_received timestamp for the pair,
// or nil when the user never wrote in.
func LastInboundAt(ctx context.Context, db *gorm.DB, companyID int64, phone string) (*time.Time, error) {
	var rows []struct {
		OccurredAt time.Time
	}
	// ORDER BY + LIMIT instead of MAX(): SQLite returns MAX() of a datetime as TEXT.
	err := db.WithContext(ctx).Model(&domain.InteractionRecord{}).
		Select("occurred_at").
		Where("company_id = ? AND phone_number = ? AND interaction_type = ?",
			companyID, phone, domain.InteractionMessageReceived).
		Order("occurred_at DESC").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	at := rows[0].OccurredAt.UTC()
	return &at, nil
}

// CountInteractionsSince counts interactions of one type for the company that
// occurred strictly after since.
func CountInteractionsSince(ctx context.Context, db *gorm.DB, companyID int64, interactionType string, since time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.InteractionRecord{}).
		Where("company_id = ? AND interaction_type = ? AND occurred_at > ?", companyID, interactionType, since).
		Count(&n).Error
	return n, err
}

// CountInteractionsByTypeSince groups the company's interactions after since
// by type.
func CountInteractionsByTypeSince(ctx context.Context, db *gorm.DB, companyID int64, since time.Time) (map[string]int64, error) {
	var rows []struct {
		InteractionType string
		N               int64
	}
	err := db.WithContext(ctx).Model(&domain.InteractionRecord{}).
		Select("interaction_type, COUNT(*) AS n").
		Where("company_id = ? AND occurred_at > ?", companyID, since).
		Group("interaction_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.InteractionType] = r.N
	}
	return out, nil
}

// HasAnyInteraction reports whether the company has ever logged an interaction.
func HasAnyInteraction(ctx context.Context, db *gorm.DB, companyID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.InteractionRecord{}).
		Where("company_id = ?", companyID).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}
