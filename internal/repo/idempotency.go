// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for webhook
// idempotency keys, which let platform retries of the same delivery resolve
// to the interaction they first produced.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/wa-compliance/internal/domain"
)

// ErrDuplicate indicates that an idempotency record already exists for the
// given (company_id, idem_key) pair.
var ErrDuplicate = errors.New("duplicate")

// GetWebhookIdempotency returns a non-expired record or ErrNotFound.
func GetWebhookIdempotency(ctx context.Context, db *gorm.DB, companyID int64, key string, now time.Time) (*domain.WebhookIdempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.WebhookIdempotency
	err := db.WithContext(ctx).
		Where("company_id = ? AND idem_key = ? AND expires_at > ?", companyID, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateWebhookIdempotency inserts a record expiring ttl after now and returns
// ErrDuplicate on unique violation. An expired record for the same key is
// replaced, so a key becomes reusable once its TTL has passed even if the
// purge has not run yet.
func CreateWebhookIdempotency(ctx context.Context, db *gorm.DB, companyID int64, key, interactionID string, now time.Time, ttl time.Duration) (*domain.WebhookIdempotency, error) {
	now = now.UTC()
	if err := db.WithContext(ctx).
		Where("company_id = ? AND idem_key = ? AND expires_at <= ?", companyID, key, now).
		Delete(&domain.WebhookIdempotency{}).Error; err != nil {
		return nil, err
	}
	rec := &domain.WebhookIdempotency{
		ID:            uuid.NewString(),
		CompanyID:     companyID,
		IdemKey:       key,
		InteractionID: interactionID,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredIdempotency deletes records whose expiry is at or before now.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.WebhookIdempotency{})
	return res.RowsAffected, res.Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations;
	// postgres reports SQLSTATE 23505.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "sqlstate 23505") ||
		strings.Contains(low, "duplicate key value")
}
