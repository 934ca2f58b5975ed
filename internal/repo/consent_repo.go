// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for consent records.
//
// Consent rows are never deleted. A record is "active" when revoked_at is NULL
// and granted_at is newer than the caller-supplied horizon; passing the zero
// time disables the horizon check.
//
// Usage:
//
//	ok, err := repo.HasActiveConsent(ctx, db, companyID, phone, now.Add(-validity))
//	if err != nil { ... }
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/wa-compliance/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

func activeConsents(ctx context.Context, db *gorm.DB, companyID int64, phone string, since time.Time) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.ConsentRecord{}).
		Where("company_id = ? AND phone_number = ? AND revoked_at IS NULL", companyID, phone)
	if !since.IsZero() {
		q = q.Where("granted_at > ?", since)
	}
	return q
}

// CreateConsent inserts rec, assigning an ID and timestamps when unset.
func CreateConsent(ctx context.Context, db *gorm.DB, rec *domain.ConsentRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.GrantedAt.IsZero() {
		rec.GrantedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(rec).Error
}

// RevokeActiveConsents stamps revoked_at/reason on every active record of the
// pair and returns how many rows changed.
func RevokeActiveConsents(ctx context.Context, db *gorm.DB, companyID int64, phone, reason string, now, since time.Time) (int64, error) {
	res := activeConsents(ctx, db, companyID, phone, since).
		Updates(map[string]any{
			"revoked_at":        now,
			"revocation_reason": reason,
			"updated_at":        now,
		})
	return res.RowsAffected, res.Error
}

// HasActiveConsent reports whether the pair has at least one active record.
func HasActiveConsent(ctx context.Context, db *gorm.DB, companyID int64, phone string, since time.Time) (bool, error) {
	var n int64
	if err := activeConsents(ctx, db, companyID, phone, since).Limit(1).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// LatestConsent returns the most recently granted record for the pair, active
// or not, or ErrNotFound.
func LatestConsent(ctx context.Context, db *gorm.DB, companyID int64, phone string) (*domain.ConsentRecord, error) {
	var rec domain.ConsentRecord
	err := db.WithContext(ctx).
		Where("company_id = ? AND phone_number = ?", companyID, phone).
		Order("granted_at DESC, id DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListConsents returns the full consent history of the pair, newest first.
func ListConsents(ctx context.Context, db *gorm.DB, companyID int64, phone string) ([]domain.ConsentRecord, error) {
	var out []domain.ConsentRecord
	err := db.WithContext(ctx).
		Where("company_id = ? AND phone_number = ?", companyID, phone).
		Order("granted_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// CountActiveConsents counts distinct phone numbers with an active consent for
// the company.
func CountActiveConsents(ctx context.Context, db *gorm.DB, companyID int64, since time.Time) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.ConsentRecord{}).
		Where("company_id = ? AND revoked_at IS NULL", companyID)
	if !since.IsZero() {
		q = q.Where("granted_at > ?", since)
	}
	var n int64
	err := q.Distinct("phone_number").Count(&n).Error
	return n, err
}
