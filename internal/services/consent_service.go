// Package services – ConsentService
//
// ConsentService owns the opt-in lifecycle of a (company, phone) pair. A new
// opt-in supersedes whatever consent is still open for the pair inside one
// transaction, which keeps at most one active record per pair. Revocation
// stamps revoked_at; rows are never deleted so the history stays auditable.
//
// Consent is active while it is not revoked and was granted within the
// policy validity horizon.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/wa-compliance/internal/domain"
	"github.com/tbourn/wa-compliance/internal/policy"
	"github.com/tbourn/wa-compliance/internal/repo"
)

// Revocation reasons recorded on consent rows.
const (
	RevocationUserRequest = "user_request"
	RevocationOptOut      = "opt_out"
)

// ConsentService records, checks and revokes consent.
type ConsentService struct {
	DB     *gorm.DB
	Policy policy.Policy
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewConsentService constructs a ConsentService.
func NewConsentService(db *gorm.DB, pol policy.Policy) *ConsentService {
	return &ConsentService{DB: db, Policy: pol}
}

func (s *ConsentService) horizon(now time.Time) time.Time {
	return now.Add(-s.Policy.ConsentValidity())
}

// Record stores a new active consent for the pair, superseding any consent
// still open. Recording twice in a row therefore leaves exactly one active
// record.
func (s *ConsentService) Record(ctx context.Context, companyID int64, phone, method string, metadata map[string]any) (*domain.ConsentRecord, error) {
	tr := otel.Tracer("services/ConsentService")
	ctx, span := tr.Start(ctx, "Record",
		trace.WithAttributes(
			attribute.Int64("company.id", companyID),
			attribute.String("consent.method", method),
		),
	)
	defer span.End()

	if err := checkCompany(companyID); err != nil {
		return nil, err
	}
	e164, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	method = strings.TrimSpace(method)
	if !domain.ValidConsentMethod(method) {
		return nil, ErrInvalidMethod
	}

	now := clock(s.Now)
	rec := &domain.ConsentRecord{
		CompanyID:   companyID,
		PhoneNumber: e164,
		Method:      method,
		GrantedAt:   now,
		Metadata:    metadata,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.RevokeActiveConsents(ctx, tx, companyID, e164, domain.RevocationSuperseded, now, time.Time{}); err != nil {
			return err
		}
		return repo.CreateConsent(ctx, tx, rec)
	})
	if err != nil {
		span.RecordError(err)
		return nil, storageErr(err)
	}
	return rec, nil
}

// HasActive reports whether the pair currently holds an active consent.
// Absence is not an error.
func (s *ConsentService) HasActive(ctx context.Context, companyID int64, phone string) (bool, error) {
	tr := otel.Tracer("services/ConsentService")
	ctx, span := tr.Start(ctx, "HasActive",
		trace.WithAttributes(attribute.Int64("company.id", companyID)),
	)
	defer span.End()

	if err := checkCompany(companyID); err != nil {
		return false, err
	}
	e164, err := NormalizePhone(phone)
	if err != nil {
		return false, err
	}
	ok, err := repo.HasActiveConsent(ctx, s.DB, companyID, e164, s.horizon(clock(s.Now)))
	if err != nil {
		span.RecordError(err)
		return false, storageErr(err)
	}
	return ok, nil
}

// Revoke closes the active consent of the pair and reports whether anything
// was revoked. Revoking a pair without active consent returns false.
func (s *ConsentService) Revoke(ctx context.Context, companyID int64, phone, reason string) (bool, error) {
	tr := otel.Tracer("services/ConsentService")
	ctx, span := tr.Start(ctx, "Revoke",
		trace.WithAttributes(attribute.Int64("company.id", companyID)),
	)
	defer span.End()

	if err := checkCompany(companyID); err != nil {
		return false, err
	}
	e164, err := NormalizePhone(phone)
	if err != nil {
		return false, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = RevocationUserRequest
	}
	now := clock(s.Now)
	n, err := repo.RevokeActiveConsents(ctx, s.DB, companyID, e164, reason, now, s.horizon(now))
	if err != nil {
		span.RecordError(err)
		return false, storageErr(err)
	}
	return n > 0, nil
}

// Latest returns the most recent consent record of the pair, or nil when the
// pair never opted in.
func (s *ConsentService) Latest(ctx context.Context, companyID int64, phone string) (*domain.ConsentRecord, error) {
	tr := otel.Tracer("services/ConsentService")
	ctx, span := tr.Start(ctx, "Latest",
		trace.WithAttributes(attribute.Int64("company.id", companyID)),
	)
	defer span.End()

	if err := checkCompany(companyID); err != nil {
		return nil, err
	}
	e164, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	rec, err := repo.LatestConsent(ctx, s.DB, companyID, e164)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return rec, nil
}

// ActiveCount returns how many phone numbers hold an active consent.
func (s *ConsentService) ActiveCount(ctx context.Context, companyID int64) (int64, error) {
	tr := otel.Tracer("services/ConsentService")
	ctx, span := tr.Start(ctx, "ActiveCount",
		trace.WithAttributes(attribute.Int64("company.id", companyID)),
	)
	defer span.End()

	if err := checkCompany(companyID); err != nil {
		return 0, err
	}
	n, err := repo.CountActiveConsents(ctx, s.DB, companyID, s.horizon(clock(s.Now)))
	if err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}
