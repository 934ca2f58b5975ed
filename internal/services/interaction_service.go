// Package services – InteractionService
//
// InteractionService appends inbound and outbound events to the interaction
// log and answers the customer-service window question from it. Inbound
// webhook deliveries may carry an idempotency key; a retried delivery with
// the same key resolves to the interaction it produced the first time.
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

// defaultIdempotencyTTL applies when IdempotencyTTL is unset.
const defaultIdempotencyTTL = 72 * time.Hour

// WindowStatus describes the customer-service window of a pair.
type WindowStatus struct {
	InWindow              bool       `json:"in_window"`
	HoursSinceInteraction *float64   `json:"hours_since_interaction"`
	RequiresTemplate      bool       `json:"requires_template"`
	LastInboundAt         *time.Time `json:"last_inbound_at,omitempty"`
	ExpiresAt             *time.Time `json:"expires_at,omitempty"`
}

// InteractionService records interactions and evaluates the window.
type InteractionService struct {
	DB             *gorm.DB
	Policy         policy.Policy
	IdempotencyTTL time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewInteractionService constructs an InteractionService.
func NewInteractionService(db *gorm.DB, pol policy.Policy, idemTTL time.Duration) *InteractionService {
	return &InteractionService{DB: db, Policy: pol, IdempotencyTTL: idemTTL}
}

// Record appends an interaction. When idemKey is non-empty and was already
// used by the company, the original interaction is returned with
// replayed=true and nothing is appended.
func (s *InteractionService) Record(ctx context.Context, companyID int64, phone, interactionType string, metadata map[string]any, idemKey string) (rec *domain.InteractionRecord, replayed bool, err error) {
	tr := otel.Tracer("services/InteractionService")
	ctx, span := tr.Start(ctx, "Record",
		trace.WithAttributes(
			attribute.Int64("company.id", companyID),
			attribute.String("interaction.type", interactionType),
			attribute.Bool("idempotent", idemKey != ""),
		),
	)
	defer span.End()

	if err := checkCompany(companyID); err != nil {
		return nil, false, err
	}
	e164, err := NormalizePhone(phone)
	if err != nil {
		return nil, false, err
	}
	interactionType = strings.TrimSpace(interactionType)
	if !domain.ValidInteractionType(interactionType) {
		return nil, false, ErrInvalidInteractionType
	}
	idemKey = strings.TrimSpace(idemKey)

	if idemKey != "" {
		prev, err := s.replay(ctx, companyID, idemKey)
		if err != nil {
			return nil, false, err
		}
		if prev != nil {
			return prev, true, nil
		}
	}

	now := clock(s.Now)
	rec = &domain.InteractionRecord{
		CompanyID:       companyID,
		PhoneNumber:     e164,
		InteractionType: interactionType,
		OccurredAt:      now,
		Metadata:        metadata,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateInteraction(ctx, tx, rec); err != nil {
			return err
		}
		if idemKey == "" {
			return nil
		}
		_, err := repo.CreateWebhookIdempotency(ctx, tx, companyID, idemKey, rec.ID, now, s.ttl())
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// Lost a race with a concurrent delivery of the same key.
		prev, rerr := s.replay(ctx, companyID, idemKey)
		if rerr != nil {
			return nil, false, rerr
		}
		if prev != nil {
			return prev, true, nil
		}
	}
	if err != nil {
		span.RecordError(err)
		return nil, false, storageErr(err)
	}
	return rec, false, nil
}

func (s *InteractionService) ttl() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return defaultIdempotencyTTL
}

// replay resolves a previously seen key to its interaction, or nil.
func (s *InteractionService) replay(ctx context.Context, companyID int64, key string) (*domain.InteractionRecord, error) {
	idem, err := repo.GetWebhookIdempotency(ctx, s.DB, companyID, key, clock(s.Now))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	rec, err := repo.GetInteraction(ctx, s.DB, companyID, idem.InteractionID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return rec, nil
}

// LastInboundAt returns when the user last wrote to the company, or nil.
func (s *InteractionService) LastInboundAt(ctx context.Context, companyID int64, phone string) (*time.Time, error) {
	tr := otel.Tracer("services/InteractionService")
	ctx, span := tr.Start(ctx, "LastInboundAt",
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
	at, err := repo.LastInboundAt(ctx, s.DB, companyID, e164)
	if err != nil {
		span.RecordError(err)
		return nil, storageErr(err)
	}
	return at, nil
}

// CheckWindow evaluates the customer-service window. With no inbound message
// ever, the pair is outside the window and needs a template. Otherwise the
// pair is inside while strictly less than the window length has elapsed.
func (s *InteractionService) CheckWindow(ctx context.Context, companyID int64, phone string) (WindowStatus, error) {
	last, err := s.LastInboundAt(ctx, companyID, phone)
	if err != nil {
		return WindowStatus{}, err
	}
	return EvaluateWindow(last, clock(s.Now), s.Policy.WindowLength()), nil
}

// EvaluateWindow is the pure window computation behind CheckWindow.
func EvaluateWindow(lastInbound *time.Time, now time.Time, window time.Duration) WindowStatus {
	if lastInbound == nil {
		return WindowStatus{InWindow: false, RequiresTemplate: true}
	}
	elapsed := now.Sub(*lastInbound)
	if elapsed < 0 {
		// Clock skew between writers; treat as just now.
		elapsed = 0
	}
	hours := elapsed.Hours()
	in := elapsed < window
	expires := lastInbound.Add(window)
	return WindowStatus{
		InWindow:              in,
		HoursSinceInteraction: &hours,
		RequiresTemplate:      !in,
		LastInboundAt:         lastInbound,
		ExpiresAt:             &expires,
	}
}

// CountSince counts the company's interactions of one type after since.
func (s *InteractionService) CountSince(ctx context.Context, companyID int64, interactionType string, since time.Time) (int64, error) {
	tr := otel.Tracer("services/InteractionService")
	ctx, span := tr.Start(ctx, "CountSince",
		trace.WithAttributes(
			attribute.Int64("company.id", companyID),
			attribute.String("interaction.type", interactionType),
		),
	)
	defer span.End()

	if err := checkCompany(companyID); err != nil {
		return 0, err
	}
	if !domain.ValidInteractionType(interactionType) {
		return 0, ErrInvalidInteractionType
	}
	n, err := repo.CountInteractionsSince(ctx, s.DB, companyID, interactionType, since)
	if err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}
