// Package services – ComplianceService
//
// ComplianceService is the façade the dispatch pathway and the inbound
// webhook talk to. It composes the consent store, the interaction log, the
// content validator, the limit calculator and the audit trail.
//
// CheckSend answers "may this message go to this number now". Gates run in
// order (consent, window, content, limits) and the first failing gate decides
// the reason. Every outcome is journaled. Storage failures fail closed: the
// decision is a denial with reason storage_unavailable and the wrapped error
// is returned alongside it.
//
// Concurrent opt-in and opt-out for the same pair are not serialized here;
// the last write wins at the storage layer.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/wa-compliance/internal/domain"
	"github.com/tbourn/wa-compliance/internal/observability"
	"github.com/tbourn/wa-compliance/internal/policy"
)

// Decision reasons beyond the content reasons of the validator.
const (
	ReasonNoConsent          = "no_consent"
	ReasonWindowExpired      = "window_expired"
	ReasonLimitExceeded      = "limit_exceeded"
	ReasonStorageUnavailable = "storage_unavailable"
)

// excerptRunes caps the body excerpt stored with inbound interactions.
const excerptRunes = 160

// ConsentStore is the consent contract required by ComplianceService.
type ConsentStore interface {
	Record(ctx context.Context, companyID int64, phone, method string, metadata map[string]any) (*domain.ConsentRecord, error)
	HasActive(ctx context.Context, companyID int64, phone string) (bool, error)
	Revoke(ctx context.Context, companyID int64, phone, reason string) (bool, error)
}

// InteractionLog is the interaction contract required by ComplianceService.
type InteractionLog interface {
	Record(ctx context.Context, companyID int64, phone, interactionType string, metadata map[string]any, idemKey string) (*domain.InteractionRecord, bool, error)
	CheckWindow(ctx context.Context, companyID int64, phone string) (WindowStatus, error)
}

// ContentValidator classifies message bodies.
type ContentValidator interface {
	Validate(text, messageType string) ValidationResult
}

// LimitChecker returns the company's current tier and usage.
type LimitChecker interface {
	CheckLimits(ctx context.Context, companyID int64) (LimitsResult, error)
}

// EventLogger appends to the audit trail.
type EventLogger interface {
	Log(ctx context.Context, companyID int64, eventType string, details map[string]any) (*domain.ComplianceEvent, error)
}

// SendRequest describes an outbound message awaiting a decision.
type SendRequest struct {
	CompanyID   int64
	Phone       string
	Text        string
	MessageType string
}

// Decision is the outcome of CheckSend. Allowed is false whenever Reason is
// set. The gate results gathered before the decision are attached.
type Decision struct {
	Allowed    bool              `json:"allowed"`
	Reason     string            `json:"reason,omitempty"`
	Window     *WindowStatus     `json:"window,omitempty"`
	Validation *ValidationResult `json:"validation,omitempty"`
	Limits     *LimitsResult     `json:"limits,omitempty"`
}

// OptOutResult is the outcome of HandleOptOut. Recognized is false when the
// input is not an opt-out keyword; nothing is changed in that case.
type OptOutResult struct {
	Success        bool   `json:"success"`
	Recognized     bool   `json:"recognized"`
	ConsentRevoked bool   `json:"consent_revoked"`
	Keyword        string `json:"keyword,omitempty"`
}

// InteractionInput is an inbound or outbound event reported to the engine.
type InteractionInput struct {
	CompanyID      int64
	Phone          string
	Type           string
	Body           string
	Metadata       map[string]any
	IdempotencyKey string
}

// InteractionOutcome reports what RecordUserInteraction did.
type InteractionOutcome struct {
	Interaction     *domain.InteractionRecord `json:"interaction"`
	Replayed        bool                      `json:"replayed"`
	OptOut          *OptOutResult             `json:"opt_out,omitempty"`
	ConsentRecorded bool                      `json:"consent_recorded"`
}

// ComplianceService composes the compliance components.
type ComplianceService struct {
	Consents     ConsentStore
	Interactions InteractionLog
	Validator    ContentValidator
	Limits       LimitChecker
	Events       EventLogger
	Keywords     policy.KeywordPolicy
}

// RecordConsent stores an opt-in and journals consent_recorded.
func (s *ComplianceService) RecordConsent(ctx context.Context, companyID int64, phone, method string, metadata map[string]any) (*domain.ConsentRecord, error) {
	tr := otel.Tracer("services/ComplianceService")
	ctx, span := tr.Start(ctx, "RecordConsent",
		trace.WithAttributes(attribute.Int64("company.id", companyID)),
	)
	defer span.End()

	rec, err := s.Consents.Record(ctx, companyID, phone, method, metadata)
	if err != nil {
		return nil, err
	}
	s.journal(ctx, companyID, domain.EventConsentRecorded, map[string]any{
		"phone_number": rec.PhoneNumber,
		"method":       rec.Method,
		"consent_id":   rec.ID,
	})
	return rec, nil
}

// RevokeConsent revokes the pair's consent and journals consent_revoked.
func (s *ComplianceService) RevokeConsent(ctx context.Context, companyID int64, phone, reason string) (bool, error) {
	tr := otel.Tracer("services/ComplianceService")
	ctx, span := tr.Start(ctx, "RevokeConsent",
		trace.WithAttributes(attribute.Int64("company.id", companyID)),
	)
	defer span.End()

	e164, err := NormalizePhone(phone)
	if err != nil {
		return false, err
	}
	revoked, err := s.Consents.Revoke(ctx, companyID, e164, reason)
	if err != nil {
		return false, err
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = RevocationUserRequest
	}
	s.journal(ctx, companyID, domain.EventConsentRevoked, map[string]any{
		"phone_number": e164,
		"reason":       reason,
		"revoked":      revoked,
	})
	return revoked, nil
}

// HandleOptOut revokes consent when keyword is an opt-out keyword. It is
// idempotent: a second opt-out succeeds with ConsentRevoked=false.
func (s *ComplianceService) HandleOptOut(ctx context.Context, companyID int64, phone, keyword string, metadata map[string]any) (OptOutResult, error) {
	tr := otel.Tracer("services/ComplianceService")
	ctx, span := tr.Start(ctx, "HandleOptOut",
		trace.WithAttributes(attribute.Int64("company.id", companyID)),
	)
	defer span.End()

	matched, ok := MatchKeyword(keyword, s.Keywords.OptOut)
	if !ok {
		return OptOutResult{}, nil
	}
	e164, err := NormalizePhone(phone)
	if err != nil {
		return OptOutResult{Recognized: true, Keyword: matched}, err
	}
	revoked, err := s.Consents.Revoke(ctx, companyID, e164, RevocationOptOut)
	if err != nil {
		span.RecordError(err)
		return OptOutResult{Recognized: true, Keyword: matched}, err
	}

	details := map[string]any{
		"phone_number": e164,
		"keyword":      matched,
		"revoked":      revoked,
	}
	for k, v := range metadata {
		if _, taken := details[k]; !taken {
			details[k] = v
		}
	}
	s.journal(ctx, companyID, domain.EventConsentRevoked, details)
	observability.RecordOptOut(revoked)
	loggerFrom(ctx).Info().
		Int64("company_id", companyID).
		Str("phone", MaskPhone(e164)).
		Bool("revoked", revoked).
		Msg("opt-out handled")

	return OptOutResult{Success: true, Recognized: true, ConsentRevoked: revoked, Keyword: matched}, nil
}

// RecordUserInteraction logs an interaction. Inbound bodies that are an
// opt-out keyword revoke consent; opt-in keywords grant consent with method
// whatsapp_message when none is active. Replayed deliveries have no side
// effects.
func (s *ComplianceService) RecordUserInteraction(ctx context.Context, in InteractionInput) (InteractionOutcome, error) {
	tr := otel.Tracer("services/ComplianceService")
	ctx, span := tr.Start(ctx, "RecordUserInteraction",
		trace.WithAttributes(
			attribute.Int64("company.id", in.CompanyID),
			attribute.String("interaction.type", in.Type),
		),
	)
	defer span.End()

	meta := make(map[string]any, len(in.Metadata)+1)
	for k, v := range in.Metadata {
		meta[k] = v
	}
	body := strings.TrimSpace(in.Body)
	if body != "" {
		if _, ok := meta["excerpt"]; !ok {
			meta["excerpt"] = excerpt(body)
		}
	}

	rec, replayed, err := s.Interactions.Record(ctx, in.CompanyID, in.Phone, in.Type, meta, in.IdempotencyKey)
	if err != nil {
		return InteractionOutcome{}, err
	}
	out := InteractionOutcome{Interaction: rec, Replayed: replayed}
	if replayed || in.Type != domain.InteractionMessageReceived || body == "" {
		return out, nil
	}

	if _, ok := MatchKeyword(body, s.Keywords.OptOut); ok {
		res, err := s.HandleOptOut(ctx, in.CompanyID, rec.PhoneNumber, body, map[string]any{"interaction_id": rec.ID})
		if err != nil {
			return out, err
		}
		out.OptOut = &res
		return out, nil
	}

	if kw, ok := MatchKeyword(body, s.Keywords.OptIn); ok {
		active, err := s.Consents.HasActive(ctx, in.CompanyID, rec.PhoneNumber)
		if err != nil {
			return out, err
		}
		if !active {
			if _, err := s.RecordConsent(ctx, in.CompanyID, rec.PhoneNumber, domain.ConsentMethodWhatsAppMessage, map[string]any{
				"source":         "keyword",
				"keyword":        kw,
				"interaction_id": rec.ID,
			}); err != nil {
				return out, err
			}
			out.ConsentRecorded = true
		}
	}
	return out, nil
}

// CheckSend runs the pre-send gates and journals the outcome. A non-nil error
// is returned only for invalid input or storage failure; in the latter case
// the Decision is a fail-closed denial.
func (s *ComplianceService) CheckSend(ctx context.Context, req SendRequest) (Decision, error) {
	tr := otel.Tracer("services/ComplianceService")
	ctx, span := tr.Start(ctx, "CheckSend",
		trace.WithAttributes(
			attribute.Int64("company.id", req.CompanyID),
			attribute.String("message.type", req.MessageType),
		),
	)
	defer span.End()

	if err := checkCompany(req.CompanyID); err != nil {
		return Decision{}, err
	}
	e164, err := NormalizePhone(req.Phone)
	if err != nil {
		return Decision{}, err
	}
	msgType := strings.ToLower(strings.TrimSpace(req.MessageType))
	if msgType == "" {
		msgType = MessageTypeText
	}

	d, err := s.decide(ctx, req.CompanyID, e164, req.Text, msgType)
	if err != nil {
		span.RecordError(err)
		d = Decision{Reason: ReasonStorageUnavailable, Window: d.Window, Validation: d.Validation, Limits: d.Limits}
	}

	details := map[string]any{
		"phone_number": e164,
		"message_type": msgType,
	}
	if d.Reason != "" {
		details["reason"] = d.Reason
	}
	eventType := decisionEvent(d)
	switch eventType {
	case domain.EventContentRejected:
		details["detail"] = d.Validation.Detail
		observability.RecordContentRejection(d.Validation.Reason)
	case domain.EventLimitExceeded:
		details["tier"] = d.Limits.Tier
		details["usage_hour"] = d.Limits.Usage.LastHour
		details["usage_day"] = d.Limits.Usage.LastDay
	}
	if _, lerr := s.Events.Log(ctx, req.CompanyID, eventType, details); lerr != nil {
		loggerFrom(ctx).Error().Err(lerr).
			Int64("company_id", req.CompanyID).
			Str("event_type", eventType).
			Msg("compliance event not recorded")
		if d.Allowed {
			// An unaudited send is not allowed.
			d.Allowed = false
			d.Reason = ReasonStorageUnavailable
			err = lerr
		}
	}

	span.SetAttributes(attribute.Bool("decision.allowed", d.Allowed), attribute.String("decision.reason", d.Reason))
	observability.RecordDecision(d.Allowed, d.Reason)
	loggerFrom(ctx).Debug().
		Int64("company_id", req.CompanyID).
		Str("phone", MaskPhone(e164)).
		Bool("allowed", d.Allowed).
		Str("reason", d.Reason).
		Msg("send decision")
	return d, err
}

// decide runs the gates in order. On storage error the partial decision is
// returned with the error.
func (s *ComplianceService) decide(ctx context.Context, companyID int64, phone, text, msgType string) (Decision, error) {
	var d Decision

	ok, err := s.Consents.HasActive(ctx, companyID, phone)
	if err != nil {
		return d, err
	}
	if !ok {
		d.Reason = ReasonNoConsent
		return d, nil
	}

	w, err := s.Interactions.CheckWindow(ctx, companyID, phone)
	if err != nil {
		return d, err
	}
	d.Window = &w
	if w.RequiresTemplate && msgType != MessageTypeTemplate {
		d.Reason = ReasonWindowExpired
		return d, nil
	}

	// Templates are pre-approved; an empty template body is not a rejection.
	if !(msgType == MessageTypeTemplate && strings.TrimSpace(text) == "") {
		v := s.Validator.Validate(text, msgType)
		d.Validation = &v
		if !v.Valid {
			d.Reason = v.Reason
			return d, nil
		}
	}

	lim, err := s.Limits.CheckLimits(ctx, companyID)
	if err != nil {
		return d, err
	}
	d.Limits = &lim
	if lim.Exceeded {
		d.Reason = ReasonLimitExceeded
		return d, nil
	}

	d.Allowed = true
	return d, nil
}

func decisionEvent(d Decision) string {
	switch {
	case d.Allowed:
		return domain.EventSendPermitted
	case d.Reason == ReasonNoConsent:
		return domain.EventConsentMissing
	case d.Reason == ReasonWindowExpired:
		return domain.EventWindowViolation
	case d.Reason == ReasonLimitExceeded:
		return domain.EventLimitExceeded
	case d.Validation != nil && !d.Validation.Valid && d.Reason == d.Validation.Reason:
		return domain.EventContentRejected
	default:
		return domain.EventCheckFailed
	}
}

// journal appends an event, logging instead of failing when the trail is
// unavailable. Used for outcomes that already took effect.
func (s *ComplianceService) journal(ctx context.Context, companyID int64, eventType string, details map[string]any) {
	if _, err := s.Events.Log(ctx, companyID, eventType, details); err != nil {
		loggerFrom(ctx).Error().Err(err).
			Int64("company_id", companyID).
			Str("event_type", eventType).
			Msg("compliance event not recorded")
	}
}

func excerpt(s string) string {
	if utf8.RuneCountInString(s) <= excerptRunes {
		return s
	}
	return string([]rune(s)[:excerptRunes])
}

// IsStorageError reports whether err is a storage failure.
func IsStorageError(err error) bool { return errors.Is(err, ErrStorageUnavailable) }
