// Package services – EventService
//
// EventService appends to the compliance audit trail and rolls the trail up,
// together with the quality score, into the dashboard status. Events are
// written once and never modified.
package services

import (
	"context"
	"math"
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

// Health bands of ComplianceStatus.
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// violationEvents are the decision outcomes that count against event health.
var violationEvents = []string{
	domain.EventContentRejected,
	domain.EventWindowViolation,
	domain.EventLimitExceeded,
	domain.EventConsentMissing,
}

// ComplianceStatus is the dashboard roll-up for a company.
type ComplianceStatus struct {
	CompanyID      int64            `json:"company_id"`
	OverallScore   float64          `json:"overall_score"`
	Health         string           `json:"health"`
	QualityScore   float64          `json:"quality_score"`
	EventHealth    float64          `json:"event_health"`
	ViolationRate  float64          `json:"violation_rate"`
	Violations     int64            `json:"violations"`
	Permitted      int64            `json:"permitted"`
	OptOuts        int64            `json:"opt_outs"`
	ActiveConsents int64            `json:"active_consents"`
	Events         map[string]int64 `json:"events"`
	WindowStart    time.Time        `json:"window_start"`
	ComputedAt     time.Time        `json:"computed_at"`
}

// EventService writes and summarizes compliance events.
type EventService struct {
	DB       *gorm.DB
	Policy   policy.Policy
	Quality  *QualityService
	Consents *ConsentService
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewEventService constructs an EventService.
func NewEventService(db *gorm.DB, pol policy.Policy, quality *QualityService, consents *ConsentService) *EventService {
	return &EventService{DB: db, Policy: pol, Quality: quality, Consents: consents}
}

// Log appends one event to the audit trail.
func (s *EventService) Log(ctx context.Context, companyID int64, eventType string, details map[string]any) (*domain.ComplianceEvent, error) {
	tr := otel.Tracer("services/EventService")
	ctx, span := tr.Start(ctx, "Log",
		trace.WithAttributes(
			attribute.Int64("company.id", companyID),
			attribute.String("event.type", eventType),
		),
	)
	defer span.End()

	if err := checkCompany(companyID); err != nil {
		return nil, err
	}
	eventType = strings.TrimSpace(eventType)
	if !domain.ValidEventType(eventType) {
		return nil, ErrInvalidEventType
	}
	ev := &domain.ComplianceEvent{
		CompanyID: companyID,
		EventType: eventType,
		Details:   details,
		CreatedAt: clock(s.Now),
	}
	if err := repo.CreateEvent(ctx, s.DB, ev); err != nil {
		span.RecordError(err)
		return nil, storageErr(err)
	}
	return ev, nil
}

// List returns a page of the company's events, newest first, and the total.
// An empty eventType lists every type.
func (s *EventService) List(ctx context.Context, companyID int64, eventType string, page, pageSize int) ([]domain.ComplianceEvent, int64, error) {
	tr := otel.Tracer("services/EventService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.Int64("company.id", companyID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if err := checkCompany(companyID); err != nil {
		return nil, 0, err
	}
	if eventType != "" && !domain.ValidEventType(eventType) {
		return nil, 0, ErrInvalidEventType
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountEvents(ctx, s.DB, companyID, eventType)
	if err != nil {
		return nil, 0, storageErr(err)
	}
	if total == 0 {
		return []domain.ComplianceEvent{}, 0, nil
	}
	items, err := repo.ListEventsPage(ctx, s.DB, companyID, eventType, offset, pageSize)
	if err != nil {
		return nil, 0, storageErr(err)
	}
	return items, total, nil
}

// Stats returns the event count and latest event time, for cache validators.
func (s *EventService) Stats(ctx context.Context, companyID int64) (int64, *time.Time, error) {
	if err := checkCompany(companyID); err != nil {
		return 0, nil, err
	}
	n, at, err := repo.EventsStats(ctx, s.DB, companyID)
	if err != nil {
		return 0, nil, storageErr(err)
	}
	return n, at, nil
}

// Status rolls recent events and the quality score into one indicator:
//
//	violation_rate = violations / (violations + send_permitted)
//	event_health   = 100 * (1 - violation_rate)
//	overall        = w*quality + (1-w)*event_health
func (s *EventService) Status(ctx context.Context, companyID int64) (*ComplianceStatus, error) {
	tr := otel.Tracer("services/EventService")
	ctx, span := tr.Start(ctx, "Status",
		trace.WithAttributes(attribute.Int64("company.id", companyID)),
	)
	defer span.End()

	if err := checkCompany(companyID); err != nil {
		return nil, err
	}
	now := clock(s.Now)
	since := now.Add(-s.Policy.StatusWindow())

	counts, err := repo.CountEventsByTypeSince(ctx, s.DB, companyID, since)
	if err != nil {
		span.RecordError(err)
		return nil, storageErr(err)
	}
	optOuts, err := repo.CountRevocationsSince(ctx, s.DB, companyID, since)
	if err != nil {
		span.RecordError(err)
		return nil, storageErr(err)
	}
	snap, err := s.Quality.Metrics(ctx, companyID)
	if err != nil {
		return nil, err
	}
	active, err := s.Consents.ActiveCount(ctx, companyID)
	if err != nil {
		return nil, err
	}

	st := &ComplianceStatus{
		CompanyID:      companyID,
		QualityScore:   snap.CurrentScore,
		Permitted:      counts[domain.EventSendPermitted],
		OptOuts:        optOuts,
		ActiveConsents: active,
		Events:         counts,
		WindowStart:    since,
		ComputedAt:     now,
	}
	for _, t := range violationEvents {
		st.Violations += counts[t]
	}
	if decided := st.Violations + st.Permitted; decided > 0 {
		st.ViolationRate = round1(float64(st.Violations)/float64(decided)*100) / 100
	}
	st.EventHealth = round1(100 * (1 - st.ViolationRate))
	w := s.Policy.Status.QualityWeight
	st.OverallScore = round1(w*st.QualityScore + (1-w)*st.EventHealth)
	st.Health = HealthBand(st.OverallScore)
	return st, nil
}

// HealthBand maps an overall score to healthy (>=80), warning (>=50) or critical.
func HealthBand(score float64) string {
	switch {
	case score >= 80:
		return HealthHealthy
	case score >= 50:
		return HealthWarning
	default:
		return HealthCritical
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
