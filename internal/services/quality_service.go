// Package services – QualityService
//
// QualityService derives a company's quality score from its delivery
// outcomes over a trailing window and maps the score onto the send-limit tier
// table. Nothing here is persisted; every call recomputes from the
// interaction log.
//
// Score, with denom = max(sent, delivered+failed, 1):
//
//	base + (100-base)*delivered/denom - 100*(wf*failed + wb*blocked + wr*reported)/denom
//
// clamped to [0,100] and rounded to one decimal. The denominator does not
// grow with blocks or reports, so each one strictly lowers the score. A
// company with no outcomes at all in the window gets the cold-start score.
package services

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/wa-compliance/internal/domain"
	"github.com/tbourn/wa-compliance/internal/observability"
	"github.com/tbourn/wa-compliance/internal/policy"
	"github.com/tbourn/wa-compliance/internal/repo"
)

// ReasonNoHistory marks a limits result computed for a company that never
// logged an interaction.
const ReasonNoHistory = "no_history"

// Limits is a (daily, hourly) send allowance.
type Limits struct {
	DailyLimit  int `json:"daily_limit"`
	HourlyLimit int `json:"hourly_limit"`
}

// Usage counts messages sent in the trailing hour and day.
type Usage struct {
	LastHour int64 `json:"last_hour"`
	LastDay  int64 `json:"last_day"`
}

// LimitsResult is the outcome of CheckLimits. Success is false, with the
// lowest tier, when the company has no history yet.
type LimitsResult struct {
	Success  bool    `json:"success"`
	Reason   string  `json:"reason,omitempty"`
	Score    float64 `json:"score"`
	Tier     string  `json:"tier"`
	Limits   Limits  `json:"limits"`
	Usage    Usage   `json:"usage"`
	Exceeded bool    `json:"exceeded"`
}

// QualityService computes quality metrics and send limits.
type QualityService struct {
	DB     *gorm.DB
	Policy policy.Policy
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewQualityService constructs a QualityService.
func NewQualityService(db *gorm.DB, pol policy.Policy) *QualityService {
	return &QualityService{DB: db, Policy: pol}
}

// Metrics computes the company's quality snapshot over the policy window.
func (s *QualityService) Metrics(ctx context.Context, companyID int64) (*domain.QualityScoreSnapshot, error) {
	tr := otel.Tracer("services/QualityService")
	ctx, span := tr.Start(ctx, "Metrics",
		trace.WithAttributes(attribute.Int64("company.id", companyID)),
	)
	defer span.End()

	if err := checkCompany(companyID); err != nil {
		return nil, err
	}
	now := clock(s.Now)
	since := now.Add(-s.Policy.QualityWindow())
	counts, err := repo.CountInteractionsByTypeSince(ctx, s.DB, companyID, since)
	if err != nil {
		span.RecordError(err)
		return nil, storageErr(err)
	}

	snap := &domain.QualityScoreSnapshot{
		CompanyID:   companyID,
		Sent:        counts[domain.InteractionMessageSent],
		Delivered:   counts[domain.InteractionDelivered],
		Read:        counts[domain.InteractionRead],
		Failed:      counts[domain.InteractionFailed],
		Blocked:     counts[domain.InteractionBlocked],
		Reported:    counts[domain.InteractionReported],
		Received:    counts[domain.InteractionMessageReceived],
		WindowStart: since,
		ComputedAt:  now,
	}
	snap.CurrentScore, snap.ColdStart = Score(s.Policy.Quality, snap.Sent, snap.Delivered, snap.Failed, snap.Blocked, snap.Reported)
	span.SetAttributes(attribute.Float64("quality.score", snap.CurrentScore))
	observability.SetQualityScore(companyID, snap.CurrentScore)
	return snap, nil
}

// Score is the pure score function behind Metrics. coldStart reports that all
// five outcome counts were zero and q.ColdStartScore was returned.
func Score(q policy.QualityPolicy, sent, delivered, failed, blocked, reported int64) (score float64, coldStart bool) {
	if sent+delivered+failed+blocked+reported <= 0 {
		return clampScore(q.ColdStartScore), true
	}
	denom := max(sent, delivered+failed, 1)
	d := float64(denom)
	score = q.DeliveryBase +
		(100-q.DeliveryBase)*float64(delivered)/d -
		100*(q.FailWeight*float64(failed)+q.BlockWeight*float64(blocked)+q.ReportWeight*float64(reported))/d
	return clampScore(score), false
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(0, math.Min(100, v))
	return math.Round(v*10) / 10
}

// TierFor returns the first tier (ordered by descending min_score) whose
// threshold score reaches, or the lowest tier.
func TierFor(p policy.Policy, score float64) policy.Tier {
	for _, t := range p.Tiers {
		if score >= t.MinScore {
			return t
		}
	}
	return p.LowestTier()
}

// CheckLimits maps the current score to a tier and compares it with the
// company's sends in the trailing hour and day. It never fails for a company
// without history; that case yields Success=false with the lowest tier.
func (s *QualityService) CheckLimits(ctx context.Context, companyID int64) (LimitsResult, error) {
	tr := otel.Tracer("services/QualityService")
	ctx, span := tr.Start(ctx, "CheckLimits",
		trace.WithAttributes(attribute.Int64("company.id", companyID)),
	)
	defer span.End()

	if err := checkCompany(companyID); err != nil {
		return LimitsResult{}, err
	}

	seen, err := repo.HasAnyInteraction(ctx, s.DB, companyID)
	if err != nil {
		span.RecordError(err)
		return LimitsResult{}, storageErr(err)
	}
	if !seen {
		low := s.Policy.LowestTier()
		return LimitsResult{
			Success: false,
			Reason:  ReasonNoHistory,
			Score:   clampScore(s.Policy.Quality.ColdStartScore),
			Tier:    low.Name,
			Limits:  Limits{DailyLimit: low.DailyLimit, HourlyLimit: low.HourlyLimit},
		}, nil
	}

	snap, err := s.Metrics(ctx, companyID)
	if err != nil {
		return LimitsResult{}, err
	}
	tier := TierFor(s.Policy, snap.CurrentScore)

	now := clock(s.Now)
	hour, err := repo.CountInteractionsSince(ctx, s.DB, companyID, domain.InteractionMessageSent, now.Add(-time.Hour))
	if err != nil {
		return LimitsResult{}, storageErr(err)
	}
	day, err := repo.CountInteractionsSince(ctx, s.DB, companyID, domain.InteractionMessageSent, now.Add(-24*time.Hour))
	if err != nil {
		return LimitsResult{}, storageErr(err)
	}

	res := LimitsResult{
		Success: true,
		Score:   snap.CurrentScore,
		Tier:    tier.Name,
		Limits:  Limits{DailyLimit: tier.DailyLimit, HourlyLimit: tier.HourlyLimit},
		Usage:   Usage{LastHour: hour, LastDay: day},
	}
	res.Exceeded = hour >= int64(tier.HourlyLimit) || day >= int64(tier.DailyLimit)
	span.SetAttributes(attribute.String("quality.tier", tier.Name), attribute.Bool("limits.exceeded", res.Exceeded))
	return res, nil
}
