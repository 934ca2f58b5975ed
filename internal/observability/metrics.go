// Package observability wires tracing and domain metrics.
//
// This file registers the compliance collectors. Label sets are closed
// enumerations (decision outcome/reason, revoked flag) except the quality
// gauge, which is keyed by company and therefore bounded by tenant count.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// decisions counts pre-send decisions by outcome (allowed/denied) and reason.
	decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compliance_decisions_total",
			Help: "Total number of pre-send compliance decisions.",
		},
		[]string{"outcome", "reason"},
	)

	// optOuts counts recognized opt-out keywords, split by whether a consent
	// was actually revoked.
	optOuts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compliance_opt_outs_total",
			Help: "Total number of recognized opt-out requests.",
		},
		[]string{"revoked"},
	)

	// qualityScore exposes the last computed quality score per company.
	qualityScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "compliance_quality_score",
			Help: "Most recently computed quality score (0-100).",
		},
		[]string{"company_id"},
	)

	// contentRejections counts validator rejections by reason.
	contentRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compliance_content_rejections_total",
			Help: "Total number of messages rejected by the content validator.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(decisions, optOuts, qualityScore, contentRejections)
}

// RecordDecision counts a pre-send decision. An empty reason is reported as "ok".
func RecordDecision(allowed bool, reason string) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	if reason == "" {
		reason = "ok"
	}
	decisions.WithLabelValues(outcome, reason).Inc()
}

// RecordOptOut counts a recognized opt-out keyword.
func RecordOptOut(revoked bool) {
	optOuts.WithLabelValues(strconv.FormatBool(revoked)).Inc()
}

// SetQualityScore publishes a company's latest quality score.
func SetQualityScore(companyID int64, score float64) {
	qualityScore.WithLabelValues(strconv.FormatInt(companyID, 10)).Set(score)
}

// RecordContentRejection counts a validator rejection.
func RecordContentRejection(reason string) {
	contentRejections.WithLabelValues(reason).Inc()
}
