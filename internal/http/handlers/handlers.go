// Package handlers exposes the compliance engine over HTTP.
//
// Handlers are transport-thin: they bind and check input, call the services
// through the narrow contracts below, and translate results and errors into
// JSON. Every tenant-scoped route carries the company in the path
// (/companies/{companyID}/...).
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/wa-compliance/internal/domain"
	"github.com/tbourn/wa-compliance/internal/http/middleware"
	"github.com/tbourn/wa-compliance/internal/services"
)

//
// Service contracts (context-aware)
//

// ComplianceAPI is the orchestrator: every write and the pre-send check.
type ComplianceAPI interface {
	RecordConsent(ctx context.Context, companyID int64, phone, method string, metadata map[string]any) (*domain.ConsentRecord, error)
	RevokeConsent(ctx context.Context, companyID int64, phone, reason string) (bool, error)
	HandleOptOut(ctx context.Context, companyID int64, phone, keyword string, metadata map[string]any) (services.OptOutResult, error)
	RecordUserInteraction(ctx context.Context, in services.InteractionInput) (services.InteractionOutcome, error)
	CheckSend(ctx context.Context, req services.SendRequest) (services.Decision, error)
}

// ConsentReader answers consent lookups.
type ConsentReader interface {
	HasActive(ctx context.Context, companyID int64, phone string) (bool, error)
	Latest(ctx context.Context, companyID int64, phone string) (*domain.ConsentRecord, error)
}

// WindowChecker reports the customer-service window of a pair.
type WindowChecker interface {
	CheckWindow(ctx context.Context, companyID int64, phone string) (services.WindowStatus, error)
}

// QualityReader exposes the quality score and the send limits.
type QualityReader interface {
	Metrics(ctx context.Context, companyID int64) (*domain.QualityScoreSnapshot, error)
	CheckLimits(ctx context.Context, companyID int64) (services.LimitsResult, error)
}

// EventReader reads the audit trail and the roll-up status.
type EventReader interface {
	List(ctx context.Context, companyID int64, eventType string, page, pageSize int) ([]domain.ComplianceEvent, int64, error)
	Stats(ctx context.Context, companyID int64) (int64, *time.Time, error)
	Status(ctx context.Context, companyID int64) (*services.ComplianceStatus, error)
}

//
// Handler wiring
//

// Services groups the dependencies of Handlers.
type Services struct {
	Compliance ComplianceAPI
	Consents   ConsentReader
	Window     WindowChecker
	Validator  services.ContentValidator
	Quality    QualityReader
	Events     EventReader
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	compliance ComplianceAPI
	consents   ConsentReader
	window     WindowChecker
	validator  services.ContentValidator
	quality    QualityReader
	events     EventReader
}

// New constructs Handlers bound to the given services.
func New(s Services) *Handlers {
	return &Handlers{
		compliance: s.Compliance,
		consents:   s.Consents,
		window:     s.Window,
		validator:  s.Validator,
		quality:    s.Quality,
		events:     s.Events,
	}
}

// companyID reads the :companyID path parameter, failing the request with
// 400 when it is not a positive integer.
func companyID(c *gin.Context) (int64, bool) {
	id, ok := middleware.CompanyIDFromPath(c)
	if !ok {
		fail(c, http.StatusBadRequest, ErrCodeInvalidCompany, "company id must be a positive integer")
		return 0, false
	}
	return id, true
}
