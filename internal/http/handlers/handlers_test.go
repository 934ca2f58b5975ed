package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/wa-compliance/internal/domain"
	"github.com/tbourn/wa-compliance/internal/http/middleware"
	"github.com/tbourn/wa-compliance/internal/policy"
	"github.com/tbourn/wa-compliance/internal/services"
)

const testPhone = "+56999999999"

var errStore = fmt.Errorf("%w: %w", services.ErrStorageUnavailable, errors.New("db down"))

// ---------- stubs ----------

type stubCompliance struct {
	recordConsent func(context.Context, int64, string, string, map[string]any) (*domain.ConsentRecord, error)
	revoke        func(context.Context, int64, string, string) (bool, error)
	optOut        func(context.Context, int64, string, string, map[string]any) (services.OptOutResult, error)
	interaction   func(context.Context, services.InteractionInput) (services.InteractionOutcome, error)
	checkSend     func(context.Context, services.SendRequest) (services.Decision, error)
}

func (s *stubCompliance) RecordConsent(ctx context.Context, cid int64, phone, method string, md map[string]any) (*domain.ConsentRecord, error) {
	if s.recordConsent != nil {
		return s.recordConsent(ctx, cid, phone, method, md)
	}
	return &domain.ConsentRecord{ID: "c1", CompanyID: cid, PhoneNumber: phone, Method: method}, nil
}

func (s *stubCompliance) RevokeConsent(ctx context.Context, cid int64, phone, reason string) (bool, error) {
	if s.revoke != nil {
		return s.revoke(ctx, cid, phone, reason)
	}
	return true, nil
}

func (s *stubCompliance) HandleOptOut(ctx context.Context, cid int64, phone, kw string, md map[string]any) (services.OptOutResult, error) {
	if s.optOut != nil {
		return s.optOut(ctx, cid, phone, kw, md)
	}
	return services.OptOutResult{Success: true, Recognized: true, ConsentRevoked: true, Keyword: kw}, nil
}

func (s *stubCompliance) RecordUserInteraction(ctx context.Context, in services.InteractionInput) (services.InteractionOutcome, error) {
	if s.interaction != nil {
		return s.interaction(ctx, in)
	}
	return services.InteractionOutcome{Interaction: &domain.InteractionRecord{ID: "i1", CompanyID: in.CompanyID}}, nil
}

func (s *stubCompliance) CheckSend(ctx context.Context, req services.SendRequest) (services.Decision, error) {
	if s.checkSend != nil {
		return s.checkSend(ctx, req)
	}
	return services.Decision{Allowed: true}, nil
}

type stubConsents struct {
	active bool
	latest *domain.ConsentRecord
	err    error
}

func (s stubConsents) HasActive(context.Context, int64, string) (bool, error) { return s.active, s.err }
func (s stubConsents) Latest(context.Context, int64, string) (*domain.ConsentRecord, error) {
	return s.latest, s.err
}

type stubWindow struct {
	status   services.WindowStatus
	err      error
	gotPhone string
}

func (s *stubWindow) CheckWindow(_ context.Context, _ int64, phone string) (services.WindowStatus, error) {
	s.gotPhone = phone
	return s.status, s.err
}

type stubQuality struct {
	snap   *domain.QualityScoreSnapshot
	limits services.LimitsResult
	err    error
}

func (s stubQuality) Metrics(context.Context, int64) (*domain.QualityScoreSnapshot, error) {
	return s.snap, s.err
}
func (s stubQuality) CheckLimits(context.Context, int64) (services.LimitsResult, error) {
	return s.limits, s.err
}

type stubEvents struct {
	items    []domain.ComplianceEvent
	total    int64
	statsN   int64
	statsAt  *time.Time
	statsErr error
	listErr  error
	status   *services.ComplianceStatus
	gotType  string
	gotPage  [2]int
	listHits int
}

func (s *stubEvents) List(_ context.Context, _ int64, eventType string, page, pageSize int) ([]domain.ComplianceEvent, int64, error) {
	s.listHits++
	s.gotType = eventType
	s.gotPage = [2]int{page, pageSize}
	return s.items, s.total, s.listErr
}
func (s *stubEvents) Stats(context.Context, int64) (int64, *time.Time, error) {
	return s.statsN, s.statsAt, s.statsErr
}
func (s *stubEvents) Status(context.Context, int64) (*services.ComplianceStatus, error) {
	return s.status, s.listErr
}

// ---------- router helpers ----------

func newTestRouter(s Services) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if s.Compliance == nil {
		s.Compliance = &stubCompliance{}
	}
	if s.Consents == nil {
		s.Consents = stubConsents{}
	}
	if s.Window == nil {
		s.Window = &stubWindow{}
	}
	if s.Validator == nil {
		s.Validator = services.MustValidator(policy.Default().Content)
	}
	if s.Quality == nil {
		s.Quality = stubQuality{}
	}
	if s.Events == nil {
		s.Events = &stubEvents{}
	}
	h := New(s)

	r := gin.New()
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.POST("/validate", h.Validate)
	co := r.Group("/companies/:companyID")
	co.POST("/consents", h.RecordConsent)
	co.GET("/consents/:phone", h.GetConsent)
	co.DELETE("/consents/:phone", h.RevokeConsent)
	co.POST("/opt-outs", h.OptOut)
	co.POST("/interactions", h.RecordInteraction)
	co.GET("/window/:phone", h.CheckWindow)
	co.POST("/checks", h.CheckSend)
	co.GET("/quality", h.Quality)
	co.GET("/limits", h.Limits)
	co.GET("/status", h.Status)
	co.GET("/events", h.ListEvents)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body=%s)", v, err, w.Body.String())
	}
	return v
}

// ---------- tests ----------

func TestCompanyID_Invalid(t *testing.T) {
	r := newTestRouter(Services{})
	for _, p := range []string{"/companies/0/quality", "/companies/-1/quality", "/companies/acme/quality"} {
		w := do(t, r, http.MethodGet, p, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d", p, w.Code)
		}
		if er := decode[ErrorResponse](t, w); er.Code != ErrCodeInvalidCompany {
			t.Fatalf("%s: code %q", p, er.Code)
		}
	}
}

func TestRecordConsent(t *testing.T) {
	var got struct {
		cid           int64
		phone, method string
		md            map[string]any
	}
	comp := &stubCompliance{recordConsent: func(_ context.Context, cid int64, phone, method string, md map[string]any) (*domain.ConsentRecord, error) {
		got.cid, got.phone, got.method, got.md = cid, phone, method, md
		if method == "carrier_pigeon" {
			return nil, services.ErrInvalidMethod
		}
		return &domain.ConsentRecord{ID: "c1", CompanyID: cid, PhoneNumber: phone, Method: method}, nil
	}}
	r := newTestRouter(Services{Compliance: comp})

	w := do(t, r, http.MethodPost, "/companies/1/consents", RecordConsentRequest{
		Phone: testPhone, Method: " web_form ", Metadata: map[string]any{"source": "landing"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d body=%s", w.Code, w.Body.String())
	}
	if got.cid != 1 || got.phone != testPhone || got.method != "web_form" || got.md["source"] != "landing" {
		t.Fatalf("service args: %+v", got)
	}
	if rec := decode[domain.ConsentRecord](t, w); rec.ID != "c1" {
		t.Fatalf("body: %+v", rec)
	}

	if w := do(t, r, http.MethodPost, "/companies/1/consents", `{"phone":"`+testPhone+`"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing method: status %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/companies/1/consents", `{bad json`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status %d", w.Code)
	}
	w = do(t, r, http.MethodPost, "/companies/1/consents", RecordConsentRequest{Phone: testPhone, Method: "carrier_pigeon"})
	if w.Code != http.StatusBadRequest || decode[ErrorResponse](t, w).Code != ErrCodeInvalidMethod {
		t.Fatalf("invalid method: status %d body=%s", w.Code, w.Body.String())
	}
}

func TestGetConsent(t *testing.T) {
	granted := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRouter(Services{Consents: stubConsents{
		active: true,
		latest: &domain.ConsentRecord{ID: "c1", PhoneNumber: testPhone, GrantedAt: granted},
	}})

	w := do(t, r, http.MethodGet, "/companies/1/consents/"+testPhone, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	resp := decode[ConsentStatusResponse](t, w)
	if !resp.Active || resp.PhoneNumber != testPhone || resp.Latest == nil || resp.Latest.ID != "c1" {
		t.Fatalf("body: %+v", resp)
	}

	w = do(t, r, http.MethodGet, "/companies/1/consents/not-a-phone", nil)
	if w.Code != http.StatusBadRequest || decode[ErrorResponse](t, w).Code != ErrCodeInvalidPhone {
		t.Fatalf("invalid phone: %d %s", w.Code, w.Body.String())
	}

	r = newTestRouter(Services{Consents: stubConsents{err: errStore}})
	if w := do(t, r, http.MethodGet, "/companies/1/consents/"+testPhone, nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("storage failure: status %d", w.Code)
	}
}

func TestRevokeConsent(t *testing.T) {
	var gotReason string
	comp := &stubCompliance{revoke: func(_ context.Context, _ int64, _ string, reason string) (bool, error) {
		gotReason = reason
		return false, nil
	}}
	r := newTestRouter(Services{Compliance: comp})

	w := do(t, r, http.MethodDelete, "/companies/3/consents/"+testPhone+"?reason=gdpr_erasure", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if decode[RevokeConsentResponse](t, w).Revoked || gotReason != "gdpr_erasure" {
		t.Fatalf("unexpected result, reason=%q", gotReason)
	}
}

func TestOptOut(t *testing.T) {
	r := newTestRouter(Services{})
	w := do(t, r, http.MethodPost, "/companies/1/opt-outs", OptOutRequest{Phone: testPhone, Keyword: "STOP"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if res := decode[services.OptOutResult](t, w); !res.Success || !res.ConsentRevoked {
		t.Fatalf("body: %+v", res)
	}

	r = newTestRouter(Services{Compliance: &stubCompliance{optOut: func(context.Context, int64, string, string, map[string]any) (services.OptOutResult, error) {
		return services.OptOutResult{Recognized: true}, errStore
	}}})
	w = do(t, r, http.MethodPost, "/companies/1/opt-outs", OptOutRequest{Phone: testPhone, Keyword: "STOP"})
	if w.Code != http.StatusServiceUnavailable || decode[ErrorResponse](t, w).Code != ErrCodeStorageUnavailable {
		t.Fatalf("storage failure: %d %s", w.Code, w.Body.String())
	}
}

func TestRecordInteraction_CreatedAndReplayed(t *testing.T) {
	seen := map[string]bool{}
	comp := &stubCompliance{interaction: func(_ context.Context, in services.InteractionInput) (services.InteractionOutcome, error) {
		if in.Type == "bogus" {
			return services.InteractionOutcome{}, services.ErrInvalidInteractionType
		}
		replayed := in.IdempotencyKey != "" && seen[in.IdempotencyKey]
		seen[in.IdempotencyKey] = true
		return services.InteractionOutcome{
			Interaction: &domain.InteractionRecord{ID: "i-" + in.IdempotencyKey, CompanyID: in.CompanyID, InteractionType: in.Type},
			Replayed:    replayed,
		}, nil
	}}
	r := newTestRouter(Services{Compliance: comp})
	body := RecordInteractionRequest{Phone: testPhone, Type: domain.InteractionMessageReceived, Body: "Hola"}

	w := do(t, r, http.MethodPost, "/companies/1/interactions", body, middleware.HeaderIdempotencyKey, "wamid.1")
	if w.Code != http.StatusCreated || w.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("first delivery: %d headers=%v", w.Code, w.Header())
	}
	if out := decode[services.InteractionOutcome](t, w); out.Interaction == nil || out.Interaction.ID != "i-wamid.1" {
		t.Fatalf("body: %+v", out)
	}

	w = do(t, r, http.MethodPost, "/companies/1/interactions", body, middleware.HeaderIdempotencyKey, "wamid.1")
	if w.Code != http.StatusOK || w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("redelivery: %d headers=%v", w.Code, w.Header())
	}

	w = do(t, r, http.MethodPost, "/companies/1/interactions", RecordInteractionRequest{Phone: testPhone, Type: "bogus"})
	if w.Code != http.StatusBadRequest || decode[ErrorResponse](t, w).Code != ErrCodeInvalidInteractionType {
		t.Fatalf("bad type: %d %s", w.Code, w.Body.String())
	}

	if w := do(t, r, http.MethodPost, "/companies/1/interactions", body, middleware.HeaderIdempotencyKey, "bad key!"); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid key: %d", w.Code)
	}
}

func TestCheckWindow(t *testing.T) {
	hours := 3.5
	win := &stubWindow{status: services.WindowStatus{InWindow: true, HoursSinceInteraction: &hours}}
	r := newTestRouter(Services{Window: win})

	w := do(t, r, http.MethodGet, "/companies/1/window/"+testPhone, nil)
	if w.Code != http.StatusOK || win.gotPhone != testPhone {
		t.Fatalf("status %d phone=%q", w.Code, win.gotPhone)
	}
	ws := decode[services.WindowStatus](t, w)
	if !ws.InWindow || ws.HoursSinceInteraction == nil || *ws.HoursSinceInteraction != 3.5 {
		t.Fatalf("body: %+v", ws)
	}
}

func TestValidate(t *testing.T) {
	r := newTestRouter(Services{})

	w := do(t, r, http.MethodPost, "/validate", ValidateRequest{Text: "Mensaje de prueba válido"})
	if w.Code != http.StatusOK || !decode[services.ValidationResult](t, w).Valid {
		t.Fatalf("valid text: %d %s", w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodPost, "/validate", ValidateRequest{Text: "Hola!!! http://spam.com"})
	if res := decode[services.ValidationResult](t, w); res.Valid || res.Reason != services.ReasonSpamPattern {
		t.Fatalf("spam: %+v", res)
	}
	w = do(t, r, http.MethodPost, "/validate", ValidateRequest{Text: "", MessageType: "image"})
	if !decode[services.ValidationResult](t, w).Valid {
		t.Fatalf("empty media caption must be valid")
	}
}

func TestCheckSend(t *testing.T) {
	var got services.SendRequest
	comp := &stubCompliance{checkSend: func(_ context.Context, req services.SendRequest) (services.Decision, error) {
		got = req
		switch req.Text {
		case "down":
			return services.Decision{Reason: services.ReasonStorageUnavailable}, errStore
		case "late":
			return services.Decision{Reason: services.ReasonWindowExpired}, nil
		}
		return services.Decision{Allowed: true}, nil
	}}
	r := newTestRouter(Services{Compliance: comp})

	w := do(t, r, http.MethodPost, "/companies/4/checks", CheckSendRequest{Phone: testPhone, Text: "Hola", MessageType: "template"})
	if w.Code != http.StatusOK || !decode[services.Decision](t, w).Allowed {
		t.Fatalf("allowed: %d %s", w.Code, w.Body.String())
	}
	if got.CompanyID != 4 || got.Phone != testPhone || got.MessageType != "template" {
		t.Fatalf("service args: %+v", got)
	}

	w = do(t, r, http.MethodPost, "/companies/4/checks", CheckSendRequest{Phone: testPhone, Text: "late"})
	if d := decode[services.Decision](t, w); w.Code != http.StatusOK || d.Allowed || d.Reason != services.ReasonWindowExpired {
		t.Fatalf("denied must be 200 with reason: %d %+v", w.Code, d)
	}

	w = do(t, r, http.MethodPost, "/companies/4/checks", CheckSendRequest{Phone: testPhone, Text: "down"})
	if w.Code != http.StatusServiceUnavailable || decode[ErrorResponse](t, w).Code != ErrCodeStorageUnavailable {
		t.Fatalf("storage failure: %d %s", w.Code, w.Body.String())
	}

	if w := do(t, r, http.MethodPost, "/companies/4/checks", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing phone: %d", w.Code)
	}
}

func TestQualityLimitsStatus(t *testing.T) {
	r := newTestRouter(Services{
		Quality: stubQuality{
			snap:   &domain.QualityScoreSnapshot{CompanyID: 1, CurrentScore: 92.5},
			limits: services.LimitsResult{Success: true, Tier: "high", Limits: services.Limits{DailyLimit: 1000, HourlyLimit: 100}},
		},
		Events: &stubEvents{status: &services.ComplianceStatus{CompanyID: 1, OverallScore: 88, Health: services.HealthHealthy}},
	})

	w := do(t, r, http.MethodGet, "/companies/1/quality", nil)
	if w.Code != http.StatusOK || decode[domain.QualityScoreSnapshot](t, w).CurrentScore != 92.5 {
		t.Fatalf("quality: %d %s", w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodGet, "/companies/1/limits", nil)
	if lr := decode[services.LimitsResult](t, w); w.Code != http.StatusOK || lr.Tier != "high" || lr.Limits.HourlyLimit != 100 {
		t.Fatalf("limits: %d %+v", w.Code, lr)
	}
	w = do(t, r, http.MethodGet, "/companies/1/status", nil)
	if st := decode[services.ComplianceStatus](t, w); w.Code != http.StatusOK || st.Health != services.HealthHealthy {
		t.Fatalf("status: %d %+v", w.Code, st)
	}

	r = newTestRouter(Services{Quality: stubQuality{err: errStore}})
	for _, p := range []string{"/companies/1/quality", "/companies/1/limits"} {
		if w := do(t, r, http.MethodGet, p, nil); w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s storage failure: %d", p, w.Code)
		}
	}
}

func TestListEvents_PaginationAndETag(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ev := &stubEvents{
		items:   []domain.ComplianceEvent{{ID: "e2", EventType: domain.EventSendPermitted}, {ID: "e1", EventType: domain.EventSendPermitted}},
		total:   45,
		statsN:  45,
		statsAt: &at,
	}
	r := newTestRouter(Services{Events: ev})

	w := do(t, r, http.MethodGet, "/companies/1/events?event_type=send_permitted&page=2&page_size=20", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	resp := decode[ListEventsResponse](t, w)
	if len(resp.Events) != 2 || resp.Pagination.TotalPages != 3 || !resp.Pagination.HasNext || resp.Pagination.Page != 2 {
		t.Fatalf("body: %+v", resp)
	}
	if ev.gotType != "send_permitted" || ev.gotPage != [2]int{2, 20} {
		t.Fatalf("service args: type=%q page=%v", ev.gotType, ev.gotPage)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag")
	}

	hits := ev.listHits
	w = do(t, r, http.MethodGet, "/companies/1/events?event_type=send_permitted&page=2&page_size=20", nil, "If-None-Match", etag)
	if w.Code != http.StatusNotModified || ev.listHits != hits {
		t.Fatalf("conditional: status %d, list called again=%v", w.Code, ev.listHits != hits)
	}

	// A different page must not match the same validator.
	w = do(t, r, http.MethodGet, "/companies/1/events?page=1", nil, "If-None-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("different page: status %d", w.Code)
	}

	// New events change the tag.
	ev.statsN = 46
	w = do(t, r, http.MethodGet, "/companies/1/events?event_type=send_permitted&page=2&page_size=20", nil, "If-None-Match", etag)
	if w.Code != http.StatusOK || w.Header().Get("ETag") == etag {
		t.Fatalf("new events must invalidate the ETag")
	}
}

func TestListEvents_Errors(t *testing.T) {
	r := newTestRouter(Services{Events: &stubEvents{listErr: services.ErrInvalidEventType, statsErr: errStore}})
	w := do(t, r, http.MethodGet, "/companies/1/events?event_type=nope", nil)
	if w.Code != http.StatusBadRequest || w.Header().Get("ETag") != "" {
		t.Fatalf("invalid type: %d etag=%q", w.Code, w.Header().Get("ETag"))
	}

	r = newTestRouter(Services{Events: &stubEvents{listErr: errStore, statsErr: errStore}})
	if w := do(t, r, http.MethodGet, "/companies/1/events", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("storage failure: %d", w.Code)
	}
}
