package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/wa-compliance/internal/domain"
	"github.com/tbourn/wa-compliance/internal/policy"
)

// ---------- stubs ----------

type stubConsents struct {
	active    bool
	err       error
	revoked   bool
	revokeErr error
}

func (s *stubConsents) Record(ctx context.Context, companyID int64, phone, method string, metadata map[string]any) (*domain.ConsentRecord, error) {
	return &domain.ConsentRecord{ID: "c1", CompanyID: companyID, PhoneNumber: phone, Method: method}, s.err
}
func (s *stubConsents) HasActive(ctx context.Context, companyID int64, phone string) (bool, error) {
	return s.active, s.err
}
func (s *stubConsents) Revoke(ctx context.Context, companyID int64, phone, reason string) (bool, error) {
	return s.revoked, s.revokeErr
}

type stubInteractions struct {
	window WindowStatus
	err    error
}

func (s *stubInteractions) Record(ctx context.Context, companyID int64, phone, typ string, metadata map[string]any, key string) (*domain.InteractionRecord, bool, error) {
	return &domain.InteractionRecord{ID: "i1", CompanyID: companyID, PhoneNumber: phone, InteractionType: typ}, false, s.err
}
func (s *stubInteractions) CheckWindow(ctx context.Context, companyID int64, phone string) (WindowStatus, error) {
	return s.window, s.err
}

type stubLimits struct {
	res LimitsResult
	err error
}

func (s *stubLimits) CheckLimits(ctx context.Context, companyID int64) (LimitsResult, error) {
	return s.res, s.err
}

type recordingEvents struct {
	types []string
	last  map[string]any
	err   error
}

func (r *recordingEvents) Log(ctx context.Context, companyID int64, eventType string, details map[string]any) (*domain.ComplianceEvent, error) {
	r.types = append(r.types, eventType)
	r.last = details
	if r.err != nil {
		return nil, r.err
	}
	return &domain.ComplianceEvent{ID: "e1", CompanyID: companyID, EventType: eventType, Details: details}, nil
}

func stubService(c *stubConsents, i *stubInteractions, l *stubLimits, ev *recordingEvents) *ComplianceService {
	pol := policy.Default()
	return &ComplianceService{
		Consents:     c,
		Interactions: i,
		Validator:    MustValidator(pol.Content),
		Limits:       l,
		Events:       ev,
		Keywords:     pol.Keywords,
	}
}

func openWindow() WindowStatus {
	h := 0.5
	return WindowStatus{InWindow: true, HoursSinceInteraction: &h}
}

// ---------- end-to-end over the real stores ----------

func TestEndToEnd_AllGatesPass(t *testing.T) {
	e := newEngine(t, policy.Default())
	ctx := context.Background()

	if _, err := e.compliance.RecordConsent(ctx, 1, "+56999999999", domain.ConsentMethodTestFlow, map[string]any{"source": "test"}); err != nil {
		t.Fatalf("RecordConsent: %v", err)
	}
	if _, err := e.compliance.RecordUserInteraction(ctx, InteractionInput{
		CompanyID: 1, Phone: "+56999999999", Type: domain.InteractionMessageReceived, Body: "Hola",
	}); err != nil {
		t.Fatalf("RecordUserInteraction: %v", err)
	}

	if ok, err := e.consents.HasActive(ctx, 1, "+56999999999"); err != nil || !ok {
		t.Fatalf("hasActiveConsent = (%v, %v)", ok, err)
	}
	if w, err := e.interactions.CheckWindow(ctx, 1, "+56999999999"); err != nil || !w.InWindow {
		t.Fatalf("check24HourWindow = (%+v, %v)", w, err)
	}
	if v := e.compliance.Validator.Validate("Mensaje de prueba válido", "text"); !v.Valid {
		t.Fatalf("validate = %+v", v)
	}
	if lim, err := e.quality.CheckLimits(ctx, 1); err != nil || !lim.Success {
		t.Fatalf("checkQualityAndLimits = (%+v, %v)", lim, err)
	}

	d, err := e.compliance.CheckSend(ctx, SendRequest{CompanyID: 1, Phone: "+56999999999", Text: "Mensaje de prueba válido", MessageType: "text"})
	if err != nil || !d.Allowed || d.Reason != "" {
		t.Fatalf("CheckSend = (%+v, %v)", d, err)
	}

	var types []string
	e.db.Model(&domain.ComplianceEvent{}).Order("event_type ASC").Pluck("event_type", &types)
	if strings.Join(types, ",") != "consent_recorded,send_permitted" {
		t.Fatalf("unexpected audit trail: %v", types)
	}
}

func TestHandleOptOut_IdempotentAndRevokes(t *testing.T) {
	e := newEngine(t, policy.Default())
	ctx := context.Background()

	if _, err := e.compliance.RecordConsent(ctx, 1, testPhone, domain.ConsentMethodWebForm, nil); err != nil {
		t.Fatalf("RecordConsent: %v", err)
	}

	res, err := e.compliance.HandleOptOut(ctx, 1, testPhone, "STOP", nil)
	if err != nil || !res.Success || !res.ConsentRevoked || !res.Recognized {
		t.Fatalf("first opt-out = (%+v, %v)", res, err)
	}
	if ok, _ := e.consents.HasActive(ctx, 1, testPhone); ok {
		t.Fatalf("consent must be inactive after opt-out")
	}

	res, err = e.compliance.HandleOptOut(ctx, 1, testPhone, "stop", nil)
	if err != nil || !res.Success || res.ConsentRevoked {
		t.Fatalf("second opt-out = (%+v, %v), want success without revocation", res, err)
	}

	var n int64
	e.db.Model(&domain.ComplianceEvent{}).Where("event_type = ?", domain.EventConsentRevoked).Count(&n)
	if n != 2 {
		t.Fatalf("every recognized opt-out is journaled, got %d", n)
	}
}

func TestHandleOptOut_UnrecognizedKeyword(t *testing.T) {
	ev := &recordingEvents{}
	c := &stubConsents{revoked: true}
	s := stubService(c, &stubInteractions{}, &stubLimits{}, ev)

	res, err := s.HandleOptOut(context.Background(), 1, testPhone, "hola", nil)
	if err != nil || res.Success || res.Recognized || res.ConsentRevoked {
		t.Fatalf("unexpected result: (%+v, %v)", res, err)
	}
	if len(ev.types) != 0 {
		t.Fatalf("non-keyword must have no side effects, got events %v", ev.types)
	}
}

func TestHandleOptOut_StorageFailure(t *testing.T) {
	boom := storageErr(errors.New("db down"))
	s := stubService(&stubConsents{revokeErr: boom}, &stubInteractions{}, &stubLimits{}, &recordingEvents{})
	res, err := s.HandleOptOut(context.Background(), 1, testPhone, "BAJA", nil)
	if !errors.Is(err, ErrStorageUnavailable) || res.Success || !res.Recognized {
		t.Fatalf("expected storage failure, got (%+v, %v)", res, err)
	}
}

func TestRecordUserInteraction_KeywordSideEffects(t *testing.T) {
	e := newEngine(t, policy.Default())
	ctx := context.Background()

	// Opt-in keyword grants consent via WhatsApp.
	out, err := e.compliance.RecordUserInteraction(ctx, InteractionInput{CompanyID: 1, Phone: testPhone, Type: domain.InteractionMessageReceived, Body: "Alta"})
	if err != nil || !out.ConsentRecorded {
		t.Fatalf("opt-in: (%+v, %v)", out, err)
	}
	rec, _ := e.consents.Latest(ctx, 1, testPhone)
	if rec == nil || rec.Method != domain.ConsentMethodWhatsAppMessage {
		t.Fatalf("expected whatsapp_message consent, got %+v", rec)
	}
	if out.Interaction.Metadata["excerpt"] != "Alta" {
		t.Fatalf("expected excerpt metadata, got %+v", out.Interaction.Metadata)
	}

	// Repeating the keyword while consented records nothing new.
	out, _ = e.compliance.RecordUserInteraction(ctx, InteractionInput{CompanyID: 1, Phone: testPhone, Type: domain.InteractionMessageReceived, Body: "ALTA"})
	if out.ConsentRecorded {
		t.Fatalf("opt-in with active consent must be a no-op")
	}

	// Opt-out keyword revokes.
	out, err = e.compliance.RecordUserInteraction(ctx, InteractionInput{CompanyID: 1, Phone: testPhone, Type: domain.InteractionMessageReceived, Body: "stop"})
	if err != nil || out.OptOut == nil || !out.OptOut.ConsentRevoked {
		t.Fatalf("opt-out: (%+v, %v)", out, err)
	}
	if ok, _ := e.consents.HasActive(ctx, 1, testPhone); ok {
		t.Fatalf("consent must be revoked")
	}

	// The window is still open: opt-out does not affect it.
	if w, _ := e.interactions.CheckWindow(ctx, 1, testPhone); !w.InWindow {
		t.Fatalf("window should remain open after opt-out")
	}
}

func TestRecordUserInteraction_ReplayHasNoSideEffects(t *testing.T) {
	e := newEngine(t, policy.Default())
	ctx := context.Background()
	in := InteractionInput{CompanyID: 1, Phone: testPhone, Type: domain.InteractionMessageReceived, Body: "START", IdempotencyKey: "wamid.1"}

	out, err := e.compliance.RecordUserInteraction(ctx, in)
	if err != nil || !out.ConsentRecorded || out.Replayed {
		t.Fatalf("first delivery: (%+v, %v)", out, err)
	}
	if _, err := e.compliance.RevokeConsent(ctx, 1, testPhone, "test"); err != nil {
		t.Fatalf("RevokeConsent: %v", err)
	}
	out, err = e.compliance.RecordUserInteraction(ctx, in)
	if err != nil || !out.Replayed || out.ConsentRecorded {
		t.Fatalf("replayed delivery must not re-grant consent: (%+v, %v)", out, err)
	}
}

// ---------- CheckSend gates ----------

func TestCheckSend_Gates(t *testing.T) {
	expired := WindowStatus{RequiresTemplate: true}
	okLimits := LimitsResult{Success: true, Tier: "high", Limits: Limits{DailyLimit: 1000, HourlyLimit: 100}}

	cases := []struct {
		name      string
		consents  *stubConsents
		window    WindowStatus
		limits    LimitsResult
		text      string
		msgType   string
		allowed   bool
		reason    string
		eventType string
	}{
		{"no consent", &stubConsents{}, openWindow(), okLimits, "Hola", "text", false, ReasonNoConsent, domain.EventConsentMissing},
		{"window expired", &stubConsents{active: true}, expired, okLimits, "Hola", "text", false, ReasonWindowExpired, domain.EventWindowViolation},
		{"template outside window", &stubConsents{active: true}, expired, okLimits, "Tu pedido 123 fue enviado", "template", true, "", domain.EventSendPermitted},
		{"empty template body", &stubConsents{active: true}, expired, okLimits, "", "template", true, "", domain.EventSendPermitted},
		{"spam", &stubConsents{active: true}, openWindow(), okLimits, "Hola!!! http://spam.com", "text", false, ReasonSpamPattern, domain.EventContentRejected},
		{"prohibited", &stubConsents{active: true}, openWindow(), okLimits, "Tarjeta de crédito sin intereses", "text", false, ReasonProhibitedContent, domain.EventContentRejected},
		{"limit", &stubConsents{active: true}, openWindow(), LimitsResult{Success: true, Tier: "low", Exceeded: true}, "Hola", "text", false, ReasonLimitExceeded, domain.EventLimitExceeded},
		{"cold start allowed", &stubConsents{active: true}, openWindow(), LimitsResult{Success: false, Reason: ReasonNoHistory, Tier: "low"}, "Hola", "", true, "", domain.EventSendPermitted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := &recordingEvents{}
			s := stubService(tc.consents, &stubInteractions{window: tc.window}, &stubLimits{res: tc.limits}, ev)
			d, err := s.CheckSend(context.Background(), SendRequest{CompanyID: 1, Phone: testPhone, Text: tc.text, MessageType: tc.msgType})
			if err != nil {
				t.Fatalf("CheckSend err: %v", err)
			}
			if d.Allowed != tc.allowed || d.Reason != tc.reason {
				t.Fatalf("decision = %+v, want allowed=%v reason=%q", d, tc.allowed, tc.reason)
			}
			if len(ev.types) != 1 || ev.types[0] != tc.eventType {
				t.Fatalf("journaled %v, want [%s]", ev.types, tc.eventType)
			}
			if ev.last["phone_number"] != testPhone {
				t.Fatalf("event details missing phone: %+v", ev.last)
			}
		})
	}
}

func TestCheckSend_FailsClosedOnStorageError(t *testing.T) {
	boom := storageErr(errors.New("connection refused"))

	cases := map[string]*ComplianceService{
		"consent": stubService(&stubConsents{err: boom}, &stubInteractions{window: openWindow()}, &stubLimits{}, &recordingEvents{}),
		"window":  stubService(&stubConsents{active: true}, &stubInteractions{err: boom}, &stubLimits{}, &recordingEvents{}),
		"limits":  stubService(&stubConsents{active: true}, &stubInteractions{window: openWindow()}, &stubLimits{err: boom}, &recordingEvents{}),
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			d, err := s.CheckSend(context.Background(), SendRequest{CompanyID: 1, Phone: testPhone, Text: "Hola"})
			if !errors.Is(err, ErrStorageUnavailable) {
				t.Fatalf("expected ErrStorageUnavailable, got %v", err)
			}
			if d.Allowed || d.Reason != ReasonStorageUnavailable {
				t.Fatalf("expected fail-closed decision, got %+v", d)
			}
			ev := s.Events.(*recordingEvents)
			if len(ev.types) != 1 || ev.types[0] != domain.EventCheckFailed {
				t.Fatalf("journaled %v", ev.types)
			}
		})
	}
}

func TestCheckSend_UnauditedSendIsDenied(t *testing.T) {
	ev := &recordingEvents{err: storageErr(errors.New("events table locked"))}
	s := stubService(&stubConsents{active: true}, &stubInteractions{window: openWindow()}, &stubLimits{res: LimitsResult{Success: true}}, ev)

	d, err := s.CheckSend(context.Background(), SendRequest{CompanyID: 1, Phone: testPhone, Text: "Hola"})
	if !errors.Is(err, ErrStorageUnavailable) || d.Allowed || d.Reason != ReasonStorageUnavailable {
		t.Fatalf("expected downgrade to storage_unavailable, got (%+v, %v)", d, err)
	}

	// A denial stays a denial without error when only the audit write fails.
	s = stubService(&stubConsents{}, &stubInteractions{}, &stubLimits{}, ev)
	d, err = s.CheckSend(context.Background(), SendRequest{CompanyID: 1, Phone: testPhone, Text: "Hola"})
	if err != nil || d.Reason != ReasonNoConsent {
		t.Fatalf("expected plain denial, got (%+v, %v)", d, err)
	}
}

func TestCheckSend_InvalidInput(t *testing.T) {
	s := stubService(&stubConsents{}, &stubInteractions{}, &stubLimits{}, &recordingEvents{})
	if _, err := s.CheckSend(context.Background(), SendRequest{CompanyID: 0, Phone: testPhone}); !errors.Is(err, ErrInvalidCompany) {
		t.Fatalf("expected ErrInvalidCompany, got %v", err)
	}
	if _, err := s.CheckSend(context.Background(), SendRequest{CompanyID: 1, Phone: "x"}); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
}

func TestCheckSend_RealStores_LimitAndWindow(t *testing.T) {
	pol := policy.Default()
	pol.Tiers = []policy.Tier{{Name: "tiny", MinScore: 0, DailyLimit: 2, HourlyLimit: 1}}
	e := newEngine(t, pol)
	ctx := context.Background()

	if _, err := e.compliance.RecordConsent(ctx, 1, testPhone, domain.ConsentMethodManual, nil); err != nil {
		t.Fatalf("RecordConsent: %v", err)
	}
	req := SendRequest{CompanyID: 1, Phone: testPhone, Text: "Hola, tu cita es mañana"}

	d, _ := e.compliance.CheckSend(ctx, req)
	if d.Reason != ReasonWindowExpired {
		t.Fatalf("expected window_expired without inbound, got %+v", d)
	}

	if _, err := e.compliance.RecordUserInteraction(ctx, InteractionInput{CompanyID: 1, Phone: testPhone, Type: domain.InteractionMessageReceived, Body: "Hola"}); err != nil {
		t.Fatalf("RecordUserInteraction: %v", err)
	}
	if d, _ = e.compliance.CheckSend(ctx, req); !d.Allowed {
		t.Fatalf("expected allowed, got %+v", d)
	}
	if _, err := e.compliance.RecordUserInteraction(ctx, InteractionInput{CompanyID: 1, Phone: testPhone, Type: domain.InteractionMessageSent}); err != nil {
		t.Fatalf("record sent: %v", err)
	}
	if d, _ = e.compliance.CheckSend(ctx, req); d.Reason != ReasonLimitExceeded {
		t.Fatalf("expected limit_exceeded, got %+v", d)
	}

	e.clock.Advance(25 * time.Hour)
	if d, _ = e.compliance.CheckSend(ctx, req); d.Reason != ReasonWindowExpired {
		t.Fatalf("expected window to expire before limits are checked, got %+v", d)
	}
}
