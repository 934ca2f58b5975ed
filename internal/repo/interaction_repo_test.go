package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/wa-compliance/internal/domain"
)

func TestLastInboundAt(t *testing.T) {
	db := newTestDB(t, &domain.InteractionRecord{})
	ctx := context.Background()

	at, err := LastInboundAt(ctx, db, 1, "+1")
	if err != nil || at != nil {
		t.Fatalf("expected (nil, nil) with no history, got (%v, %v)", at, err)
	}

	t1 := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 5, 1, 11, 0, 0, 0, time.UTC)
	t3 := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	seed := []*domain.InteractionRecord{
		{CompanyID: 1, PhoneNumber: "+1", InteractionType: domain.InteractionMessageReceived, OccurredAt: t1},
		{CompanyID: 1, PhoneNumber: "+1", InteractionType: domain.InteractionMessageReceived, OccurredAt: t2},
		// Outbound rows never move the window.
		{CompanyID: 1, PhoneNumber: "+1", InteractionType: domain.InteractionMessageSent, OccurredAt: t3},
		{CompanyID: 2, PhoneNumber: "+1", InteractionType: domain.InteractionMessageReceived, OccurredAt: t3},
	}
	for _, r := range seed {
		if err := CreateInteraction(ctx, db, r); err != nil {
			t.Fatalf("CreateInteraction: %v", err)
		}
	}

	at, err = LastInboundAt(ctx, db, 1, "+1")
	if err != nil || at == nil || !at.Equal(t2) {
		t.Fatalf("expected %v, got (%v, %v)", t2, at, err)
	}
}

func TestCountInteractions(t *testing.T) {
	db := newTestDB(t, &domain.InteractionRecord{})
	ctx := context.Background()
	now := time.Now().UTC()

	types := []string{
		domain.InteractionMessageSent, domain.InteractionMessageSent, domain.InteractionDelivered,
		domain.InteractionFailed, domain.InteractionMessageReceived,
	}
	for _, typ := range types {
		if err := CreateInteraction(ctx, db, &domain.InteractionRecord{CompanyID: 3, PhoneNumber: "+1", InteractionType: typ, OccurredAt: now.Add(-time.Minute)}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	// Outside the window.
	if err := CreateInteraction(ctx, db, &domain.InteractionRecord{CompanyID: 3, PhoneNumber: "+1", InteractionType: domain.InteractionMessageSent, OccurredAt: now.Add(-48 * time.Hour)}); err != nil {
		t.Fatalf("seed old: %v", err)
	}

	n, err := CountInteractionsSince(ctx, db, 3, domain.InteractionMessageSent, now.Add(-time.Hour))
	if err != nil || n != 2 {
		t.Fatalf("expected 2 sent in last hour, got (%d, %v)", n, err)
	}

	byType, err := CountInteractionsByTypeSince(ctx, db, 3, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CountInteractionsByTypeSince: %v", err)
	}
	if byType[domain.InteractionMessageSent] != 2 || byType[domain.InteractionDelivered] != 1 ||
		byType[domain.InteractionFailed] != 1 || byType[domain.InteractionMessageReceived] != 1 {
		t.Fatalf("unexpected grouping: %v", byType)
	}

	any3, err := HasAnyInteraction(ctx, db, 3)
	if err != nil || !any3 {
		t.Fatalf("expected history for company 3, got (%v, %v)", any3, err)
	}
	any4, err := HasAnyInteraction(ctx, db, 4)
	if err != nil || any4 {
		t.Fatalf("expected no history for company 4, got (%v, %v)", any4, err)
	}
}

func TestGetInteraction(t *testing.T) {
	db := newTestDB(t, &domain.InteractionRecord{})
	ctx := context.Background()
	rec := &domain.InteractionRecord{CompanyID: 1, PhoneNumber: "+1", InteractionType: domain.InteractionRead}
	if err := CreateInteraction(ctx, db, rec); err != nil {
		t.Fatalf("CreateInteraction: %v", err)
	}
	if rec.ID == "" || rec.OccurredAt.IsZero() {
		t.Fatalf("expected defaults to be assigned: %+v", rec)
	}

	got, err := GetInteraction(ctx, db, 1, rec.ID)
	if err != nil || got.InteractionType != domain.InteractionRead {
		t.Fatalf("GetInteraction: (%+v, %v)", got, err)
	}
	if _, err := GetInteraction(ctx, db, 2, rec.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for other company, got %v", err)
	}
}

func TestInteractionRepo_Errors_NoTable(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if _, err := LastInboundAt(ctx, db, 1, "+1"); err == nil {
		t.Fatalf("expected error from LastInboundAt")
	}
	if _, err := CountInteractionsByTypeSince(ctx, db, 1, time.Now()); err == nil {
		t.Fatalf("expected error from CountInteractionsByTypeSince")
	}
}
