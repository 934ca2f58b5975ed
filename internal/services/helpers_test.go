package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/wa-compliance/internal/domain"
	"github.com/tbourn/wa-compliance/internal/policy"
)

const (
	testCompany = int64(1)
	testPhone   = "+56999999999"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.ConsentRecord{},
		&domain.InteractionRecord{},
		&domain.ComplianceEvent{},
		&domain.WebhookIdempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeClock is a settable clock safe for concurrent reads.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// engine wires every service over one database and clock, the way the
// binary does.
type engine struct {
	db           *gorm.DB
	clock        *fakeClock
	consents     *ConsentService
	interactions *InteractionService
	quality      *QualityService
	events       *EventService
	compliance   *ComplianceService
}

func newEngine(t *testing.T, pol policy.Policy) *engine {
	t.Helper()
	db := newSvcDB(t)
	clk := newFakeClock()

	consents := &ConsentService{DB: db, Policy: pol, Now: clk.Now}
	interactions := &InteractionService{DB: db, Policy: pol, IdempotencyTTL: time.Hour, Now: clk.Now}
	quality := &QualityService{DB: db, Policy: pol, Now: clk.Now}
	events := &EventService{DB: db, Policy: pol, Quality: quality, Consents: consents, Now: clk.Now}
	return &engine{
		db:           db,
		clock:        clk,
		consents:     consents,
		interactions: interactions,
		quality:      quality,
		events:       events,
		compliance: &ComplianceService{
			Consents:     consents,
			Interactions: interactions,
			Validator:    MustValidator(pol.Content),
			Limits:       quality,
			Events:       events,
			Keywords:     pol.Keywords,
		},
	}
}

// failTable makes every query, create and update against table fail.
func failTable(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	inject := func(tx *gorm.DB) {
		if tx.Statement != nil && strings.Contains(tx.Statement.Table, table) {
			tx.AddError(errors.New("forced-" + table + "-error"))
		}
	}
	name := "force_err_" + table
	if err := db.Callback().Query().Before("gorm:query").Register(name+"_q", inject); err != nil {
		t.Fatalf("register query callback: %v", err)
	}
	if err := db.Callback().Create().Before("gorm:create").Register(name+"_c", inject); err != nil {
		t.Fatalf("register create callback: %v", err)
	}
	if err := db.Callback().Update().Before("gorm:update").Register(name+"_u", inject); err != nil {
		t.Fatalf("register update callback: %v", err)
	}
	if err := db.Callback().Row().Before("gorm:row").Register(name+"_r", inject); err != nil {
		t.Fatalf("register row callback: %v", err)
	}
}
