package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-pos-ledger/internal/event"
	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/internal/testutil"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var saleDay = time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)

// capture is an in-memory publisher.
type capture struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *capture) Publish(e event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *capture) topic(topic string) []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []event.Event
	for _, e := range c.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// scriptedSequencer returns the given numbers in order, then repeats the last.
type scriptedSequencer struct {
	mu    sync.Mutex
	nums  []int
	calls int
}

func (s *scriptedSequencer) Next(ctx context.Context, tx *gorm.DB, day time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.nums) {
		i = len(s.nums) - 1
	}
	s.calls++
	return s.nums[i], nil
}

type salesFixture struct {
	db         *gorm.DB
	svc        TransactionService
	events     *capture
	cashier    *model.User
	actor      event.Actor
	aggregates *AggregateUpdater
	customers  repository.CustomerRepository
}

func newSalesFixture(t *testing.T, seq Sequencer) *salesFixture {
	t.Helper()
	db := testutil.OpenDB(t)
	productRepo := repository.NewProductRepo(db)
	trxRepo := repository.NewTransactionRepo(db)
	customerRepo := repository.NewCustomerRepo(db)
	if seq == nil {
		seq = NewDBSequencer(repository.NewSequenceRepo(db), trxRepo)
	}

	events := &capture{}
	aggregates := NewAggregateUpdater(db, customerRepo, 3)
	svc := NewTransactionService(db, productRepo, trxRepo, customerRepo, seq, aggregates, events, TransactionOptions{
		MaxAttempts: 3,
		Location:    time.UTC,
		Now:         func() time.Time { return saleDay },
	})

	cashier := testutil.SeedUser(t, db, model.RoleCashier)
	return &salesFixture{
		db:         db,
		svc:        svc,
		events:     events,
		cashier:    cashier,
		actor:      event.Actor{ID: cashier.ID, Name: cashier.Name},
		aggregates: aggregates,
		customers:  customerRepo,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func countRows(t *testing.T, db *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(m).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
