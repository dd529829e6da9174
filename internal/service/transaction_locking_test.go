package service

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/internal/testutil"
	"go-pos-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// lockingProducts records the order stock rows are written in and can fail
// the first writes with a Postgres deadlock.
type lockingProducts struct {
	repository.ProductRepository
	mu        *sync.Mutex
	order     *[]uuid.UUID
	deadlocks *int
}

func (l lockingProducts) WithTx(tx *gorm.DB) repository.ProductRepository {
	return lockingProducts{l.ProductRepository.WithTx(tx), l.mu, l.order, l.deadlocks}
}

func (l lockingProducts) AdjustStock(ctx context.Context, id uuid.UUID, delta, minResult int) (int, error) {
	l.mu.Lock()
	if *l.deadlocks > 0 {
		*l.deadlocks--
		l.mu.Unlock()
		return 0, &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	}
	*l.order = append(*l.order, id)
	l.mu.Unlock()
	return l.ProductRepository.AdjustStock(ctx, id, delta, minResult)
}

type lockingFixture struct {
	*salesFixture
	order     []uuid.UUID
	deadlocks int
}

func newLockingFixture(t *testing.T) *lockingFixture {
	t.Helper()
	f := &lockingFixture{salesFixture: newSalesFixture(t, nil)}
	products := lockingProducts{repository.NewProductRepo(f.db), &sync.Mutex{}, &f.order, &f.deadlocks}
	trxRepo := repository.NewTransactionRepo(f.db)
	f.svc = NewTransactionService(f.db, products, trxRepo, f.customers,
		NewDBSequencer(repository.NewSequenceRepo(f.db), trxRepo),
		f.aggregates, f.events,
		TransactionOptions{MaxAttempts: 3, Location: time.UTC, Now: func() time.Time { return saleDay }},
	)
	return f
}

// seedPair returns two products with first sorting after second by id.
func seedPair(t *testing.T, db *gorm.DB) (*model.Product, *model.Product) {
	t.Helper()
	a := testutil.SeedProduct(t, db, "Kopi", "3.00", 10)
	b := testutil.SeedProduct(t, db, "Gula", "2.00", 10)
	if bytes.Compare(a.ID[:], b.ID[:]) < 0 {
		return b, a
	}
	return a, b
}

func TestSaleWritesStockInProductOrder(t *testing.T) {
	f := newLockingFixture(t)
	high, low := seedPair(t, f.db)

	trx, err := f.svc.Create(context.Background(), &CreateTransactionRequest{
		Items: []TransactionLine{
			{ProductID: high.ID, Quantity: 1},
			{ProductID: low.ID, Quantity: 2},
		},
		PaymentMethod: model.PayCash,
	}, f.actor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(f.order) != 2 || f.order[0] != low.ID || f.order[1] != high.ID {
		t.Fatalf("expected stock written lowest id first, got %v", f.order)
	}
	if trx.Items[0].ProductID != high.ID || trx.Items[0].Position != 1 {
		t.Fatalf("expected lines kept in basket order, got %v at %d", trx.Items[0].ProductID, trx.Items[0].Position)
	}

	f.order = nil
	if _, err := f.svc.Cancel(context.Background(), trx.ID, f.actor); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(f.order) != 2 || f.order[0] != low.ID {
		t.Fatalf("expected restore lowest id first, got %v", f.order)
	}
}

func TestSaleRetriedAfterDeadlock(t *testing.T) {
	f := newLockingFixture(t)
	high, low := seedPair(t, f.db)
	f.deadlocks = 1

	trx, err := f.svc.Create(context.Background(), &CreateTransactionRequest{
		Items: []TransactionLine{
			{ProductID: high.ID, Quantity: 1},
			{ProductID: low.ID, Quantity: 1},
		},
		PaymentMethod: model.PayCash,
	}, f.actor)
	if err != nil {
		t.Fatalf("expected the sale to succeed on retry, got %v", err)
	}
	if trx.TransactionNumber != "TRX-20240131-0001" {
		t.Fatalf("unexpected number %s", trx.TransactionNumber)
	}
	if testutil.Stock(t, f.db, high.ID) != 9 || testutil.Stock(t, f.db, low.ID) != 9 {
		t.Fatalf("expected one unit deducted from each product")
	}
}

func TestSaleGivesUpAfterRepeatedDeadlocks(t *testing.T) {
	f := newLockingFixture(t)
	p := testutil.SeedProduct(t, f.db, "Teh", "1.50", 4)
	f.deadlocks = 100

	_, err := f.svc.Create(context.Background(), &CreateTransactionRequest{
		Items:         []TransactionLine{{ProductID: p.ID, Quantity: 1}},
		PaymentMethod: model.PayCash,
	}, f.actor)
	if !apperror.IsKind(err, apperror.KindBusy) {
		t.Fatalf("expected busy, got %v", err)
	}
	if f.deadlocks != 97 {
		t.Fatalf("expected 3 attempts, %d deadlocks left", f.deadlocks)
	}
	if got := testutil.Stock(t, f.db, p.ID); got != 4 {
		t.Fatalf("expected stock untouched, got %d", got)
	}
}
