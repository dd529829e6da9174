package service

import (
	"context"
	"errors"
	"testing"

	"go-pos-ledger/internal/event"
	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/internal/testutil"
	"go-pos-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// flakyCustomers fails IncrementAggregates while failures is positive.
type flakyCustomers struct {
	repository.CustomerRepository
	failures *int
}

func (f flakyCustomers) WithTx(tx *gorm.DB) repository.CustomerRepository {
	return flakyCustomers{f.CustomerRepository.WithTx(tx), f.failures}
}

func (f flakyCustomers) IncrementAggregates(ctx context.Context, id uuid.UUID, purchases int, spent decimal.Decimal, points int64) error {
	if *f.failures > 0 {
		*f.failures--
		return errors.New("connection reset by peer")
	}
	return f.CustomerRepository.IncrementAggregates(ctx, id, purchases, spent, points)
}

func TestAggregateFailureIsQueuedAndReplayed(t *testing.T) {
	db := testutil.OpenDB(t)
	failures := 1
	repo := flakyCustomers{repository.NewCustomerRepo(db), &failures}
	u := NewAggregateUpdater(db, repo, 3)
	c := testutil.SeedCustomer(t, db, "Siti")

	u.Apply(context.Background(), AggregateDelta{
		CustomerID: c.ID, TransactionID: uuid.New(), Purchases: 1, Spent: dec("30.25"), Points: 30,
	})
	if n := countRows(t, db, &model.PendingAggregate{}); n != 1 {
		t.Fatalf("expected one queued delta, got %d", n)
	}

	applied, err := u.RetryPending(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if applied != 1 || countRows(t, db, &model.PendingAggregate{}) != 0 {
		t.Fatalf("expected queue drained, applied %d", applied)
	}
	got, err := repo.FindByID(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.TotalPurchases != 1 || !got.TotalSpent.Equal(dec("30.25")) || got.LoyaltyPoints != 30 {
		t.Fatalf("unexpected aggregates %d %s %d", got.TotalPurchases, got.TotalSpent, got.LoyaltyPoints)
	}

	// A second run has nothing to do and must not double count.
	if applied, _ := u.RetryPending(context.Background()); applied != 0 {
		t.Fatalf("expected nothing to replay, got %d", applied)
	}
}

func TestAggregateDroppedAfterMaxAttempts(t *testing.T) {
	db := testutil.OpenDB(t)
	failures := 100
	repo := flakyCustomers{repository.NewCustomerRepo(db), &failures}
	u := NewAggregateUpdater(db, repo, 3)
	c := testutil.SeedCustomer(t, db, "Agus")

	u.Apply(context.Background(), AggregateDelta{CustomerID: c.ID, TransactionID: uuid.New(), Purchases: 1, Spent: dec("1.00"), Points: 1})

	for i := 1; i <= 2; i++ {
		if _, err := u.RetryPending(context.Background()); err != nil {
			t.Fatalf("retry %d: %v", i, err)
		}
		var p model.PendingAggregate
		if err := db.First(&p).Error; err != nil {
			t.Fatalf("queued delta missing after %d retries: %v", i, err)
		}
		if p.Attempts != i {
			t.Fatalf("expected %d attempts, got %d", i, p.Attempts)
		}
	}
	if _, err := u.RetryPending(context.Background()); err != nil {
		t.Fatalf("final retry: %v", err)
	}
	if n := countRows(t, db, &model.PendingAggregate{}); n != 0 {
		t.Fatalf("expected delta dropped, %d left", n)
	}
}

func TestAggregateForMissingCustomerIsDropped(t *testing.T) {
	db := testutil.OpenDB(t)
	u := NewAggregateUpdater(db, repository.NewCustomerRepo(db), 3)

	u.Apply(context.Background(), AggregateDelta{CustomerID: uuid.New(), TransactionID: uuid.New(), Purchases: 1, Spent: dec("1.00")})
	if n := countRows(t, db, &model.PendingAggregate{}); n != 0 {
		t.Fatalf("nothing should be queued for a missing customer, got %d", n)
	}
}

func TestCustomerUpdateCannotTouchAggregates(t *testing.T) {
	f := newSalesFixture(t, nil)
	svc := NewCustomerService(f.customers, repository.NewTransactionRepo(f.db), f.events)
	p := testutil.SeedProduct(t, f.db, "Kue", "5.00", 10)

	c, err := svc.Create(context.Background(), &CustomerRequest{Name: "Rina", Email: "RINA@Example.com "}, f.actor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Email != "rina@example.com" {
		t.Fatalf("email not normalized: %q", c.Email)
	}
	if _, err := f.svc.Create(context.Background(), &CreateTransactionRequest{
		Items: []TransactionLine{{ProductID: p.ID, Quantity: 1}}, CustomerID: &c.ID, PaymentMethod: model.PayCash,
	}, f.actor); err != nil {
		t.Fatalf("sale: %v", err)
	}

	updated, err := svc.Update(context.Background(), c.ID, &UpdateCustomerRequest{Name: strPtr("Rina S")}, f.actor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Rina S" || updated.TotalPurchases != 1 || !updated.TotalSpent.Equal(dec("5.00")) {
		t.Fatalf("aggregates lost on update: %+v", updated)
	}

	history, total, err := svc.History(context.Background(), c.ID, repository.Page{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 1 || len(history) != 1 {
		t.Fatalf("expected one past sale, got %d", total)
	}
	if len(f.events.topic(event.TopicCustomerChanged)) != 2 {
		t.Fatalf("expected create and update events")
	}

	if _, err := svc.Get(context.Background(), uuid.New()); !apperror.IsKind(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func strPtr(s string) *string { return &s }

func TestCustomerUpdateOnlyTouchesSentFields(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewCustomerService(repository.NewCustomerRepo(db), repository.NewTransactionRepo(db), event.Discard)
	actor := event.Actor{ID: uuid.New(), Name: "kasir"}

	c, err := svc.Create(context.Background(), &CustomerRequest{
		Name: " Dewi ", Email: "dewi@pos.test", Phone: " 0812 ", Address: "Jl. Mawar 3",
	}, actor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Name != "Dewi" || c.Phone != "0812" {
		t.Fatalf("fields not trimmed: %q %q", c.Name, c.Phone)
	}

	updated, err := svc.Update(context.Background(), c.ID, &UpdateCustomerRequest{Name: strPtr("Dewi A")}, actor)
	if err != nil {
		t.Fatalf("update name: %v", err)
	}
	if updated.Email != "dewi@pos.test" || updated.Phone != "0812" || updated.Address != "Jl. Mawar 3" {
		t.Fatalf("unsent fields changed: %+v", updated)
	}

	updated, err = svc.Update(context.Background(), c.ID, &UpdateCustomerRequest{Email: strPtr(" DEWI@Mail.test ")}, actor)
	if err != nil {
		t.Fatalf("update email: %v", err)
	}
	if updated.Email != "dewi@mail.test" || updated.Name != "Dewi A" {
		t.Fatalf("unexpected customer after email update: %+v", updated)
	}

	// An explicit empty value clears the field.
	updated, err = svc.Update(context.Background(), c.ID, &UpdateCustomerRequest{Phone: strPtr("")}, actor)
	if err != nil {
		t.Fatalf("clear phone: %v", err)
	}
	if updated.Phone != "" || updated.Email != "dewi@mail.test" {
		t.Fatalf("unexpected customer after clearing phone: %+v", updated)
	}

	if _, err := svc.Update(context.Background(), c.ID, &UpdateCustomerRequest{Name: strPtr("  ")}, actor); !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected blank name to be rejected, got %v", err)
	}
	if _, err := svc.Update(context.Background(), c.ID, &UpdateCustomerRequest{Email: strPtr("not-an-email")}, actor); !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected bad email to be rejected, got %v", err)
	}
}
