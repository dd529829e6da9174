package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"go-pos-ledger/internal/event"
	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/internal/testutil"
	"go-pos-ledger/pkg/apperror"
	"go-pos-ledger/pkg/database"

	"gorm.io/gorm"
)

func openPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("POS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("set POS_TEST_DATABASE_URL to run postgres integration test")
	}
	db, err := database.ConnectDB(dsn, false)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := model.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// postgresSales seeds a cashier and the given products and removes
// everything the test wrote when it ends.
func postgresSales(t *testing.T, db *gorm.DB, products ...*model.Product) (TransactionService, event.Actor) {
	t.Helper()
	cashier := testutil.SeedUser(t, db, model.RoleCashier)
	t.Cleanup(func() {
		sub := db.Model(&model.Transaction{}).Select("id").Where("cashier_id = ?", cashier.ID)
		db.Where("transaction_id IN (?)", sub).Delete(&model.TransactionItem{})
		db.Unscoped().Where("cashier_id = ?", cashier.ID).Delete(&model.Transaction{})
		for _, p := range products {
			db.Unscoped().Delete(&model.Product{}, "id = ?", p.ID)
		}
		db.Unscoped().Delete(&model.User{}, "id = ?", cashier.ID)
	})

	trxRepo := repository.NewTransactionRepo(db)
	customerRepo := repository.NewCustomerRepo(db)
	svc := NewTransactionService(db,
		repository.NewProductRepo(db), trxRepo, customerRepo,
		NewDBSequencer(repository.NewSequenceRepo(db), trxRepo),
		NewAggregateUpdater(db, customerRepo, 3),
		event.Discard,
		TransactionOptions{MaxAttempts: 10, Location: time.UTC},
	)
	return svc, event.Actor{ID: cashier.ID, Name: cashier.Name}
}

func TestConcurrentSalesPostgres(t *testing.T) {
	db := openPostgres(t)
	p := testutil.SeedProduct(t, db, "Contended", "1.00", 10)
	svc, actor := postgresSales(t, db, p)

	const buyers = 25
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]bool{}
		refused int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			trx, err := svc.Create(context.Background(), &CreateTransactionRequest{
				Items:         []TransactionLine{{ProductID: p.ID, Quantity: 1}},
				PaymentMethod: model.PayCash,
			}, actor)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				numbers[trx.TransactionNumber] = true
			case apperror.IsKind(err, apperror.KindInsufficientStock):
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(numbers) != 10 || refused != buyers-10 {
		t.Fatalf("expected 10 unique sales and %d refusals, got %d and %d", buyers-10, len(numbers), refused)
	}
	if got := testutil.Stock(t, db, p.ID); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
}

func TestCrossedBasketsPostgres(t *testing.T) {
	db := openPostgres(t)
	x := testutil.SeedProduct(t, db, "Roti", "1.00", 100)
	y := testutil.SeedProduct(t, db, "Susu", "2.00", 100)
	svc, actor := postgresSales(t, db, x, y)

	const pairs = 20
	var wg sync.WaitGroup
	for i := 0; i < pairs; i++ {
		for _, basket := range [][]TransactionLine{
			{{ProductID: x.ID, Quantity: 1}, {ProductID: y.ID, Quantity: 1}},
			{{ProductID: y.ID, Quantity: 1}, {ProductID: x.ID, Quantity: 1}},
		} {
			wg.Add(1)
			go func(lines []TransactionLine) {
				defer wg.Done()
				_, err := svc.Create(context.Background(), &CreateTransactionRequest{
					Items:         lines,
					PaymentMethod: model.PayCash,
				}, actor)
				if err != nil {
					t.Errorf("crossed basket failed: %v", err)
				}
			}(basket)
		}
	}
	wg.Wait()

	if gx, gy := testutil.Stock(t, db, x.ID), testutil.Stock(t, db, y.ID); gx != 100-2*pairs || gy != 100-2*pairs {
		t.Fatalf("expected both stocks at %d, got %d and %d", 100-2*pairs, gx, gy)
	}
}
