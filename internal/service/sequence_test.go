package service

import (
	"context"
	"os"
	"testing"
	"time"

	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func TestDBSequencerSeparatesDays(t *testing.T) {
	db := testutil.OpenDB(t)
	seq := NewDBSequencer(repository.NewSequenceRepo(db), repository.NewTransactionRepo(db))
	ctx := context.Background()
	day1 := time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Hour)

	next := func(day time.Time) int {
		var n int
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			n, err = seq.Next(ctx, tx, day)
			return err
		})
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		return n
	}

	if a, b := next(day1), next(day1); a != 1 || b != 2 {
		t.Fatalf("expected 1 then 2, got %d %d", a, b)
	}
	if n := next(day2); n != 1 {
		t.Fatalf("new day should restart at 1, got %d", n)
	}
}

// testRedis is a real server when POS_TEST_REDIS_ADDR is set, otherwise an
// in-process miniredis.
func testRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	var mr *miniredis.Miniredis
	addr := os.Getenv("POS_TEST_REDIS_ADDR")
	if addr == "" {
		mr = miniredis.RunT(t)
		addr = mr.Addr()
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	return rdb, mr
}

func TestRedisSequencer(t *testing.T) {
	rdb, _ := testRedis(t)
	ctx := context.Background()

	db := testutil.OpenDB(t)
	cashier := testutil.SeedUser(t, db, model.RoleCashier)
	day := time.Date(2099, 12, 31, 12, 0, 0, 0, time.UTC)
	key := redisSequenceKey(day)
	rdb.Del(ctx, key)
	t.Cleanup(func() { rdb.Del(context.Background(), key) })

	// A number already stored for the day, e.g. issued before a Redis flush.
	stored := &model.Transaction{
		TransactionNumber: model.FormatTransactionNumber(day, 4),
		PaymentMethod:     model.PayCash,
		PaymentStatus:     model.PaymentPaid,
		CashierID:         cashier.ID,
		Status:            model.TxCompleted,
	}
	if err := db.Create(stored).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	seq := NewRedisSequencer(rdb, repository.NewTransactionRepo(db))
	first, err := seq.Next(ctx, db, day)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	second, err := seq.Next(ctx, db, day)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if first != 5 || second != 6 {
		t.Fatalf("expected 5 then 6, got %d %d", first, second)
	}
	if ttl := rdb.TTL(ctx, key).Val(); ttl <= 0 || ttl > redisSequenceTTL {
		t.Fatalf("expected key to expire, ttl %s", ttl)
	}
}

func TestRedisSequencerRestoresMissingTTL(t *testing.T) {
	rdb, mr := testRedis(t)
	ctx := context.Background()
	db := testutil.OpenDB(t)
	day := time.Date(2099, 11, 30, 9, 0, 0, 0, time.UTC)
	key := redisSequenceKey(day)
	t.Cleanup(func() { rdb.Del(context.Background(), key) })

	// A counter left behind without an expiry.
	if err := rdb.Set(ctx, key, 7, 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}

	seq := NewRedisSequencer(rdb, repository.NewTransactionRepo(db))
	n, err := seq.Next(ctx, db, day)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if n != 8 {
		t.Fatalf("expected 8, got %d", n)
	}
	if ttl := rdb.TTL(ctx, key).Val(); ttl <= 0 || ttl > redisSequenceTTL {
		t.Fatalf("expected the key to expire again, ttl %s", ttl)
	}

	if mr != nil {
		mr.FastForward(redisSequenceTTL + time.Minute)
		if mr.Exists(key) {
			t.Fatalf("expected the key gone after its ttl")
		}
	}
}
