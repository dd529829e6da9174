package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/pkg/apperror"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Sequencer hands out the per-day transaction counter. tx is the database
// transaction the number will be inserted in.
type Sequencer interface {
	Next(ctx context.Context, tx *gorm.DB, day time.Time) (int, error)
}

// lastIssued parses the highest counter already stored for day, 0 if none.
func lastIssued(ctx context.Context, trxRepo repository.TransactionRepository, day time.Time) (int, error) {
	prefix := model.TransactionNumberPrefix(day)
	last, err := trxRepo.LastNumberWithPrefix(ctx, prefix)
	if err != nil || last == "" {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimPrefix(last, prefix+"-"))
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// DBSequencer keeps one counter row per day. The row update takes a row lock
// that is held until the caller's transaction ends, so concurrent sales on
// the same day are numbered one after the other.
type DBSequencer struct {
	seqRepo repository.SequenceRepository
	trxRepo repository.TransactionRepository
}

func NewDBSequencer(seqRepo repository.SequenceRepository, trxRepo repository.TransactionRepository) *DBSequencer {
	return &DBSequencer{seqRepo: seqRepo, trxRepo: trxRepo}
}

func (s *DBSequencer) Next(ctx context.Context, tx *gorm.DB, day time.Time) (int, error) {
	key := day.Format("20060102")
	seqs := s.seqRepo.WithTx(tx)

	value, ok, err := seqs.Increment(ctx, key)
	if err != nil {
		return 0, err
	}
	if ok {
		return value, nil
	}

	// First sale of the day: continue after anything already stored.
	last, err := lastIssued(ctx, s.trxRepo.WithTx(tx), day)
	if err != nil {
		return 0, err
	}
	next := last + 1
	if err := seqs.Insert(ctx, key, next); err != nil {
		if repository.IsDuplicate(err) {
			return 0, apperror.SequenceConflict(model.FormatTransactionNumber(day, next), err)
		}
		return 0, err
	}
	return next, nil
}

const redisSequenceTTL = 48 * time.Hour

// RedisSequencer uses INCR on a per-day key. It is shared by every API
// instance pointed at the same Redis.
type RedisSequencer struct {
	rdb     redis.UniversalClient
	trxRepo repository.TransactionRepository
}

func NewRedisSequencer(rdb redis.UniversalClient, trxRepo repository.TransactionRepository) *RedisSequencer {
	return &RedisSequencer{rdb: rdb, trxRepo: trxRepo}
}

func redisSequenceKey(day time.Time) string {
	return "trx:seq:" + day.Format("20060102")
}

// Next increments and refreshes the day key's TTL in one MULTI, so a key can
// never be left without an expiry.
func (s *RedisSequencer) Next(ctx context.Context, tx *gorm.DB, day time.Time) (int, error) {
	key := redisSequenceKey(day)
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, redisSequenceTTL)
		return nil
	})
	if err != nil {
		return 0, apperror.Wrap(apperror.KindInternal, err, "sequence counter unavailable")
	}
	n := incr.Val()
	if n != 1 {
		return int(n), nil
	}

	// Fresh key, either a new day or a flushed Redis.
	last, err := lastIssued(ctx, s.trxRepo.WithTx(tx), day)
	if err != nil {
		return 0, err
	}
	if last > 0 {
		n, err = s.rdb.IncrBy(ctx, key, int64(last)).Result()
		if err != nil {
			return 0, apperror.Wrap(apperror.KindInternal, err, "sequence counter unavailable")
		}
	}
	return int(n), nil
}
