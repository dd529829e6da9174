package repository

import (
	"context"

	"go-pos-ledger/internal/model"

	"gorm.io/gorm"
)

type SequenceRepository interface {
	WithTx(tx *gorm.DB) SequenceRepository
	// Increment bumps the counter for day. ok is false when no row exists yet.
	Increment(ctx context.Context, day string) (value int, ok bool, err error)
	Insert(ctx context.Context, day string, value int) error
}

type sequenceRepo struct {
	db *gorm.DB
}

func NewSequenceRepo(db *gorm.DB) SequenceRepository {
	return &sequenceRepo{db}
}

func (r *sequenceRepo) WithTx(tx *gorm.DB) SequenceRepository {
	return &sequenceRepo{tx}
}

func (r *sequenceRepo) Increment(ctx context.Context, day string) (int, bool, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&model.DailySequence{}).
		Where("day = ?", day).
		UpdateColumn("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}

	var seq model.DailySequence
	if err := db.First(&seq, "day = ?", day).Error; err != nil {
		return 0, false, err
	}
	return seq.Value, true, nil
}

func (r *sequenceRepo) Insert(ctx context.Context, day string, value int) error {
	return r.db.WithContext(ctx).Create(&model.DailySequence{Day: day, Value: value}).Error
}
