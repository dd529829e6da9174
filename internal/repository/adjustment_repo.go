package repository

import (
	"context"
	"time"

	"go-pos-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AdjustmentFilter struct {
	ProductID *uuid.UUID
	Type      model.AdjustmentType
	Start     *time.Time
	End       *time.Time
	Page      Page
}

type AdjustmentRepository interface {
	WithTx(tx *gorm.DB) AdjustmentRepository
	Create(ctx context.Context, adj *model.StockAdjustment) error
	List(ctx context.Context, f AdjustmentFilter) ([]model.StockAdjustment, int64, error)
}

type adjustmentRepo struct {
	db *gorm.DB
}

func NewAdjustmentRepo(db *gorm.DB) AdjustmentRepository {
	return &adjustmentRepo{db}
}

func (r *adjustmentRepo) WithTx(tx *gorm.DB) AdjustmentRepository {
	return &adjustmentRepo{tx}
}

func (r *adjustmentRepo) Create(ctx context.Context, adj *model.StockAdjustment) error {
	return r.db.WithContext(ctx).Create(adj).Error
}

func (r *adjustmentRepo) List(ctx context.Context, f AdjustmentFilter) ([]model.StockAdjustment, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.StockAdjustment{})
	if f.ProductID != nil {
		q = q.Where("product_id = ?", *f.ProductID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Start != nil {
		q = q.Where("created_at >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("created_at < ?", *f.End)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var adjustments []model.StockAdjustment
	err := q.Preload("Adjuster").
		Order("created_at DESC").
		Scopes(paginate(f.Page)).
		Find(&adjustments).Error
	return adjustments, total, err
}
