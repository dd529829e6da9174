package repository

import (
	"context"
	"time"

	"go-pos-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionFilter struct {
	Start      *time.Time
	End        *time.Time
	CashierID  *uuid.UUID
	CustomerID *uuid.UUID
	Status     model.TransactionStatus
	Page       Page
}

type TransactionRepository interface {
	WithTx(tx *gorm.DB) TransactionRepository
	Create(ctx context.Context, trx *model.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	FindByNumber(ctx context.Context, number string) (*model.Transaction, error)
	List(ctx context.Context, f TransactionFilter) ([]model.Transaction, int64, error)
	ListBetween(ctx context.Context, start, end time.Time) ([]model.Transaction, error)
	MarkCancelled(ctx context.Context, id, by uuid.UUID, at time.Time) (bool, error)
	LastNumberWithPrefix(ctx context.Context, prefix string) (string, error)
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func (r *transactionRepo) WithTx(tx *gorm.DB) TransactionRepository {
	return &transactionRepo{tx}
}

// Create inserts the header and its items in one statement batch.
func (r *transactionRepo) Create(ctx context.Context, trx *model.Transaction) error {
	return r.db.WithContext(ctx).Create(trx).Error
}

func itemsByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *transactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var trx model.Transaction
	err := r.db.WithContext(ctx).
		Preload("Items", itemsByPosition).
		Preload("Customer").
		Preload("Cashier").
		First(&trx, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &trx, nil
}

func (r *transactionRepo) FindByNumber(ctx context.Context, number string) (*model.Transaction, error) {
	var trx model.Transaction
	err := r.db.WithContext(ctx).
		Preload("Items", itemsByPosition).
		Preload("Customer").
		Preload("Cashier").
		First(&trx, "transaction_number = ?", number).Error
	if err != nil {
		return nil, err
	}
	return &trx, nil
}

func (r *transactionRepo) List(ctx context.Context, f TransactionFilter) ([]model.Transaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Transaction{})
	if f.Start != nil {
		q = q.Where("created_at >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("created_at < ?", *f.End)
	}
	if f.CashierID != nil {
		q = q.Where("cashier_id = ?", *f.CashierID)
	}
	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var trxs []model.Transaction
	err := q.Preload("Items", itemsByPosition).
		Preload("Customer").
		Preload("Cashier").
		Order("created_at DESC").
		Scopes(paginate(f.Page)).
		Find(&trxs).Error
	return trxs, total, err
}

// ListBetween returns every transaction in [start, end) oldest first, for exports.
func (r *transactionRepo) ListBetween(ctx context.Context, start, end time.Time) ([]model.Transaction, error) {
	var trxs []model.Transaction
	err := r.db.WithContext(ctx).
		Preload("Items", itemsByPosition).
		Preload("Customer").
		Preload("Cashier").
		Where("created_at >= ? AND created_at < ?", start, end).
		Order("created_at ASC").
		Find(&trxs).Error
	return trxs, err
}

// MarkCancelled flips completed to cancelled. It reports false when the row
// was not in the completed state, so two racing cancels cannot both win.
func (r *transactionRepo) MarkCancelled(ctx context.Context, id, by uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("id = ? AND status = ?", id, model.TxCompleted).
		Updates(map[string]interface{}{
			"status":       model.TxCancelled,
			"cancelled_at": at,
			"cancelled_by": by,
			"updated_by":   by.String(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// LastNumberWithPrefix returns the highest number issued under prefix, or ""
// when none exists. Numbers are zero padded so lexical order is numeric order.
func (r *transactionRepo) LastNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	var numbers []string
	err := r.db.WithContext(ctx).Unscoped().Model(&model.Transaction{}).
		Where("transaction_number LIKE ?", prefix+"-%").
		Order("transaction_number DESC").
		Limit(1).
		Pluck("transaction_number", &numbers).Error
	if err != nil || len(numbers) == 0 {
		return "", err
	}
	return numbers[0], nil
}
