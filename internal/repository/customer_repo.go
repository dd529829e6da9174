package repository

import (
	"context"
	"strings"

	"go-pos-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CustomerFilter struct {
	Search     string
	ActiveOnly bool
	Page       Page
}

type CustomerRepository interface {
	WithTx(tx *gorm.DB) CustomerRepository
	Create(ctx context.Context, customer *model.Customer) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, f CustomerFilter) ([]model.Customer, int64, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error
	IncrementAggregates(ctx context.Context, id uuid.UUID, purchases int, spent decimal.Decimal, points int64) error
	TopBySpent(ctx context.Context, limit int) ([]model.Customer, error)

	CreatePending(ctx context.Context, p *model.PendingAggregate) error
	ListPending(ctx context.Context, limit int) ([]model.PendingAggregate, error)
	DeletePending(ctx context.Context, id uuid.UUID) error
	MarkPendingFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type customerRepo struct {
	db *gorm.DB
}

func NewCustomerRepo(db *gorm.DB) CustomerRepository {
	return &customerRepo{db}
}

func (r *customerRepo) WithTx(tx *gorm.DB) CustomerRepository {
	return &customerRepo{tx}
}

func (r *customerRepo) Create(ctx context.Context, customer *model.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *customerRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var customer model.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Customer{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *customerRepo) List(ctx context.Context, f CustomerFilter) ([]model.Customer, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Customer{})
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?", like, like, like)
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var customers []model.Customer
	err := q.Order("created_at DESC").Scopes(paginate(f.Page)).Find(&customers).Error
	return customers, total, err
}

// UpdateFields never writes the purchase aggregates.
func (r *customerRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	delete(fields, "total_purchases")
	delete(fields, "total_spent")
	delete(fields, "loyalty_points")
	res := r.db.WithContext(ctx).Model(&model.Customer{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *customerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.Customer{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementAggregates adds the deltas in place. Negative values reverse a sale.
func (r *customerRepo) IncrementAggregates(ctx context.Context, id uuid.UUID, purchases int, spent decimal.Decimal, points int64) error {
	res := r.db.WithContext(ctx).Model(&model.Customer{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"total_purchases": gorm.Expr("total_purchases + ?", purchases),
			"total_spent":     gorm.Expr("total_spent + ?", spent),
			"loyalty_points":  gorm.Expr("loyalty_points + ?", points),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *customerRepo) TopBySpent(ctx context.Context, limit int) ([]model.Customer, error) {
	var customers []model.Customer
	err := r.db.WithContext(ctx).
		Where("total_purchases > 0").
		Order("total_spent DESC").
		Limit(limit).
		Find(&customers).Error
	return customers, err
}

func (r *customerRepo) CreatePending(ctx context.Context, p *model.PendingAggregate) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *customerRepo) ListPending(ctx context.Context, limit int) ([]model.PendingAggregate, error) {
	var pending []model.PendingAggregate
	err := r.db.WithContext(ctx).Order("created_at ASC").Limit(limit).Find(&pending).Error
	return pending, err
}

func (r *customerRepo) DeletePending(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.PendingAggregate{}, "id = ?", id).Error
}

func (r *customerRepo) MarkPendingFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).Model(&model.PendingAggregate{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
		}).Error
}
