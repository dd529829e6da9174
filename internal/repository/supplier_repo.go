package repository

import (
	"context"
	"strings"

	"go-pos-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SupplierFilter struct {
	Search     string
	ActiveOnly bool
	Page       Page
}

type SupplierRepository interface {
	WithTx(tx *gorm.DB) SupplierRepository
	Create(ctx context.Context, supplier *model.Supplier) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Supplier, error)
	List(ctx context.Context, f SupplierFilter) ([]model.Supplier, int64, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error
	DetachProducts(ctx context.Context, id uuid.UUID) (int64, error)
}

type supplierRepo struct {
	db *gorm.DB
}

func NewSupplierRepo(db *gorm.DB) SupplierRepository {
	return &supplierRepo{db}
}

func (r *supplierRepo) WithTx(tx *gorm.DB) SupplierRepository {
	return &supplierRepo{tx}
}

func (r *supplierRepo) Create(ctx context.Context, supplier *model.Supplier) error {
	return r.db.WithContext(ctx).Create(supplier).Error
}

func (r *supplierRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Supplier, error) {
	var supplier model.Supplier
	if err := r.db.WithContext(ctx).First(&supplier, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (r *supplierRepo) List(ctx context.Context, f SupplierFilter) ([]model.Supplier, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Supplier{})
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(company) LIKE ? OR email LIKE ?", like, like, like)
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var suppliers []model.Supplier
	err := q.Order("created_at DESC").Scopes(paginate(f.Page)).Find(&suppliers).Error
	return suppliers, total, err
}

func (r *supplierRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Supplier{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *supplierRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.Supplier{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DetachProducts clears the supplier reference on every product, deleted
// ones included. Stock and prices are untouched.
func (r *supplierRepo) DetachProducts(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Unscoped().Model(&model.Product{}).
		Where("supplier_id = ?", id).
		UpdateColumn("supplier_id", nil)
	return res.RowsAffected, res.Error
}
