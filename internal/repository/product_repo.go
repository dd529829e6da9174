package repository

import (
	"context"
	"strings"

	"go-pos-ledger/internal/model"
	"go-pos-ledger/pkg/apperror"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductFilter struct {
	Search     string
	CategoryID *uuid.UUID
	SupplierID *uuid.UUID
	LowStock   bool
	ActiveOnly bool
	Sort       string
	Page       Page
}

type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	Create(ctx context.Context, product *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindBySKU(ctx context.Context, sku string) (*model.Product, error)
	List(ctx context.Context, f ProductFilter) ([]model.Product, int64, error)
	ListLowStock(ctx context.Context) ([]model.Product, error)
	ListActive(ctx context.Context) ([]model.Product, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	HardDelete(ctx context.Context, id uuid.UUID) error
	AdjustStock(ctx context.Context, id uuid.UUID, delta, minResult int) (int, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) WithTx(tx *gorm.DB) ProductRepository {
	return &productRepo{tx}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).Preload("Category").Preload("Supplier").First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDForUpdate locks the row until the surrounding transaction ends.
func (r *productRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) FindBySKU(ctx context.Context, sku string) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, "sku = ?", sku).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

var productSortColumns = map[string]string{
	"name":       "name",
	"sku":        "sku",
	"price":      "price",
	"stock":      "stock",
	"created_at": "created_at",
}

func (r *productRepo) List(ctx context.Context, f ProductFilter) ([]model.Product, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Product{})
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", like, like)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.SupplierID != nil {
		q = q.Where("supplier_id = ?", *f.SupplierID)
	}
	if f.LowStock {
		q = q.Where("stock <= low_stock_threshold")
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []model.Product
	err := q.Preload("Category").Preload("Supplier").
		Order(productOrder(f.Sort)).
		Scopes(paginate(f.Page)).
		Find(&products).Error
	return products, total, err
}

// productOrder accepts "field" or "-field" from a whitelist.
func productOrder(sort string) string {
	desc := strings.HasPrefix(sort, "-")
	col, ok := productSortColumns[strings.TrimPrefix(sort, "-")]
	if !ok {
		return "created_at DESC"
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}

func (r *productRepo) ListLowStock(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Preload("Category").
		Where("is_active = ? AND stock <= low_stock_threshold", true).
		Order("stock ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) ListActive(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Find(&products).Error
	return products, err
}

// UpdateFields refuses to write stock; that column belongs to AdjustStock.
func (r *productRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	delete(fields, "stock")
	res := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productRepo) HardDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Unscoped().Delete(&model.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AdjustStock is the stock-mutation primitive. It applies delta in a single
// conditional UPDATE so concurrent callers cannot lose updates or drive stock
// below minResult, and touches no other column.
func (r *productRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta, minResult int) (int, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&model.Product{}).
		Where("id = ? AND stock + ? >= ?", id, delta, minResult).
		UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}

	var current model.Product
	if err := db.Select("id", "name", "stock").First(&current, "id = ?", id).Error; err != nil {
		if IsNotFound(err) {
			return 0, apperror.NotFound("product", id)
		}
		return 0, err
	}

	if res.RowsAffected == 0 {
		requested := -delta
		if requested < 0 {
			requested = 0
		}
		return current.Stock, apperror.InsufficientStock(id, current.Name, current.Stock, requested)
	}
	return current.Stock, nil
}
