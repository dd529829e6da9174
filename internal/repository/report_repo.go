package repository

import (
	"context"
	"time"

	"go-pos-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesSummary aggregates completed transactions over a window.
type SalesSummary struct {
	Transactions int64           `json:"transactions"`
	Revenue      decimal.Decimal `json:"revenue"`
	Discount     decimal.Decimal `json:"discount"`
	Tax          decimal.Decimal `json:"tax"`
}

type PaymentMethodTotal struct {
	Method       model.PaymentMethod `json:"method"`
	Transactions int64               `json:"transactions"`
	Total        decimal.Decimal     `json:"total"`
}

type ProductSales struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
}

type CategoryRevenue struct {
	Category string          `json:"category"`
	Quantity int64           `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type InventoryStats struct {
	TotalProducts   int64           `json:"total_products"`
	ActiveProducts  int64           `json:"active_products"`
	LowStockCount   int64           `json:"low_stock_count"`
	OutOfStockCount int64           `json:"out_of_stock_count"`
	TotalUnits      int64           `json:"total_units"`
	StockValue      decimal.Decimal `json:"stock_value"`
	CostValue       decimal.Decimal `json:"cost_value"`
}

type ReportRepository interface {
	SalesSummary(ctx context.Context, start, end time.Time) (*SalesSummary, error)
	PaymentBreakdown(ctx context.Context, start, end time.Time) ([]PaymentMethodTotal, error)
	CompletedHeaders(ctx context.Context, start, end time.Time) ([]model.Transaction, error)
	ItemsSold(ctx context.Context, start, end time.Time) (int64, error)
	TopProducts(ctx context.Context, start, end time.Time, limit int) ([]ProductSales, error)
	RevenueByCategory(ctx context.Context, start, end time.Time) ([]CategoryRevenue, error)
	InventoryStats(ctx context.Context) (*InventoryStats, error)
	RecentTransactions(ctx context.Context, limit int) ([]model.Transaction, error)
	CountCustomers(ctx context.Context) (int64, error)
}

type reportRepo struct {
	db *gorm.DB
}

func NewReportRepo(db *gorm.DB) ReportRepository {
	return &reportRepo{db}
}

func (r *reportRepo) completed(ctx context.Context, start, end time.Time) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("status = ? AND created_at >= ? AND created_at < ?", model.TxCompleted, start, end)
}

func (r *reportRepo) SalesSummary(ctx context.Context, start, end time.Time) (*SalesSummary, error) {
	var s SalesSummary
	err := r.completed(ctx, start, end).
		Select(`COUNT(*) AS transactions,
			COALESCE(SUM(total), 0) AS revenue,
			COALESCE(SUM(discount), 0) AS discount,
			COALESCE(SUM(tax), 0) AS tax`).
		Scan(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *reportRepo) PaymentBreakdown(ctx context.Context, start, end time.Time) ([]PaymentMethodTotal, error) {
	var rows []PaymentMethodTotal
	err := r.completed(ctx, start, end).
		Select("payment_method AS method, COUNT(*) AS transactions, COALESCE(SUM(total), 0) AS total").
		Group("payment_method").
		Order("payment_method ASC").
		Scan(&rows).Error
	return rows, err
}

// CompletedHeaders loads just the columns needed to bucket sales by calendar
// period in the server's time zone.
func (r *reportRepo) CompletedHeaders(ctx context.Context, start, end time.Time) ([]model.Transaction, error) {
	var trxs []model.Transaction
	err := r.completed(ctx, start, end).
		Select("id", "created_at", "total", "discount", "tax").
		Order("created_at ASC").
		Find(&trxs).Error
	return trxs, err
}

func (r *reportRepo) itemsJoin(ctx context.Context, start, end time.Time) *gorm.DB {
	return r.db.WithContext(ctx).Table("transaction_items AS ti").
		Joins("JOIN transactions AS t ON t.id = ti.transaction_id").
		Where("t.status = ? AND t.deleted_at IS NULL AND t.created_at >= ? AND t.created_at < ?",
			model.TxCompleted, start, end)
}

func (r *reportRepo) ItemsSold(ctx context.Context, start, end time.Time) (int64, error) {
	var n int64
	err := r.itemsJoin(ctx, start, end).Select("COALESCE(SUM(ti.quantity), 0)").Scan(&n).Error
	return n, err
}

func (r *reportRepo) TopProducts(ctx context.Context, start, end time.Time, limit int) ([]ProductSales, error) {
	var rows []ProductSales
	err := r.itemsJoin(ctx, start, end).
		Select(`ti.product_id AS product_id,
			MAX(ti.product_name) AS product_name,
			SUM(ti.quantity) AS quantity,
			SUM(ti.subtotal) AS revenue`).
		Group("ti.product_id").
		Order("quantity DESC, revenue DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// RevenueByCategory resolves categories through the live product row; lines
// whose product is gone or uncategorised fall under "Uncategorized".
func (r *reportRepo) RevenueByCategory(ctx context.Context, start, end time.Time) ([]CategoryRevenue, error) {
	var rows []CategoryRevenue
	err := r.itemsJoin(ctx, start, end).
		Joins("LEFT JOIN products AS p ON p.id = ti.product_id").
		Joins("LEFT JOIN categories AS c ON c.id = p.category_id").
		Select(`COALESCE(c.name, 'Uncategorized') AS category,
			SUM(ti.quantity) AS quantity,
			SUM(ti.subtotal) AS revenue`).
		Group("COALESCE(c.name, 'Uncategorized')").
		Order("revenue DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *reportRepo) InventoryStats(ctx context.Context) (*InventoryStats, error) {
	var s InventoryStats
	db := r.db.WithContext(ctx)

	if err := db.Model(&model.Product{}).Count(&s.TotalProducts).Error; err != nil {
		return nil, err
	}
	active := func() *gorm.DB {
		return db.Model(&model.Product{}).Where("is_active = ?", true)
	}
	if err := active().Count(&s.ActiveProducts).Error; err != nil {
		return nil, err
	}
	if err := active().Where("stock <= low_stock_threshold").Count(&s.LowStockCount).Error; err != nil {
		return nil, err
	}
	if err := active().Where("stock = 0").Count(&s.OutOfStockCount).Error; err != nil {
		return nil, err
	}
	var totals struct {
		TotalUnits int64
		StockValue decimal.Decimal
		CostValue  decimal.Decimal
	}
	err := active().
		Select(`COALESCE(SUM(stock), 0) AS total_units,
			COALESCE(SUM(stock * price), 0) AS stock_value,
			COALESCE(SUM(stock * cost), 0) AS cost_value`).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	s.TotalUnits = totals.TotalUnits
	s.StockValue = totals.StockValue
	s.CostValue = totals.CostValue
	return &s, nil
}

func (r *reportRepo) RecentTransactions(ctx context.Context, limit int) ([]model.Transaction, error) {
	var trxs []model.Transaction
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Cashier").
		Order("created_at DESC").
		Limit(limit).
		Find(&trxs).Error
	return trxs, err
}

func (r *reportRepo) CountCustomers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Customer{}).Count(&n).Error
	return n, err
}
