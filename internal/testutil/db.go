// Package testutil opens throwaway databases and seeds fixtures for package
// tests.
package testutil

import (
	"testing"

	"go-pos-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB returns a migrated in-memory SQLite database private to the test.
// The pool is pinned to one connection so nested statements never block on
// a second connection that cannot see the open transaction.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := model.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func SeedUser(t *testing.T, db *gorm.DB, role model.Role) *model.User {
	t.Helper()
	u := &model.User{
		Email:    uuid.NewString()[:8] + "@pos.test",
		Name:     "Test " + string(role),
		Role:     role,
		IsActive: true,
	}
	if err := u.SetPassword("secret123"); err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedProduct creates an active product with the given price and stock.
func SeedProduct(t *testing.T, db *gorm.DB, name, price string, stock int) *model.Product {
	t.Helper()
	p := &model.Product{
		SKU:               "SKU-" + uuid.NewString()[:8],
		Name:              name,
		Price:             decimal.RequireFromString(price),
		Cost:              decimal.RequireFromString(price).Div(decimal.NewFromInt(2)),
		Stock:             stock,
		LowStockThreshold: 2,
		Unit:              model.UnitPcs,
		IsActive:          true,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func SeedCustomer(t *testing.T, db *gorm.DB, name string) *model.Customer {
	t.Helper()
	c := &model.Customer{Name: name, IsActive: true}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return c
}

// Stock reads a product's stock straight from the table.
func Stock(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var p model.Product
	if err := db.Unscoped().Select("stock").First(&p, "id = ?", id).Error; err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return p.Stock
}
