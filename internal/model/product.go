package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const DefaultLowStockThreshold = 10

type ProductUnit string

const (
	UnitPcs   ProductUnit = "pcs"
	UnitKg    ProductUnit = "kg"
	UnitLiter ProductUnit = "liter"
	UnitBox   ProductUnit = "box"
	UnitPack  ProductUnit = "pack"
)

// Product is a row of the product ledger. Stock is only ever changed through
// ProductRepository.AdjustStock.
type Product struct {
	BaseModel
	SKU               string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"sku"`
	Name              string          `gorm:"type:varchar(100);not null" json:"name"`
	Description       string          `gorm:"type:varchar(500)" json:"description,omitempty"`
	CategoryID        *uuid.UUID      `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Category          *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	SupplierID        *uuid.UUID      `gorm:"type:uuid;index" json:"supplier_id,omitempty"`
	Supplier          *Supplier       `gorm:"foreignKey:SupplierID;constraint:OnDelete:SET NULL" json:"supplier,omitempty"`
	Price             decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"price"`
	Cost              decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"cost"`
	Stock             int             `gorm:"not null;default:0;check:chk_products_stock,stock >= 0" json:"stock"`
	LowStockThreshold int             `gorm:"not null" json:"low_stock_threshold"`
	Unit              ProductUnit     `gorm:"type:varchar(10);not null;default:'pcs'" json:"unit"`
	Barcode           string          `gorm:"type:varchar(64);index" json:"barcode,omitempty"`
	IsActive          bool            `gorm:"not null;index" json:"is_active"`

	LowStock bool `gorm:"-" json:"is_low_stock"`
}

// IsLowStock is derived, never persisted.
func (p *Product) IsLowStock() bool {
	return p.Stock <= p.LowStockThreshold
}

func (p *Product) AfterFind(tx *gorm.DB) error {
	p.LowStock = p.IsLowStock()
	return nil
}
