package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AdjustmentType string

const (
	AdjustIn       AdjustmentType = "in"
	AdjustOut      AdjustmentType = "out"
	AdjustAbsolute AdjustmentType = "adjustment"
	AdjustDamaged  AdjustmentType = "damaged"
	AdjustReturn   AdjustmentType = "return"
)

// StockAdjustment is an append-only record of a non-sale stock change. Like
// TransactionItem it has no foreign key to products and keeps the product
// name, so it outlives a hard-deleted product.
type StockAdjustment struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	ProductID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"product_id"`
	ProductName   string         `gorm:"type:varchar(100);not null;default:''" json:"product_name"`
	ProductSKU    string         `gorm:"type:varchar(50);not null;default:''" json:"product_sku"`
	Type          AdjustmentType `gorm:"type:varchar(20);not null;index" json:"type"`
	Quantity      int            `gorm:"not null" json:"quantity"`
	PreviousStock int            `gorm:"not null" json:"previous_stock"`
	NewStock      int            `gorm:"not null" json:"new_stock"`
	Reason        string         `gorm:"type:varchar(200);not null" json:"reason"`
	Reference     string         `gorm:"type:varchar(100)" json:"reference,omitempty"`
	AdjustedBy    uuid.UUID      `gorm:"type:uuid;not null;index" json:"adjusted_by"`
	Adjuster      *User          `gorm:"foreignKey:AdjustedBy" json:"adjuster,omitempty"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
}

func (a *StockAdjustment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
