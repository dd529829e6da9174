package model

import "github.com/shopspring/decimal"

// Customer aggregates are maintained incrementally by the transaction engine
// and are not writable through the customer API.
type Customer struct {
	BaseModel
	Name     string `gorm:"type:varchar(100);not null" json:"name"`
	Email    string `gorm:"type:varchar(255);index" json:"email,omitempty"`
	Phone    string `gorm:"type:varchar(30);index" json:"phone,omitempty"`
	Address  string `gorm:"type:varchar(255)" json:"address,omitempty"`
	IsActive bool   `gorm:"not null" json:"is_active"`

	TotalPurchases int             `gorm:"not null;default:0" json:"total_purchases"`
	TotalSpent     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_spent"`
	LoyaltyPoints  int64           `gorm:"not null;default:0" json:"loyalty_points"`
}
