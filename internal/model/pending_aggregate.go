package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PendingAggregate is a customer counter delta that could not be applied
// inline and waits for the retry job.
type PendingAggregate struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	CustomerID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	TransactionID uuid.UUID       `gorm:"type:uuid;not null" json:"transaction_id"`
	Purchases     int             `gorm:"not null" json:"purchases"`
	Spent         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"spent"`
	Points        int64           `gorm:"not null" json:"points"`
	Attempts      int             `gorm:"not null;default:0" json:"attempts"`
	LastError     string          `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p *PendingAggregate) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
