package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionStatus string

const (
	TxCompleted TransactionStatus = "completed"
	TxCancelled TransactionStatus = "cancelled"
	TxRefunded  TransactionStatus = "refunded"
)

type PaymentMethod string

const (
	PayCash         PaymentMethod = "cash"
	PayCard         PaymentMethod = "card"
	PayEWallet      PaymentMethod = "ewallet"
	PayBankTransfer PaymentMethod = "bank_transfer"
)

const PaymentPaid = "paid"

// Transaction is a completed sale. Only Status (and the cancel stamp) ever
// change after insert.
type Transaction struct {
	BaseModel
	TransactionNumber string            `gorm:"type:varchar(20);uniqueIndex;not null" json:"transaction_number"`
	Items             []TransactionItem `gorm:"foreignKey:TransactionID" json:"items"`
	CustomerID        *uuid.UUID        `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	Customer          *Customer         `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`

	Subtotal    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"subtotal"`
	Discount    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"discount"`
	Tax         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"tax"`
	Total       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total"`
	AmountPaid  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount_paid"`
	ChangeGiven decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"change_given"`

	PaymentMethod PaymentMethod     `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentStatus string            `gorm:"type:varchar(20);not null" json:"payment_status"`
	CashierID     uuid.UUID         `gorm:"type:uuid;not null;index" json:"cashier_id"`
	Cashier       *User             `gorm:"foreignKey:CashierID" json:"cashier,omitempty"`
	Status        TransactionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Notes         string            `gorm:"type:varchar(500)" json:"notes,omitempty"`

	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy *uuid.UUID `gorm:"type:uuid" json:"cancelled_by,omitempty"`
}

// TransactionItem snapshots name and price at sale time. There is deliberately
// no foreign key to products so the line outlives a hard-deleted product.
type TransactionItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	TransactionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	Position      int             `gorm:"not null" json:"position"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	ProductName   string          `gorm:"type:varchar(100);not null" json:"product_name"`
	Quantity      int             `gorm:"not null;check:chk_transaction_items_quantity,quantity >= 1" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"subtotal"`
}

func (i *TransactionItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// TransactionNumberPrefix is the per-day prefix, e.g. TRX-20240131.
func TransactionNumberPrefix(day time.Time) string {
	return "TRX-" + day.Format("20060102")
}

// FormatTransactionNumber renders TRX-YYYYMMDD-NNNN.
func FormatTransactionNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s-%04d", TransactionNumberPrefix(day), seq)
}
