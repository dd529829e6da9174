package model

import "gorm.io/gorm"

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&User{},
		&Category{},
		&Supplier{},
		&Product{},
		&Customer{},
		&Transaction{},
		&TransactionItem{},
		&StockAdjustment{},
		&DailySequence{},
		&PendingAggregate{},
		&ActivityLog{},
	); err != nil {
		return err
	}

	// Older schemas cascaded product deletes into stock adjustments.
	m := db.Migrator()
	if m.HasConstraint(&StockAdjustment{}, legacyAdjustmentProductFK) {
		return m.DropConstraint(&StockAdjustment{}, legacyAdjustmentProductFK)
	}
	return nil
}

const legacyAdjustmentProductFK = "fk_stock_adjustments_product"
