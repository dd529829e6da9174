package model

type PaymentTerms string

const (
	TermsCOD   PaymentTerms = "cod"
	TermsNet15 PaymentTerms = "net15"
	TermsNet30 PaymentTerms = "net30"
	TermsNet60 PaymentTerms = "net60"
)

const DefaultSupplierCountry = "Malaysia"

// Supplier is where products are bought from. Products point at it through
// an optional SupplierID.
type Supplier struct {
	BaseModel
	Name         string       `gorm:"type:varchar(100);not null;index" json:"name"`
	Company      string       `gorm:"type:varchar(100)" json:"company,omitempty"`
	Email        string       `gorm:"type:varchar(255);not null" json:"email"`
	Phone        string       `gorm:"type:varchar(30);not null" json:"phone"`
	Street       string       `gorm:"type:varchar(255)" json:"street,omitempty"`
	City         string       `gorm:"type:varchar(100)" json:"city,omitempty"`
	State        string       `gorm:"type:varchar(100)" json:"state,omitempty"`
	ZipCode      string       `gorm:"type:varchar(20)" json:"zip_code,omitempty"`
	Country      string       `gorm:"type:varchar(100);not null;default:'Malaysia'" json:"country"`
	Website      string       `gorm:"type:varchar(255)" json:"website,omitempty"`
	TaxID        string       `gorm:"type:varchar(50)" json:"tax_id,omitempty"`
	PaymentTerms PaymentTerms `gorm:"type:varchar(10);not null;default:'net30'" json:"payment_terms"`
	IsActive     bool         `gorm:"not null;index" json:"is_active"`
	Notes        string       `gorm:"type:varchar(500)" json:"notes,omitempty"`
}
