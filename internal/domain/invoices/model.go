package invoices

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"licensehub/internal/domain/licenses"
	"licensehub/internal/domain/products"
	"licensehub/internal/domain/users"
)

// Wire-visible status strings. Stored data and API consumers depend on the
// exact values.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusOverdue   = "overdue"
	StatusCancelled = "cancelled"
)

type Invoice struct {
	ID            uint   `gorm:"primaryKey"`
	InvoiceNumber string `gorm:"uniqueIndex:idx_invoices_number;not null"`

	UserID    uint `gorm:"index;not null"`
	User      users.User
	LicenseID *uint // nil for custom invoices
	License   *licenses.License
	ProductID *uint
	Product   *products.Product

	Amount      decimal.Decimal `gorm:"type:numeric(10,2)"`
	TaxRate     decimal.Decimal `gorm:"type:numeric(5,2);default:0"`
	TaxAmount   decimal.Decimal `gorm:"type:numeric(10,2);default:0"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(10,2)"`
	Currency    string          `gorm:"type:varchar(3);default:'USD'"`

	Status  string     `gorm:"type:varchar(20);index;default:'pending'"`
	PaidAt  *time.Time // set only on transition to paid
	DueDate *time.Time

	BillingAddress *string
	Notes          string
	Metadata       Metadata `gorm:"type:jsonb"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Metadata carries gateway context (gateway name, transaction id) as jsonb.
type Metadata map[string]string

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported type for invoice metadata")
	}
	return json.Unmarshal(raw, m)
}
