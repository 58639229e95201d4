package products

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"not null"`
	Slug     string `gorm:"uniqueIndex:idx_products_slug"`
	Price    decimal.Decimal `gorm:"type:numeric(10,2)"`
	Currency string          `gorm:"type:varchar(3);default:'USD'"`

	// "single" | "extended" | "lifetime"
	LicenseType string `gorm:"type:varchar(20);default:'single'"`
	// "monthly" | "quarterly" | "semi-annual" | "annual" | "three-years" | "lifetime"
	RenewalPeriod string `gorm:"type:varchar(20)"`
	MaxDomains    int    `gorm:"default:1"`
	SupportDays   int    `gorm:"default:365"`

	IsActive bool `gorm:"default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
