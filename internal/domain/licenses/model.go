package licenses

import (
	"time"

	"licensehub/internal/domain/products"
	"licensehub/internal/domain/users"
)

const (
	StatusActive    = "active"
	StatusExpired   = "expired"
	StatusSuspended = "suspended"
	StatusCancelled = "cancelled"
)

type License struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"index;not null"`
	User      users.User
	ProductID *uint
	Product   *products.Product

	LicenseKey  string `gorm:"uniqueIndex:idx_licenses_key;not null"`
	LicenseType string `gorm:"type:varchar(20);default:'single'"`
	Status      string `gorm:"type:varchar(20);index;default:'active'"`

	MaxDomains    int `gorm:"default:1"`
	ActiveDomains int `gorm:"default:0"`

	LicenseExpiresAt *time.Time
	SupportExpiresAt *time.Time
	Notes            string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the license has a hard expiry in the past.
func (l *License) Expired(now time.Time) bool {
	return l.LicenseExpiresAt != nil && l.LicenseExpiresAt.Before(now)
}
