// Package license issues and renews product licenses after a confirmed
// payment.
package license

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"licensehub/internal/domain/licenses"
	"licensehub/internal/domain/products"
	"licensehub/internal/domain/users"
	"licensehub/utils"
)

// renewalDays maps a product renewal period to the number of days one
// purchase extends the license. Lifetime products never expire.
var renewalDays = map[string]int{
	"monthly":     30,
	"quarterly":   90,
	"semi-annual": 180,
	"annual":      365,
	"three-years": 1095,
}

const defaultRenewalDays = 365

// GrantOrRenew issues a license for the product, or extends the user's
// existing license for it when one is already active. Renewing extends the
// current expiry rather than stacking a second license row. Must run inside
// the caller's transaction so a later invoice failure rolls the grant back.
func GrantOrRenew(tx *gorm.DB, user *users.User, product *products.Product, gateway string) (*licenses.License, error) {
	var existing licenses.License
	err := tx.Where("user_id = ? AND product_id = ? AND status = ?",
		user.ID, product.ID, licenses.StatusActive).
		First(&existing).Error
	if err == nil {
		return renew(tx, &existing, product, gateway)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	lic := licenses.License{
		UserID:           user.ID,
		ProductID:        &product.ID,
		LicenseKey:       NewLicenseKey(),
		LicenseType:      product.LicenseType,
		Status:           licenses.StatusActive,
		MaxDomains:       product.MaxDomains,
		LicenseExpiresAt: expiryFor(product, now),
		SupportExpiresAt: supportExpiryFor(product, now),
		Notes:            fmt.Sprintf("Issued via %s payment", gateway),
	}
	if err := tx.Create(&lic).Error; err != nil {
		return nil, err
	}

	utils.LogInfo("License issued", logrus.Fields{
		"license_id": lic.ID,
		"user_id":    user.ID,
		"product_id": product.ID,
	})
	return &lic, nil
}

// renew pushes the expiry dates of an active license forward by one renewal
// period. An already-expired date restarts from now instead of extending a
// date in the past.
func renew(tx *gorm.DB, lic *licenses.License, product *products.Product, gateway string) (*licenses.License, error) {
	now := time.Now()

	if lic.LicenseExpiresAt != nil {
		base := *lic.LicenseExpiresAt
		if base.Before(now) {
			base = now
		}
		next := base.AddDate(0, 0, renewalDaysFor(product))
		lic.LicenseExpiresAt = &next
	}
	if product.SupportDays > 0 {
		base := now
		if lic.SupportExpiresAt != nil && lic.SupportExpiresAt.After(now) {
			base = *lic.SupportExpiresAt
		}
		next := base.AddDate(0, 0, product.SupportDays)
		lic.SupportExpiresAt = &next
	}
	lic.Status = licenses.StatusActive
	lic.Notes = fmt.Sprintf("Renewed via %s payment", gateway)

	if err := tx.Save(lic).Error; err != nil {
		return nil, err
	}

	utils.LogInfo("License renewed", logrus.Fields{
		"license_id": lic.ID,
		"user_id":    lic.UserID,
	})
	return lic, nil
}

// ExpireLapsed flips active licenses whose expiry has passed to expired.
// Run opportunistically; reads of a single license use License.Expired
// instead of relying on this sweep.
func ExpireLapsed(db *gorm.DB) (int64, error) {
	res := db.Model(&licenses.License{}).
		Where("status = ? AND license_expires_at IS NOT NULL AND license_expires_at < ?",
			licenses.StatusActive, time.Now()).
		Update("status", licenses.StatusExpired)
	return res.RowsAffected, res.Error
}

// NewLicenseKey returns a fresh uppercase key, e.g.
// A1B2C3D4-E5F6-4A7B-8C9D-0E1F2A3B4C5D.
func NewLicenseKey() string {
	return strings.ToUpper(uuid.NewString())
}

func renewalDaysFor(product *products.Product) int {
	if days, ok := renewalDays[product.RenewalPeriod]; ok {
		return days
	}
	return defaultRenewalDays
}

func expiryFor(product *products.Product, now time.Time) *time.Time {
	if product.RenewalPeriod == "lifetime" || product.LicenseType == "lifetime" {
		return nil
	}
	t := now.AddDate(0, 0, renewalDaysFor(product))
	return &t
}

func supportExpiryFor(product *products.Product, now time.Time) *time.Time {
	if product.SupportDays <= 0 {
		return nil
	}
	t := now.AddDate(0, 0, product.SupportDays)
	return &t
}
