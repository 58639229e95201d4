package licenses

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"licensehub/database"
	"licensehub/internal/domain/invoices"
	domain "licensehub/internal/domain/licenses"
	"licensehub/internal/domain/products"
	"licensehub/internal/domain/users"
	"licensehub/internal/invoice"
	"licensehub/internal/license"
)

// ListMyLicenses returns the caller's licenses with live expiry status.
func ListMyLicenses(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var list []domain.License
	err := database.DB.Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load licenses"})
		return
	}

	now := time.Now()
	out := make([]gin.H, 0, len(list))
	for _, lic := range list {
		out = append(out, gin.H{
			"id":                 lic.ID,
			"license_key":        lic.LicenseKey,
			"license_type":       lic.LicenseType,
			"status":             lic.Status,
			"expired":            lic.Expired(now),
			"max_domains":        lic.MaxDomains,
			"active_domains":     lic.ActiveDomains,
			"license_expires_at": lic.LicenseExpiresAt,
			"support_expires_at": lic.SupportExpiresAt,
			"product":            lic.Product,
		})
	}
	c.JSON(http.StatusOK, gin.H{"licenses": out})
}

// GrantLicense issues a license manually, outside a gateway payment, along
// with its initial invoice. Admin only.
func GrantLicense(c *gin.Context) {
	var body struct {
		UserID    uint   `json:"user_id"`
		ProductID uint   `json:"product_id"`
		Status    string `json:"invoice_status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.UserID == 0 || body.ProductID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing user_id or product_id"})
		return
	}

	var user users.User
	if err := database.DB.First(&user, body.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	var product products.Product
	if err := database.DB.First(&product, body.ProductID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	// License and invoice stand or fall together; an invoice failure rolls
	// the license grant back.
	var lic *domain.License
	var inv *invoices.Invoice
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		lic, err = license.GrantOrRenew(tx, &user, &product, "manual")
		if err != nil {
			return err
		}
		lic.Product = &product

		inv, err = invoice.CreateInitialInvoice(tx, lic, body.Status, nil)
		return err
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue license"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"license": lic, "invoice": inv})
}

// ExpireLapsedLicenses sweeps active licenses past their expiry date. Admin
// only; intended for a cron caller.
func ExpireLapsedLicenses(c *gin.Context) {
	count, err := license.ExpireLapsed(database.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to expire licenses"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": count})
}

// GetLicenseDetails returns one license. Admin only.
func GetLicenseDetails(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid license id"})
		return
	}

	var lic domain.License
	if err := database.DB.Preload("Product").Preload("User").First(&lic, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "License not found"})
		return
	}
	c.JSON(http.StatusOK, lic)
}
