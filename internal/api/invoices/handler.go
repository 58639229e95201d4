package invoices

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"licensehub/database"
	"licensehub/internal/domain/licenses"
	"licensehub/internal/invoice"
)

// ListMyInvoices returns the caller's own invoices, newest first.
func ListMyInvoices(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	list, err := invoice.GetInvoicesByUser(database.DB, userID, queryInt(c, "limit", 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load invoices"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": list})
}

// GetMyInvoice returns one invoice; callers only see their own.
func GetMyInvoice(c *gin.Context) {
	userID := c.GetUint("user_id")
	id, ok := pathID(c)
	if !ok {
		return
	}

	inv, err := invoice.GetInvoice(database.DB, id)
	if err != nil {
		respondInvoiceError(c, err)
		return
	}
	if inv.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
		return
	}
	c.JSON(http.StatusOK, inv)
}

// --- admin handlers ---

func ListInvoicesByStatus(c *gin.Context) {
	status := c.Query("status")
	list, err := invoice.GetInvoicesByStatus(database.DB, status, queryInt(c, "limit", 50))
	if err != nil {
		respondInvoiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": list})
}

func GetInvoiceDetails(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	inv, err := invoice.GetInvoice(database.DB, id)
	if err != nil {
		respondInvoiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func UpdateStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := invoice.UpdateInvoiceStatus(database.DB, id, body.Status); err != nil {
		respondInvoiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := invoice.CancelInvoice(database.DB, id); err != nil {
		respondInvoiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CreateRenewal issues a pending renewal invoice for a license.
func CreateRenewal(c *gin.Context) {
	var body struct {
		LicenseID uint `json:"license_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.LicenseID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid license_id"})
		return
	}

	var lic licenses.License
	if err := database.DB.Preload("Product").First(&lic, body.LicenseID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "License not found"})
		return
	}

	inv, err := invoice.CreateRenewalInvoice(database.DB, &lic)
	if err != nil {
		respondInvoiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func GetStats(c *gin.Context) {
	stats, err := invoice.GetInvoiceStats(database.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func GetRevenue(c *gin.Context) {
	period := c.DefaultQuery("period", "month")
	revenue, err := invoice.GetRevenueByPeriod(database.DB, period)
	if err != nil {
		respondInvoiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, revenue)
}

func GetDistribution(c *gin.Context) {
	distribution, err := invoice.GetStatusDistribution(database.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute distribution"})
		return
	}
	c.JSON(http.StatusOK, distribution)
}

func GetTopCustomers(c *gin.Context) {
	customers, err := invoice.GetTopCustomersByRevenue(database.DB, queryInt(c, "limit", 10))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load top customers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

func GetTrends(c *gin.Context) {
	trends, err := invoice.GetInvoiceTrends(database.DB, queryInt(c, "months", 12))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load trends"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trends": trends})
}

func GetOverdue(c *gin.Context) {
	overdue, err := invoice.GetOverdueInvoices(database.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load overdue invoices"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": overdue})
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invoice id"})
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return n
}

func respondInvoiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, invoice.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, invoice.ErrCancelPaid):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invoice operation failed"})
	}
}
