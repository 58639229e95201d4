package payments

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"

	"licensehub/database"
	paymentsdomain "licensehub/internal/domain/payments"
	"licensehub/internal/validation"
)

type gatewaySettingsRequest struct {
	Credentials map[string]string `json:"credentials"`
	IsSandbox   bool              `json:"is_sandbox"`
	IsActive    bool              `json:"is_active"`
}

// UpdateGatewaySettings upserts the stored credentials for one gateway.
// Admin only. Takes effect on the next payment; adapters read settings
// fresh per request.
func UpdateGatewaySettings(c *gin.Context) {
	gateway := c.Param("gateway")
	if !validation.ValidGateway(gateway) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown gateway"})
		return
	}

	var body gatewaySettingsRequest
	if err := c.ShouldBindJSON(&body); err != nil || len(body.Credentials) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid credentials"})
		return
	}

	setting := paymentsdomain.PaymentSetting{
		Gateway:     gateway,
		Credentials: paymentsdomain.Credentials(body.Credentials),
		IsSandbox:   body.IsSandbox,
		IsActive:    body.IsActive,
	}
	err := database.DB.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway"}},
			DoUpdates: clause.AssignmentColumns([]string{"credentials", "is_sandbox", "is_active", "updated_at"}),
		}).
		Create(&setting).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save gateway settings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "gateway": gateway})
}

// ListGatewaySettings returns the stored gateway configuration with secrets
// masked. Admin only.
func ListGatewaySettings(c *gin.Context) {
	var settings []paymentsdomain.PaymentSetting
	if err := database.DB.Find(&settings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load gateway settings"})
		return
	}

	out := make([]gin.H, 0, len(settings))
	for _, s := range settings {
		keys := make([]string, 0, len(s.Credentials))
		for k := range s.Credentials {
			keys = append(keys, k)
		}
		out = append(out, gin.H{
			"gateway":         s.Gateway,
			"is_sandbox":      s.IsSandbox,
			"is_active":       s.IsActive,
			"credential_keys": keys,
		})
	}
	c.JSON(http.StatusOK, gin.H{"gateways": out})
}
