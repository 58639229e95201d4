package webhooks

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"licensehub/internal/payment"
)

const maxWebhookBytes = 65536

// HandleWebhook receives provider notifications on /webhooks/:gateway.
// Duplicates are acknowledged with 200 so the provider stops retrying.
func HandleWebhook(c *gin.Context) {
	gateway := c.Param("gateway")

	payload, err := readBody(c, maxWebhookBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	result, err := payment.HandleWebhook(c.Request.Context(), gateway, payload, c.Request.Header)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrValidation):
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown gateway"})
		case errors.Is(err, payment.ErrGatewayNotConfigured):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Gateway not configured"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	if result.Duplicate {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "message": result.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received", "message": result.Message})
}

func readBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
