package payments

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"licensehub/database"
	"licensehub/internal/domain/invoices"
	"licensehub/internal/domain/products"
	"licensehub/internal/domain/users"
	"licensehub/internal/notify"
	"licensehub/internal/payment"
	"licensehub/utils"
)

type createPaymentRequest struct {
	Gateway   string          `json:"gateway"`
	ProductID uint            `json:"product_id"`
	InvoiceID uint            `json:"invoice_id"`
	IsCustom  bool            `json:"is_custom"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

// CreatePayment starts a checkout with the selected gateway and returns the
// redirect URL for the buyer. The amount is always taken from the server-side
// record (product price or invoice total), never from the client, except for
// custom service payments where the amount is the request itself.
func CreatePayment(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var body createPaymentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	order := payment.Order{
		UserID:   userID,
		Gateway:  body.Gateway,
		IsCustom: body.IsCustom,
	}

	switch {
	case body.InvoiceID != 0:
		var inv invoices.Invoice
		if err := database.DB.Where("id = ? AND user_id = ?", body.InvoiceID, userID).First(&inv).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
			return
		}
		if inv.Status == invoices.StatusPaid {
			c.JSON(http.StatusConflict, gin.H{"error": "Invoice is already paid"})
			return
		}
		order.InvoiceID = inv.ID
		order.Amount = inv.TotalAmount
		order.Currency = inv.Currency

	case body.IsCustom:
		order.Amount = body.Amount
		order.Currency = body.Currency

	default:
		var product products.Product
		if err := database.DB.Where("id = ? AND is_active = ?", body.ProductID, true).First(&product).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		order.ProductID = product.ID
		order.Amount = product.Price
		order.Currency = product.Currency
	}

	intent, err := payment.ProcessPayment(c.Request.Context(), order)
	if err != nil {
		respondPaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"redirect_url": intent.RedirectURL,
		"payment_id":   intent.PaymentID,
	})
}

// VerifyPayPalPayment handles the buyer's return from PayPal approval.
// PayPal's redirect carries the order reference as token/PayerID; API
// callers may use payment_id/payer_id instead.
func VerifyPayPalPayment(c *gin.Context) {
	ref := c.Query("payment_id")
	if ref == "" {
		ref = c.Query("token")
	}
	payerID := c.Query("payer_id")
	if payerID == "" {
		payerID = c.Query("PayerID")
	}
	verifyAndFinalize(c, "paypal", ref, payerID)
}

// VerifyStripePayment handles the buyer's return from Stripe Checkout.
func VerifyStripePayment(c *gin.Context) {
	ref := c.Query("session_id")
	verifyAndFinalize(c, "stripe", ref, "")
}

func verifyAndFinalize(c *gin.Context, gateway, ref, payerID string) {
	if ref == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing payment reference"})
		return
	}

	v, err := payment.VerifyPayment(c.Request.Context(), gateway, ref, payerID)
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	if !v.Success {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": v.Message})
		return
	}

	order := payment.OrderFromVerification(v, gateway)

	result, err := payment.FinalizePayment(c.Request.Context(), order, gateway, v.TransactionID)
	if err != nil {
		respondPaymentError(c, err)
		return
	}

	sendReceipts(result)

	resp := gin.H{
		"success":        true,
		"message":        "Payment completed",
		"transaction_id": v.TransactionID,
		"invoice_number": result.Invoice.InvoiceNumber,
	}
	if result.License != nil {
		resp["license_key"] = result.License.LicenseKey
	}
	c.JSON(http.StatusOK, resp)
}

// ListGateways reports which payment gateways are configured and usable.
func ListGateways(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"paypal": payment.IsGatewayAvailable("paypal"),
		"stripe": payment.IsGatewayAvailable("stripe"),
	})
}

// sendReceipts emails the payment outcome. Mail failures are logged, never
// surfaced; the payment already succeeded.
func sendReceipts(result *payment.FinalizeResult) {
	var user users.User
	if err := database.DB.First(&user, result.Invoice.UserID).Error; err != nil {
		return
	}
	if err := notify.SendInvoicePaidEmail(&user, result.Invoice); err != nil {
		utils.LogError(err, "Failed to send invoice email", logrus.Fields{"invoice_id": result.Invoice.ID})
	}
	if result.License != nil {
		if err := notify.SendLicenseIssuedEmail(&user, result.License); err != nil {
			utils.LogError(err, "Failed to send license email", logrus.Fields{"license_id": result.License.ID})
		}
	}
}

func respondPaymentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, payment.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, payment.ErrGatewayNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment gateway not configured"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment processing failed"})
	}
}
