package validation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidInvoiceStatus(t *testing.T) {
	for _, status := range []string{"pending", "paid", "overdue", "cancelled"} {
		assert.True(t, ValidInvoiceStatus(status), status)
	}
	assert.False(t, ValidInvoiceStatus("refunded"))
	assert.False(t, ValidInvoiceStatus("PAID"))
	assert.False(t, ValidInvoiceStatus(""))
}

func TestValidInvoiceAmount(t *testing.T) {
	assert.True(t, ValidInvoiceAmount(decimal.NewFromFloat(0.01)))
	assert.True(t, ValidInvoiceAmount(decimal.NewFromFloat(999999.99)))
	assert.False(t, ValidInvoiceAmount(decimal.Zero))
	assert.False(t, ValidInvoiceAmount(decimal.NewFromFloat(-5)))
	assert.False(t, ValidInvoiceAmount(decimal.NewFromFloat(1000000)))
}

func TestValidInvoiceCurrency(t *testing.T) {
	assert.True(t, ValidInvoiceCurrency("USD"))
	assert.True(t, ValidInvoiceCurrency("usd"))
	assert.True(t, ValidInvoiceCurrency(" eur "))
	assert.False(t, ValidInvoiceCurrency("XYZ"))
	assert.False(t, ValidInvoiceCurrency(""))
}

func TestValidInvoiceNumber(t *testing.T) {
	assert.True(t, ValidInvoiceNumber("INV-A1B2C3D4"))
	assert.False(t, ValidInvoiceNumber("INV-a1b2c3d4"))
	assert.False(t, ValidInvoiceNumber("INV-A1B2C3D"))
	assert.False(t, ValidInvoiceNumber("INV-A1B2C3D45"))
	assert.False(t, ValidInvoiceNumber("XXX-A1B2C3D4"))
}

func TestValidInvoiceDueDate(t *testing.T) {
	now := time.Now()
	assert.True(t, ValidInvoiceDueDate(now.Add(time.Hour), now))
	assert.False(t, ValidInvoiceDueDate(now, now))
	assert.False(t, ValidInvoiceDueDate(now.Add(-time.Hour), now))
}

func TestValidTransactionRef(t *testing.T) {
	assert.True(t, ValidTransactionRef("pi_1234567890"))
	assert.True(t, ValidTransactionRef("PAYID-ABC_123"))
	assert.False(t, ValidTransactionRef("ab"))
	assert.False(t, ValidTransactionRef(""))
	assert.False(t, ValidTransactionRef("bad id with spaces"))
}

func TestSanitizeAmount(t *testing.T) {
	assert.True(t, SanitizeAmount(decimal.NewFromFloat(-12.5)).Equal(decimal.Zero))
	assert.Equal(t, "20", SanitizeAmount(decimal.NewFromFloat(19.999)).String())
	assert.Equal(t, "29.99", SanitizeAmount(decimal.NewFromFloat(29.99)).String())
}

func TestSanitizeAmountIdempotent(t *testing.T) {
	for _, v := range []float64{-3, 0, 0.005, 19.999, 29.99, 999999.994} {
		d := decimal.NewFromFloat(v)
		once := SanitizeAmount(d)
		twice := SanitizeAmount(once)
		assert.True(t, once.Equal(twice), "sanitize not idempotent for %v", v)
	}
}

func TestSanitizeCurrency(t *testing.T) {
	assert.Equal(t, "USD", SanitizeCurrency(" usd "))
	assert.Equal(t, "EUR", SanitizeCurrency("eur"))
}

func TestSanitizeStatus(t *testing.T) {
	assert.Equal(t, "paid", SanitizeStatus("paid"))
	assert.Equal(t, "pending", SanitizeStatus("bogus"))
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "Payment via stripe", SanitizeText("Payment via <b>stripe</b>"))
	assert.Equal(t, "", SanitizeText("<script>alert(1)</script>"))
}
