// Package validation holds the stateless predicates and sanitizers shared by
// the payment, invoice and license packages. No function here performs I/O.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
)

// ErrValidation marks bad caller input. Raised before any side effect and
// never retried automatically.
var ErrValidation = errors.New("validation failed")

// MaxInvoiceAmount is the inclusive upper bound for any monetary amount.
var MaxInvoiceAmount = decimal.NewFromFloat(999999.99)

var (
	invoiceNumberRe  = regexp.MustCompile(`^INV-[A-Z0-9]{8}$`)
	transactionRefRe = regexp.MustCompile(`^[A-Za-z0-9\-_]+$`)

	textPolicy = bluemonday.StrictPolicy()
)

var allowedStatuses = map[string]bool{
	"pending":   true,
	"paid":      true,
	"overdue":   true,
	"cancelled": true,
}

var allowedCurrencies = map[string]bool{
	"USD": true,
	"EUR": true,
	"GBP": true,
	"CAD": true,
	"AUD": true,
}

var allowedGateways = map[string]bool{
	"paypal": true,
	"stripe": true,
}

func ValidInvoiceStatus(status string) bool {
	return allowedStatuses[status]
}

// ValidInvoiceAmount requires 0 < amount <= 999999.99.
func ValidInvoiceAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.LessThanOrEqual(MaxInvoiceAmount)
}

// ValidInvoiceCurrency matches case-insensitively against the allow-list.
func ValidInvoiceCurrency(currency string) bool {
	return allowedCurrencies[strings.ToUpper(strings.TrimSpace(currency))]
}

func ValidInvoiceNumber(number string) bool {
	return invoiceNumberRe.MatchString(number)
}

// ValidInvoiceDueDate requires the due date to be strictly after now.
func ValidInvoiceDueDate(dueDate, now time.Time) bool {
	return dueDate.After(now)
}

func ValidGateway(gateway string) bool {
	return allowedGateways[gateway]
}

// ValidTransactionRef accepts provider payment/session ids: 3-100 chars of
// letters, digits, dash, underscore.
func ValidTransactionRef(ref string) bool {
	if len(ref) < 3 || len(ref) > 100 {
		return false
	}
	return transactionRefRe.MatchString(ref)
}

// SanitizeAmount clamps negative amounts to zero and rounds to 2 decimal
// places (half away from zero). Idempotent.
func SanitizeAmount(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Round(2)
}

func SanitizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// SanitizeStatus returns the status unchanged when allowed, pending otherwise.
func SanitizeStatus(status string) string {
	if allowedStatuses[status] {
		return status
	}
	return "pending"
}

// SanitizeText strips HTML tags from free-text fields before storage.
func SanitizeText(input string) string {
	return strings.TrimSpace(textPolicy.Sanitize(input))
}
