// Package invoice is the ledger for billing records: creation, status
// transitions and aggregation. Every mutating operation validates and
// sanitizes its input before touching storage and runs inside a transaction.
package invoice

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"licensehub/internal/domain/invoices"
	"licensehub/internal/domain/licenses"
	"licensehub/internal/domain/products"
	"licensehub/internal/domain/users"
	"licensehub/internal/validation"
	"licensehub/utils"
)

// ErrValidation marks bad caller input, raised before any storage write.
var ErrValidation = validation.ErrValidation

// ErrCancelPaid is returned when cancellation is attempted on a paid invoice.
// Money already captured cannot be cancelled through this path.
var ErrCancelPaid = errors.New("paid invoices cannot be cancelled")

const (
	invoiceNumberCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxNumberAttempts    = 10
	dueInDays            = 30
)

func newInvoiceNumber() string {
	buf := make([]byte, 8)
	rand.Read(buf)
	for i, b := range buf {
		buf[i] = invoiceNumberCharset[int(b)%len(invoiceNumberCharset)]
	}
	return "INV-" + string(buf)
}

// insertWithUniqueNumber relies on the invoice_number unique index: insert,
// and regenerate only on an actual collision. Exhausting the attempt budget
// is fatal.
func insertWithUniqueNumber(db *gorm.DB, inv *invoices.Invoice) error {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		inv.InvoiceNumber = newInvoiceNumber()
		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Create(inv).Error
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			inv.ID = 0
			continue
		}
		return err
	}
	return fmt.Errorf("failed to generate unique invoice number after %d attempts", maxNumberAttempts)
}

// CreateInitialInvoice creates the first invoice for a license. Amount comes
// from the license's product price, zero when the product is missing.
func CreateInitialInvoice(db *gorm.DB, lic *licenses.License, paymentStatus string, dueDate *time.Time) (*invoices.Invoice, error) {
	if lic == nil || lic.ID == 0 {
		return nil, fmt.Errorf("%w: invalid license provided", ErrValidation)
	}

	now := time.Now()
	status := validation.SanitizeStatus(paymentStatus)

	inv := &invoices.Invoice{
		UserID:    lic.UserID,
		LicenseID: &lic.ID,
		ProductID: lic.ProductID,
		Amount:    validation.SanitizeAmount(productPrice(lic.Product)),
		Currency:  productCurrency(lic.Product),
		Status:    status,
		DueDate:   dueDate,
		Notes:     "Initial license invoice",
	}
	inv.TotalAmount = inv.Amount
	if status == invoices.StatusPaid {
		inv.PaidAt = &now
	}
	if inv.DueDate == nil {
		due := now.AddDate(0, 0, dueInDays)
		inv.DueDate = &due
	}

	if err := insertWithUniqueNumber(db, inv); err != nil {
		utils.LogError(err, "Failed to create initial invoice", logrus.Fields{
			"license_id": lic.ID,
			"user_id":    lic.UserID,
		})
		return nil, err
	}
	return inv, nil
}

// CreateRenewalInvoice creates a pending invoice for a license renewal, due
// in 30 days.
func CreateRenewalInvoice(db *gorm.DB, lic *licenses.License) (*invoices.Invoice, error) {
	if lic == nil || lic.ID == 0 {
		return nil, fmt.Errorf("%w: invalid license provided", ErrValidation)
	}

	due := time.Now().AddDate(0, 0, dueInDays)
	inv := &invoices.Invoice{
		UserID:    lic.UserID,
		LicenseID: &lic.ID,
		ProductID: lic.ProductID,
		Amount:    validation.SanitizeAmount(productPrice(lic.Product)),
		Currency:  productCurrency(lic.Product),
		Status:    invoices.StatusPending,
		DueDate:   &due,
		Notes:     "License renewal invoice",
	}
	inv.TotalAmount = inv.Amount

	if err := insertWithUniqueNumber(db, inv); err != nil {
		utils.LogError(err, "Failed to create renewal invoice", logrus.Fields{
			"license_id": lic.ID,
			"user_id":    lic.UserID,
		})
		return nil, err
	}
	return inv, nil
}

// CreatePaymentInvoice creates a paid invoice for a completed gateway
// payment. All inputs are validated before any storage write.
func CreatePaymentInvoice(db *gorm.DB, user *users.User, lic *licenses.License, product *products.Product, amount decimal.Decimal, currency, gateway string, transactionID string) (*invoices.Invoice, error) {
	if user == nil || user.ID == 0 {
		return nil, fmt.Errorf("%w: invalid user provided", ErrValidation)
	}
	if lic == nil || lic.ID == 0 {
		return nil, fmt.Errorf("%w: invalid license provided", ErrValidation)
	}
	if product == nil || product.ID == 0 {
		return nil, fmt.Errorf("%w: invalid product provided", ErrValidation)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrValidation)
	}
	if gateway == "" {
		return nil, fmt.Errorf("%w: payment gateway is required", ErrValidation)
	}

	now := time.Now()
	due := now.AddDate(0, 0, dueInDays)
	cleanGateway := validation.SanitizeText(gateway)

	inv := &invoices.Invoice{
		UserID:         user.ID,
		LicenseID:      &lic.ID,
		ProductID:      &product.ID,
		Amount:         validation.SanitizeAmount(amount),
		TotalAmount:    validation.SanitizeAmount(amount),
		Currency:       validation.SanitizeCurrency(currency),
		Status:         invoices.StatusPaid,
		PaidAt:         &now,
		DueDate:        &due,
		BillingAddress: sanitizeOptional(user.BillingAddress),
		Notes:          fmt.Sprintf("Payment via %s", cleanGateway),
		Metadata: invoices.Metadata{
			"gateway":        cleanGateway,
			"transaction_id": validation.SanitizeText(transactionID),
		},
	}

	if err := insertWithUniqueNumber(db, inv); err != nil {
		utils.LogError(err, "Failed to create payment invoice", logrus.Fields{
			"user_id":    user.ID,
			"license_id": lic.ID,
			"product_id": product.ID,
			"gateway":    cleanGateway,
		})
		return nil, err
	}
	return inv, nil
}

// CreateCustomInvoice records a paid custom-service payment. No license or
// product is attached.
func CreateCustomInvoice(db *gorm.DB, user *users.User, amount decimal.Decimal, currency, gateway, transactionID string) (*invoices.Invoice, error) {
	if user == nil || user.ID == 0 {
		return nil, fmt.Errorf("%w: invalid user provided", ErrValidation)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}

	now := time.Now()
	due := now.AddDate(0, 0, dueInDays)
	cleanGateway := validation.SanitizeText(gateway)

	inv := &invoices.Invoice{
		UserID:         user.ID,
		Amount:         validation.SanitizeAmount(amount),
		TotalAmount:    validation.SanitizeAmount(amount),
		Currency:       validation.SanitizeCurrency(currency),
		Status:         invoices.StatusPaid,
		PaidAt:         &now,
		DueDate:        &due,
		BillingAddress: sanitizeOptional(user.BillingAddress),
		Notes:          fmt.Sprintf("Custom service payment via %s", cleanGateway),
		Metadata: invoices.Metadata{
			"gateway":        cleanGateway,
			"transaction_id": validation.SanitizeText(transactionID),
			"is_custom":      "true",
		},
	}

	if err := insertWithUniqueNumber(db, inv); err != nil {
		utils.LogError(err, "Failed to create custom invoice", logrus.Fields{
			"user_id": user.ID,
			"gateway": cleanGateway,
		})
		return nil, err
	}
	return inv, nil
}

// FindByTransaction looks up the invoice recorded for a gateway transaction.
// A missing row is not an error; callers use nil to mean "not yet finalized".
func FindByTransaction(db *gorm.DB, gateway, transactionID string) (*invoices.Invoice, error) {
	var inv invoices.Invoice
	err := db.Preload("License").
		Where("metadata->>'gateway' = ? AND metadata->>'transaction_id' = ?", gateway, transactionID).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// MarkInvoicePaidWithTransaction settles an existing invoice against a
// gateway transaction, stamping gateway metadata.
func MarkInvoicePaidWithTransaction(db *gorm.DB, id uint, gateway, transactionID string) (*invoices.Invoice, error) {
	var inv invoices.Invoice
	if err := db.Preload("License").First(&inv, id).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	cleanGateway := validation.SanitizeText(gateway)

	applyStatus(&inv, invoices.StatusPaid, now)
	inv.Notes = fmt.Sprintf("Payment via %s", cleanGateway)
	if inv.Metadata == nil {
		inv.Metadata = invoices.Metadata{}
	}
	inv.Metadata["gateway"] = cleanGateway
	inv.Metadata["transaction_id"] = validation.SanitizeText(transactionID)

	if err := db.Save(&inv).Error; err != nil {
		return nil, err
	}
	activateLicenseOnPayment(db, &inv)
	return &inv, nil
}

// applyStatus sets the status and stamps paid_at on the first transition to
// paid. An invoice that is already paid keeps its original timestamp.
func applyStatus(inv *invoices.Invoice, status string, now time.Time) {
	inv.Status = status
	if status == invoices.StatusPaid && inv.PaidAt == nil {
		inv.PaidAt = &now
	}
}

// UpdateInvoiceStatus moves an invoice to one of the allowed statuses.
// Unknown statuses are rejected, never coerced. paid_at is set only on the
// transition to paid.
func UpdateInvoiceStatus(db *gorm.DB, id uint, status string) error {
	if !validation.ValidInvoiceStatus(status) {
		return fmt.Errorf("%w: invalid invoice status %q", ErrValidation, status)
	}

	var inv invoices.Invoice
	if err := db.First(&inv, id).Error; err != nil {
		return err
	}

	applyStatus(&inv, status, time.Now())
	if err := db.Save(&inv).Error; err != nil {
		utils.LogError(err, "Failed to update invoice status", logrus.Fields{
			"invoice_id": id,
			"status":     status,
		})
		return err
	}

	if status == invoices.StatusPaid {
		activateLicenseOnPayment(db, &inv)
	}
	return nil
}

// CancelInvoice cancels a pending or overdue invoice. Paid invoices are
// immutable with respect to cancellation; cancelling an already-cancelled
// invoice is a no-op.
func CancelInvoice(db *gorm.DB, id uint) error {
	var inv invoices.Invoice
	if err := db.First(&inv, id).Error; err != nil {
		return err
	}

	switch inv.Status {
	case invoices.StatusPaid:
		return ErrCancelPaid
	case invoices.StatusCancelled:
		return nil
	}
	return UpdateInvoiceStatus(db, id, invoices.StatusCancelled)
}

// MarkInvoiceAsPaid is a convenience wrapper over UpdateInvoiceStatus.
func MarkInvoiceAsPaid(db *gorm.DB, id uint) error {
	return UpdateInvoiceStatus(db, id, invoices.StatusPaid)
}

func GetInvoice(db *gorm.DB, id uint) (*invoices.Invoice, error) {
	var inv invoices.Invoice
	if err := db.Preload("License").Preload("Product").First(&inv, id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func GetInvoicesByUser(db *gorm.DB, userID uint, limit int) ([]invoices.Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []invoices.Invoice
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func GetInvoicesByStatus(db *gorm.DB, status string, limit int) ([]invoices.Invoice, error) {
	if !validation.ValidInvoiceStatus(status) {
		return nil, fmt.Errorf("%w: invalid invoice status %q", ErrValidation, status)
	}
	if limit <= 0 {
		limit = 50
	}
	var list []invoices.Invoice
	err := db.Where("status = ?", status).
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// activateLicenseOnPayment flips the paid invoice's license to active. A
// failure here is logged, not fatal: the payment is already recorded.
func activateLicenseOnPayment(db *gorm.DB, inv *invoices.Invoice) {
	if inv.LicenseID == nil {
		return
	}
	err := db.Model(&licenses.License{}).
		Where("id = ?", *inv.LicenseID).
		Update("status", licenses.StatusActive).Error
	if err != nil {
		utils.LogError(err, "Failed to activate license on payment", logrus.Fields{
			"invoice_id": inv.ID,
			"license_id": *inv.LicenseID,
		})
		return
	}
	utils.LogInfo("License activated due to invoice payment", logrus.Fields{
		"invoice_id":     inv.ID,
		"invoice_number": inv.InvoiceNumber,
		"license_id":     *inv.LicenseID,
	})
}

func productPrice(p *products.Product) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return p.Price
}

func productCurrency(p *products.Product) string {
	if p == nil || p.Currency == "" {
		return "USD"
	}
	return p.Currency
}

func sanitizeOptional(input *string) *string {
	if input == nil {
		return nil
	}
	clean := validation.SanitizeText(*input)
	return &clean
}
