package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"licensehub/database"
	"licensehub/internal/domain/payments"
	"licensehub/internal/validation"
)

// ErrValidation marks bad caller input, raised before any side effect.
var ErrValidation = validation.ErrValidation

// ErrGatewayNotConfigured marks a gateway with missing or empty credentials.
var ErrGatewayNotConfigured = errors.New("payment gateway not configured")

// Order is the ephemeral payment request. It is never persisted.
type Order struct {
	UserID    uint
	ProductID uint
	InvoiceID uint // set when paying an existing invoice
	Amount    decimal.Decimal
	Currency  string
	Gateway   string
	IsCustom  bool // custom service payment, no license issued
}

// Intent is the normalized result of starting a payment with a provider.
type Intent struct {
	RedirectURL string `json:"redirect_url"`
	PaymentID   string `json:"payment_id"`
}

// Verification is the normalized result of checking a payment with a provider.
type Verification struct {
	Success       bool
	TransactionID string
	Status        string
	Amount        decimal.Decimal
	Currency      string
	Message       string
	Meta          map[string]string
}

// Event is a parsed provider webhook notification.
type Event struct {
	ID            string
	Type          string
	TransactionID string
	Payload       []byte
}

// Gateway is implemented once per provider. Provider SDK types never cross
// this boundary.
type Gateway interface {
	Name() string
	IsConfigured() bool
	CreatePayment(ctx context.Context, order Order) (*Intent, error)
	VerifyPayment(ctx context.Context, ref, payerID string) (*Verification, error)
	ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*Event, error)
}

// ForGateway loads the stored settings for the named gateway and builds its
// adapter. Settings are read fresh on every call; they are owned by
// configuration storage and never cached here.
func ForGateway(name string) (Gateway, error) {
	if !validation.ValidGateway(name) {
		return nil, fmt.Errorf("%w: unsupported payment gateway %q", ErrValidation, name)
	}

	var setting payments.PaymentSetting
	err := database.DB.Where("gateway = ? AND is_active = ?", name, true).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no settings for %s", ErrGatewayNotConfigured, name)
		}
		return nil, err
	}

	switch name {
	case "paypal":
		return newPayPalGateway(setting), nil
	case "stripe":
		return newStripeGateway(setting), nil
	}
	return nil, fmt.Errorf("%w: unsupported payment gateway %q", ErrValidation, name)
}

// IsGatewayAvailable lets callers pre-check a gateway before attempting a
// payment against it.
func IsGatewayAvailable(name string) bool {
	gw, err := ForGateway(name)
	return err == nil && gw.IsConfigured()
}
