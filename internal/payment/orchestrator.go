package payment

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"licensehub/database"
	"licensehub/internal/domain/invoices"
	"licensehub/internal/domain/licenses"
	"licensehub/internal/domain/payments"
	"licensehub/internal/domain/products"
	"licensehub/internal/domain/users"
	"licensehub/internal/invoice"
	"licensehub/internal/license"
	"licensehub/internal/validation"
	"licensehub/utils"
)

// Seams for tests; production code always resolves these to the package funcs.
var (
	forGateway      = ForGateway
	finalizePayment = FinalizePayment
)

// FinalizeResult carries the records persisted by a successful finalize.
type FinalizeResult struct {
	License *licenses.License
	Invoice *invoices.Invoice
}

// WebhookResult is the normalized outcome of webhook processing.
type WebhookResult struct {
	Success   bool
	Duplicate bool
	Message   string
	Event     *Event
}

// ProcessPayment validates the order shape and initiates a payment with the
// selected gateway. Validation failures are raised before any external call.
func ProcessPayment(ctx context.Context, order Order) (*Intent, error) {
	if err := validateOrder(order); err != nil {
		return nil, err
	}

	gw, err := forGateway(order.Gateway)
	if err != nil {
		return nil, err
	}

	intent, err := gw.CreatePayment(ctx, order)
	if err != nil {
		utils.LogError(err, "Payment processing failed", logrus.Fields{
			"gateway": order.Gateway,
			"user_id": order.UserID,
		})
		return nil, err
	}
	return intent, nil
}

// VerifyPayment checks a transaction reference with the gateway and returns
// the normalized result.
func VerifyPayment(ctx context.Context, gateway, ref, payerID string) (*Verification, error) {
	if !validation.ValidGateway(gateway) {
		return nil, fmt.Errorf("%w: unsupported payment gateway %q", ErrValidation, gateway)
	}
	if !validation.ValidTransactionRef(ref) {
		return nil, fmt.Errorf("%w: invalid transaction reference", ErrValidation)
	}

	gw, err := forGateway(gateway)
	if err != nil {
		return nil, err
	}

	v, err := gw.VerifyPayment(ctx, ref, payerID)
	if err != nil {
		utils.LogError(err, "Payment verification failed", logrus.Fields{
			"gateway":        gateway,
			"transaction_id": ref,
		})
		return nil, err
	}
	return v, nil
}

// FinalizePayment persists the outcome of a verified payment: license first,
// then the invoice referencing it, inside one transaction. A failure in
// either step rolls back both; the error is surfaced for the caller to log
// and retry out-of-band.
func FinalizePayment(ctx context.Context, order Order, gateway, transactionID string) (*FinalizeResult, error) {
	if err := validateOrder(order); err != nil {
		return nil, err
	}
	if !validation.ValidGateway(gateway) {
		return nil, fmt.Errorf("%w: unsupported payment gateway %q", ErrValidation, gateway)
	}

	result := &FinalizeResult{}
	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A transaction id that was already finalized (verify redirect replay,
		// webhook racing the redirect) returns the existing records unchanged.
		if transactionID != "" {
			existing, err := invoice.FindByTransaction(tx, gateway, transactionID)
			if err != nil {
				return err
			}
			if existing != nil {
				result.Invoice = existing
				result.License = existing.License
				return nil
			}
		}

		var user users.User
		if err := tx.First(&user, order.UserID).Error; err != nil {
			return fmt.Errorf("user not found: %w", err)
		}

		// Paying an existing invoice: mark it paid, no new license. The
		// captured amount must match the invoice total to the cent.
		if order.InvoiceID != 0 {
			var stored invoices.Invoice
			if err := tx.First(&stored, order.InvoiceID).Error; err != nil {
				return fmt.Errorf("invoice not found: %w", err)
			}
			if !order.Amount.Equal(stored.TotalAmount) {
				return fmt.Errorf("%w: captured amount %s does not match invoice total %s",
					ErrValidation, order.Amount.StringFixed(2), stored.TotalAmount.StringFixed(2))
			}
			inv, err := invoice.MarkInvoicePaidWithTransaction(tx, order.InvoiceID, gateway, transactionID)
			if err != nil {
				return err
			}
			result.Invoice = inv
			result.License = inv.License
			return nil
		}

		// Custom service payment: invoice only, no license.
		if order.IsCustom {
			inv, err := invoice.CreateCustomInvoice(tx, &user, order.Amount, order.Currency, gateway, transactionID)
			if err != nil {
				return err
			}
			result.Invoice = inv
			return nil
		}

		var product products.Product
		if err := tx.First(&product, order.ProductID).Error; err != nil {
			return fmt.Errorf("product not found: %w", err)
		}

		lic, err := license.GrantOrRenew(tx, &user, &product, gateway)
		if err != nil {
			return err
		}

		inv, err := invoice.CreatePaymentInvoice(tx, &user, lic, &product, order.Amount, order.Currency, gateway, transactionID)
		if err != nil {
			return err
		}

		result.License = lic
		result.Invoice = inv
		return nil
	})
	if err != nil {
		utils.LogError(err, "Failed to create license and invoice", logrus.Fields{
			"gateway":        gateway,
			"transaction_id": transactionID,
			"user_id":        order.UserID,
			"product_id":     order.ProductID,
		})
		return nil, err
	}
	return result, nil
}

// settlementEvents lists the provider notifications that mean money was
// captured and a finalize should be attempted.
var settlementEvents = map[string]bool{
	"checkout.session.completed": true,
	"CHECKOUT.ORDER.APPROVED":    true,
	"PAYMENT.CAPTURE.COMPLETED":  true,
}

// HandleWebhook parses a provider notification, records it for idempotent
// processing and, for settlement events, drives finalization so a buyer who
// never returns to the verify redirect still gets their license and invoice.
// An event id whose first delivery already got all the way through is
// acknowledged as a duplicate without side effects; a recorded but unsettled
// event (finalize failed last time) is retried.
func HandleWebhook(ctx context.Context, gateway string, payload []byte, headers http.Header) (*WebhookResult, error) {
	if !validation.ValidGateway(gateway) {
		return nil, fmt.Errorf("%w: unsupported payment gateway %q", ErrValidation, gateway)
	}

	gw, err := forGateway(gateway)
	if err != nil {
		return nil, err
	}

	event, err := gw.ParseWebhook(ctx, payload, headers)
	if err != nil {
		utils.LogError(err, "Webhook processing failed", logrus.Fields{"gateway": gateway})
		return nil, err
	}

	record := payments.WebhookEvent{
		Provider:        gateway,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		PayloadJSON:     string(event.Payload),
	}
	res := database.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record)
	if res.Error != nil {
		utils.LogError(res.Error, "Failed to record webhook event", logrus.Fields{
			"gateway":  gateway,
			"event_id": event.ID,
		})
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var existing payments.WebhookEvent
		err := database.DB.WithContext(ctx).
			Where("provider = ? AND provider_event_id = ?", gateway, event.ID).
			First(&existing).Error
		if err != nil {
			return nil, err
		}
		if existing.ProcessedAt != nil {
			return &WebhookResult{Success: true, Duplicate: true, Message: "event already processed", Event: event}, nil
		}
	}

	if settlementEvents[event.Type] && event.TransactionID != "" {
		if err := settleFromEvent(ctx, gw, gateway, event); err != nil {
			// processed_at stays nil so the provider's retry settles it.
			utils.LogError(err, "Webhook settlement failed", logrus.Fields{
				"gateway":        gateway,
				"event_id":       event.ID,
				"transaction_id": event.TransactionID,
			})
			return nil, err
		}
	}

	now := time.Now()
	err = database.DB.WithContext(ctx).Model(&payments.WebhookEvent{}).
		Where("provider = ? AND provider_event_id = ?", gateway, event.ID).
		Update("processed_at", &now).Error
	if err != nil {
		utils.LogError(err, "Failed to mark webhook event processed", logrus.Fields{
			"gateway":  gateway,
			"event_id": event.ID,
		})
		return nil, err
	}

	return &WebhookResult{Success: true, Message: fmt.Sprintf("%s webhook processed", gateway), Event: event}, nil
}

// settleFromEvent re-verifies the transaction named by a settlement event with
// the provider and finalizes on success. An unpaid verification is not an
// error; the event is simply acknowledged.
func settleFromEvent(ctx context.Context, gw Gateway, gateway string, event *Event) error {
	v, err := gw.VerifyPayment(ctx, event.TransactionID, "")
	if err != nil {
		return err
	}
	if !v.Success {
		return nil
	}
	_, err = finalizePayment(ctx, OrderFromVerification(v, gateway), gateway, v.TransactionID)
	return err
}

// OrderFromVerification rebuilds the order context from the ids the gateway
// carried through checkout metadata.
func OrderFromVerification(v *Verification, gateway string) Order {
	order := Order{
		UserID:    metaUint(v.Meta, "user_id"),
		ProductID: metaUint(v.Meta, "product_id"),
		InvoiceID: metaUint(v.Meta, "invoice_id"),
		Amount:    v.Amount,
		Currency:  v.Currency,
		Gateway:   gateway,
	}
	if order.ProductID == 0 && order.InvoiceID == 0 {
		order.IsCustom = true
	}
	return order
}

func metaUint(meta map[string]string, key string) uint {
	n, err := strconv.ParseUint(meta[key], 10, 32)
	if err != nil {
		return 0
	}
	return uint(n)
}

func validateOrder(order Order) error {
	if order.UserID == 0 {
		return fmt.Errorf("%w: valid user id is required", ErrValidation)
	}
	if !order.Amount.IsPositive() {
		return fmt.Errorf("%w: valid amount is required", ErrValidation)
	}
	if order.Amount.GreaterThan(validation.MaxInvoiceAmount) {
		return fmt.Errorf("%w: amount cannot exceed 999999.99", ErrValidation)
	}
	if len(order.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-character code", ErrValidation)
	}
	if !validation.ValidGateway(order.Gateway) {
		return fmt.Errorf("%w: unsupported payment gateway %q", ErrValidation, order.Gateway)
	}
	return nil
}
