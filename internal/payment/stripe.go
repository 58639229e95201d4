package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v75"
	checkoutsession "github.com/stripe/stripe-go/v75/checkout/session"
	"github.com/stripe/stripe-go/v75/webhook"

	"licensehub/config"
	"licensehub/internal/domain/payments"
	"licensehub/utils"
)

// stripeGateway drives Stripe Checkout: single-phase session creation, then
// session polling for verification.
type stripeGateway struct {
	setting payments.PaymentSetting
}

func newStripeGateway(setting payments.PaymentSetting) *stripeGateway {
	return &stripeGateway{setting: setting}
}

func (g *stripeGateway) Name() string { return "stripe" }

func (g *stripeGateway) IsConfigured() bool {
	key := g.setting.Credentials["secret_key"]
	return key != "" && strings.HasPrefix(key, "sk_")
}

func (g *stripeGateway) apiKey() (string, error) {
	key := g.setting.Credentials["secret_key"]
	if key == "" {
		return "", fmt.Errorf("%w: stripe secret_key is required", ErrGatewayNotConfigured)
	}
	if !strings.HasPrefix(key, "sk_") {
		return "", fmt.Errorf("%w: invalid stripe secret key format", ErrGatewayNotConfigured)
	}
	return key, nil
}

func (g *stripeGateway) CreatePayment(ctx context.Context, order Order) (*Intent, error) {
	key, err := g.apiKey()
	if err != nil {
		return nil, err
	}
	stripe.Key = key

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(config.APP_URL + "/payments/verify/stripe?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(config.APP_URL + "/payments/cancel/stripe"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(order.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Product Purchase"),
					},
					UnitAmount: stripe.Int64(order.Amount.Mul(decimal.NewFromInt(100)).IntPart()),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"user_id":    fmt.Sprint(order.UserID),
			"product_id": fmt.Sprint(order.ProductID),
			"invoice_id": fmt.Sprint(order.InvoiceID),
		},
	}
	params.Context = ctx

	s, err := checkoutsession.New(params)
	if err != nil {
		utils.LogError(err, "Stripe session creation failed", logrus.Fields{
			"user_id":    order.UserID,
			"product_id": order.ProductID,
		})
		return nil, fmt.Errorf("stripe payment processing failed: %w", err)
	}

	return &Intent{RedirectURL: s.URL, PaymentID: s.ID}, nil
}

func (g *stripeGateway) VerifyPayment(ctx context.Context, ref, _ string) (*Verification, error) {
	key, err := g.apiKey()
	if err != nil {
		return nil, err
	}
	stripe.Key = key

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := checkoutsession.Get(ref, params)
	if err != nil {
		utils.LogError(err, "Stripe session retrieval failed", logrus.Fields{"session_id": ref})
		return nil, fmt.Errorf("stripe verification failed: %w", err)
	}

	v := &Verification{
		TransactionID: s.ID,
		Status:        string(s.PaymentStatus),
		Amount:        decimal.New(s.AmountTotal, -2),
		Currency:      strings.ToUpper(string(s.Currency)),
		Meta:          s.Metadata,
	}
	if s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		v.Success = true
		return v, nil
	}
	v.Message = "Payment not completed"
	return v, nil
}

func (g *stripeGateway) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*Event, error) {
	secret := g.setting.Credentials["webhook_secret"]
	if secret == "" {
		return nil, fmt.Errorf("%w: stripe webhook_secret is required", ErrGatewayNotConfigured)
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		headers.Get("Stripe-Signature"),
		secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("stripe signature verification failed: %w", err)
	}

	parsed := &Event{ID: event.ID, Type: string(event.Type), Payload: payload}
	if event.Type == "checkout.session.completed" {
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("failed to parse checkout session: %w", err)
		}
		parsed.TransactionID = session.ID
	}
	return parsed, nil
}
