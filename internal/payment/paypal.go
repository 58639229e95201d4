package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"licensehub/config"
	"licensehub/internal/domain/payments"
	"licensehub/utils"
)

// payPalGateway drives PayPal Orders v2: create an order, redirect the buyer
// to the approval link, capture on verification.
type payPalGateway struct {
	setting payments.PaymentSetting
}

func newPayPalGateway(setting payments.PaymentSetting) *payPalGateway {
	return &payPalGateway{setting: setting}
}

func (g *payPalGateway) Name() string { return "paypal" }

func (g *payPalGateway) IsConfigured() bool {
	return g.setting.Credentials["client_id"] != "" && g.setting.Credentials["client_secret"] != ""
}

func (g *payPalGateway) client(ctx context.Context) (*paypal.Client, error) {
	clientID := g.setting.Credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: paypal client_id is required", ErrGatewayNotConfigured)
	}
	clientSecret := g.setting.Credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: paypal client_secret is required", ErrGatewayNotConfigured)
	}

	base := paypal.APIBaseLive
	if g.setting.IsSandbox {
		base = paypal.APIBaseSandBox
	}

	client, err := paypal.NewClient(clientID, clientSecret, base)
	if err != nil {
		return nil, fmt.Errorf("paypal client setup failed: %w", err)
	}
	if _, err := client.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("paypal authentication failed: %w", err)
	}
	return client, nil
}

func (g *payPalGateway) CreatePayment(ctx context.Context, order Order) (*Intent, error) {
	client, err := g.client(ctx)
	if err != nil {
		return nil, err
	}

	units := []paypal.PurchaseUnitRequest{
		{
			Amount: &paypal.PurchaseUnitAmount{
				Currency: strings.ToUpper(order.Currency),
				Value:    order.Amount.StringFixed(2),
			},
			Description: "Product Purchase",
			CustomID:    encodeCustomID(order),
		},
	}
	appCtx := &paypal.ApplicationContext{
		ReturnURL: config.APP_URL + "/payments/verify/paypal",
		CancelURL: config.APP_URL + "/payments/cancel/paypal",
	}

	created, err := client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, appCtx)
	if err != nil {
		utils.LogError(err, "PayPal order creation failed", logrus.Fields{
			"user_id":    order.UserID,
			"product_id": order.ProductID,
		})
		return nil, fmt.Errorf("paypal payment processing failed: %w", err)
	}

	approvalURL := approvalLink(created.Links)
	if approvalURL == "" {
		return nil, fmt.Errorf("paypal approval URL not found for order %s", created.ID)
	}

	return &Intent{RedirectURL: approvalURL, PaymentID: created.ID}, nil
}

func (g *payPalGateway) VerifyPayment(ctx context.Context, ref, payerID string) (*Verification, error) {
	client, err := g.client(ctx)
	if err != nil {
		return nil, err
	}

	order, err := client.GetOrder(ctx, ref)
	if err != nil {
		utils.LogError(err, "PayPal order retrieval failed", logrus.Fields{"payment_id": ref})
		return nil, fmt.Errorf("paypal verification failed: %w", err)
	}

	v := &Verification{TransactionID: ref, Status: strings.ToLower(order.Status)}
	if len(order.PurchaseUnits) > 0 {
		unit := order.PurchaseUnits[0]
		if unit.Amount != nil {
			amount, err := decimal.NewFromString(unit.Amount.Value)
			if err == nil {
				v.Amount = amount
			}
			v.Currency = strings.ToUpper(unit.Amount.Currency)
		}
		v.Meta = decodeCustomID(unit.CustomID)
	}

	switch order.Status {
	case "COMPLETED":
		v.Success = true
		return v, nil
	case "APPROVED":
		captured, err := client.CaptureOrder(ctx, ref, paypal.CaptureOrderRequest{})
		if err != nil {
			utils.LogError(err, "PayPal capture failed", logrus.Fields{"payment_id": ref, "payer_id": payerID})
			return nil, fmt.Errorf("paypal capture failed: %w", err)
		}
		if captured.Status == "COMPLETED" {
			v.Success = true
			v.Status = "completed"
			return v, nil
		}
		v.Status = strings.ToLower(string(captured.Status))
	}

	v.Message = "Payment not approved"
	return v, nil
}

func (g *payPalGateway) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*Event, error) {
	var body struct {
		ID        string `json:"id"`
		EventType string `json:"event_type"`
		Resource  struct {
			ID string `json:"id"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("failed to parse paypal webhook: %w", err)
	}
	if body.ID == "" {
		return nil, fmt.Errorf("paypal webhook missing event id")
	}

	// Signature verification runs only when a webhook id is configured; the
	// event is rejected on any verification status other than SUCCESS.
	if webhookID := g.setting.Credentials["webhook_id"]; webhookID != "" {
		client, err := g.client(ctx)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header = headers.Clone()
		resp, err := client.VerifyWebhookSignature(ctx, req, webhookID)
		if err != nil {
			return nil, fmt.Errorf("paypal signature verification failed: %w", err)
		}
		if resp.VerificationStatus != "SUCCESS" {
			return nil, fmt.Errorf("paypal signature verification failed: %s", resp.VerificationStatus)
		}
	}

	return &Event{
		ID:            body.ID,
		Type:          body.EventType,
		TransactionID: body.Resource.ID,
		Payload:       payload,
	}, nil
}

// approvalLink scans the provider link list for the approval relation.
func approvalLink(links []paypal.Link) string {
	for _, link := range links {
		if link.Rel == "approve" || link.Rel == "approval_url" {
			return link.Href
		}
	}
	return ""
}

func encodeCustomID(order Order) string {
	return fmt.Sprintf("user_id:%d,product_id:%d,invoice_id:%d", order.UserID, order.ProductID, order.InvoiceID)
}

func decodeCustomID(customID string) map[string]string {
	meta := map[string]string{}
	for _, pair := range strings.Split(customID, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			continue
		}
		if _, err := strconv.Atoi(parts[1]); err == nil {
			meta[parts[0]] = parts[1]
		}
	}
	return meta
}
