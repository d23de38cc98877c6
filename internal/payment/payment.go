package payment

import (
	"context"
	"fmt"

	"github.com/razorpay/razorpay-go/utils"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
)

// Confirmation is what the storefront receives from the gateway after checkout.
type Confirmation struct {
	GatewayOrderID string `json:"payment_order_id" validate:"required"`
	PaymentID      string `json:"payment_id" validate:"required"`
	Signature      string `json:"payment_signature"`
}

// Verifier is the payment oracle. A false result or an error both mean the
// payment must not be trusted. Calls are never retried.
type Verifier interface {
	Verify(ctx context.Context, c Confirmation) (bool, error)
}

// RazorpayVerifier checks the HMAC-SHA256 signature Razorpay computes over
// "<order_id>|<payment_id>" with the account key secret.
type RazorpayVerifier struct {
	secret string
}

func NewRazorpayVerifier(secret string) (*RazorpayVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("razorpay key secret is empty")
	}
	return &RazorpayVerifier{secret: secret}, nil
}

func (v *RazorpayVerifier) Verify(_ context.Context, c Confirmation) (bool, error) {
	if c.GatewayOrderID == "" || c.PaymentID == "" || c.Signature == "" {
		return false, nil
	}
	params := map[string]interface{}{
		"razorpay_order_id":   c.GatewayOrderID,
		"razorpay_payment_id": c.PaymentID,
	}
	return utils.VerifyPaymentSignature(params, c.Signature, v.secret), nil
}

type intentFetcher func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)

// StripeVerifier treats a confirmation as valid when the PaymentIntent named by
// PaymentID has succeeded and carries the storefront order id in its metadata.
type StripeVerifier struct {
	fetch intentFetcher
}

// NewStripeVerifier sets the package level stripe key, as the rest of the
// stripe-go call sites in this service expect.
func NewStripeVerifier(key string) (*StripeVerifier, error) {
	if key == "" {
		return nil, fmt.Errorf("stripe key is empty")
	}
	stripe.Key = key
	return &StripeVerifier{fetch: paymentintent.Get}, nil
}

func (v *StripeVerifier) Verify(ctx context.Context, c Confirmation) (bool, error) {
	if c.PaymentID == "" {
		return false, nil
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := v.fetch(c.PaymentID, params)
	if err != nil {
		return false, fmt.Errorf("failed to fetch payment intent: %w", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return false, nil
	}
	if c.GatewayOrderID != "" && pi.Metadata["order_id"] != c.GatewayOrderID {
		return false, nil
	}
	return true, nil
}
