package external

import (
	stripe "github.com/stripe/stripe-go/v82"
)

// Stripe webhook event types the service reacts to. Everything else is
// acknowledged and ignored.
const (
	EventStripeSubUpdated    = "customer.subscription.updated"
	EventStripeSubDeleted    = "customer.subscription.deleted"
	EventStripePaymentFailed = "invoice.payment_failed"
)

// WebhookVerifier validates a webhook payload against its signature header.
type WebhookVerifier interface {
	Verify(payload []byte, header string, secret string) error
}

// StripeVerifier verifies Stripe webhook signatures (v1 HMAC-SHA256 scheme
// with timestamp tolerance).
type StripeVerifier struct{}

// Verify validates a Stripe webhook payload against the Stripe-Signature
// header and signing secret. Uses stripe-go's ValidatePayload which checks
// both the HMAC signature and the timestamp tolerance.
func (v *StripeVerifier) Verify(payload []byte, header string, secret string) error {
	return stripe.ValidatePayload(payload, header, secret)
}

var _ WebhookVerifier = (*StripeVerifier)(nil)
