/*
stripe.go - Stripe implementation of the billing Provider

PURPOSE:
  Thin adapter over the Stripe SDK. All Stripe-specific knowledge -
  parameter shapes, error taxonomy, the wording of the metered-price
  rejection - stays here, translated into the typed contract in
  provider.go.

ERROR TRANSLATION:
  Stripe rejects a direct quantity set on a metered price with an
  invalid_request error mentioning metered/usage-based pricing. That
  rejection becomes ErrMeteredPrice; the protocol in sync.go only ever
  sees the typed sentinel. Rate limit, auth and connectivity failures
  become ErrTransient.

SEE ALSO:
  - provider.go: Interface and error contract
  - sync.go:     Reconciliation protocol
*/
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/subscriptionitem"
	"github.com/stripe/stripe-go/v76/usagerecord"
)

// StripeProvider talks to the Stripe API.
type StripeProvider struct{}

// NewStripeProvider configures the Stripe SDK with the secret key and
// returns a provider.
func NewStripeProvider(secretKey string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{}
}

// SetQuantity sets the subscription item's quantity to an absolute
// value. Stripe treats repeated updates with the same quantity as a
// no-op, so this is naturally idempotent.
func (p *StripeProvider) SetQuantity(ctx context.Context, itemRef string, quantity int64) error {
	params := &stripe.SubscriptionItemParams{
		Quantity: stripe.Int64(quantity),
	}
	params.Context = ctx

	if _, err := subscriptionitem.Update(itemRef, params); err != nil {
		return translateStripeErr(err)
	}
	return nil
}

// RecordUsage submits an absolute "set" usage record. Repeated calls
// with the same quantity in the same window converge to one billed
// quantity rather than accumulating.
func (p *StripeProvider) RecordUsage(ctx context.Context, itemRef string, quantity int64, at time.Time) error {
	params := &stripe.UsageRecordParams{
		SubscriptionItem: stripe.String(itemRef),
		Quantity:         stripe.Int64(quantity),
		Timestamp:        stripe.Int64(at.Unix()),
		Action:           stripe.String(stripe.UsageRecordActionSet),
	}
	params.Context = ctx

	if _, err := usagerecord.New(params); err != nil {
		return translateStripeErr(err)
	}
	return nil
}

// translateStripeErr maps Stripe's error taxonomy onto the typed
// provider contract. This is the only place the metered-price rejection
// wording is inspected.
func translateStripeErr(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		// Connectivity and SDK-level failures.
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	if stripeErr.Type == stripe.ErrorTypeInvalidRequest && meteredRejection(stripeErr.Msg) {
		return ErrMeteredPrice
	}

	// Everything else from Stripe (rate limits, auth, api errors, and
	// invalid requests we don't recognize) is retried later.
	return fmt.Errorf("%w: %s", ErrTransient, stripeErr.Msg)
}

func meteredRejection(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "metered") || strings.Contains(lower, "usage-based")
}
