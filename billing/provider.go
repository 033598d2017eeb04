/*
provider.go - External billing processor interface

PURPOSE:
  Abstracts the external processor so the reconciliation protocol in
  sync.go is testable against a fake and the Stripe specifics stay in
  one adapter.

ERROR CONTRACT:
  Implementations translate processor-specific failures into the typed
  errors below. The sync protocol branches ONLY on these types; it
  never inspects provider error strings.

SEE ALSO:
  - sync.go:   Consumer
  - stripe.go: Stripe implementation
*/
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider is the external billing processor.
type Provider interface {
	// SetQuantity sets the subscription item's billed quantity to an
	// absolute value (licensed mode). Idempotent.
	SetQuantity(ctx context.Context, itemRef string, quantity int64) error

	// RecordUsage submits an absolute "set" usage record for the item
	// (metered mode). Idempotent within the billing window: repeated
	// calls with the same quantity converge to one billed quantity.
	RecordUsage(ctx context.Context, itemRef string, quantity int64, at time.Time) error
}

// =============================================================================
// TYPED PROVIDER ERRORS
// =============================================================================

var (
	// ErrMeteredPrice is returned by SetQuantity when the item's price
	// is metered (or uses flexible billing) and cannot take a direct
	// quantity. This is the permanent mode-mismatch signal that
	// triggers the licensed-to-metered fallback, once.
	ErrMeteredPrice = errors.New("price is metered: direct quantity not supported")

	// ErrTransient wraps failures that may succeed on a later attempt:
	// network, auth, rate limits. Never retried inline.
	ErrTransient = errors.New("transient billing provider error")
)

// IsTransient reports whether the error is worth retrying on the next
// trigger or sweep.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// =============================================================================
// DISABLED PROVIDER
// =============================================================================

// Disabled is the provider used when no processor is configured. Every
// call fails transiently, so syncs surface as failed outcomes without
// pretending anything was billed.
type Disabled struct{}

func (Disabled) SetQuantity(ctx context.Context, itemRef string, quantity int64) error {
	return fmt.Errorf("%w: billing provider not configured", ErrTransient)
}

func (Disabled) RecordUsage(ctx context.Context, itemRef string, quantity int64, at time.Time) error {
	return fmt.Errorf("%w: billing provider not configured", ErrTransient)
}
