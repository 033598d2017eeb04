/*
Package billing reconciles an external subscription's billed quantity
with the authoritative local live-subject count.

PURPOSE:
  Per-seat billing is only correct if the external processor's billed
  quantity tracks the local subject count. This package owns that
  reconciliation: an idempotent absolute "set" in licensed mode, an
  absolute usage record in metered mode, and the one-time fallback
  between the two.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: Local billing account with external processor refs
  - Mode: licensed vs. metered pricing, learned at most once
  - Outcome: success | skipped | failed plus a human-readable reason

DESIGN PRINCIPLES:
  1. Best effort: a sync failure never blocks or rolls back the local
     operation that triggered it; the next trigger or sweep retries
  2. Idempotent sets: quantity is always SET to the count, never
     incremented, so duplicate syncs converge instead of double-billing
  3. Explicit mode: the licensed/metered branch is a persisted field
     plus a typed probe result, not error-message sniffing

SEE ALSO:
  - sync.go:     The reconciliation protocol
  - provider.go: External processor interface
  - stripe.go:   Stripe implementation
*/
package billing

import "fmt"

// =============================================================================
// ACCOUNT
// =============================================================================

// Mode is how the external price bills seats.
type Mode string

const (
	// ModeUnknown means the price's billing style has not been probed
	// yet; the first sync attempts licensed and learns from the result.
	ModeUnknown Mode = ""

	// ModeLicensed prices bill a fixed quantity set on the subscription
	// item.
	ModeLicensed Mode = "licensed"

	// ModeMetered prices bill from usage records.
	ModeMetered Mode = "metered"
)

// Account is a local billing account. External refs are empty for
// trial/pending accounts that have no external subscription yet - a
// normal state, not an error.
type Account struct {
	ID   string
	Name string

	// CustomerRef is the external processor's customer id.
	CustomerRef string

	// SubscriptionItemRef is the external subscription item whose
	// quantity mirrors the live-subject count.
	SubscriptionItemRef string

	Mode Mode
}

// Billed reports whether the account has an external subscription item
// to reconcile against.
func (a Account) Billed() bool {
	return a.SubscriptionItemRef != ""
}

// =============================================================================
// OUTCOME
// =============================================================================

// OutcomeStatus classifies a reconciliation attempt.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome is the result of one reconciliation attempt, surfaced to the
// caller for logging. Never treated as a precondition for local state.
type Outcome struct {
	Status OutcomeStatus
	Reason string

	// Mode is the billing mode the sync ended up using (or learned).
	Mode Mode
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return string(o.Status)
	}
	return fmt.Sprintf("%s: %s", o.Status, o.Reason)
}
