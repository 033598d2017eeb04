/*
sync.go - Billed-quantity reconciliation protocol

PURPOSE:
  Sets the external subscription's billed quantity to the authoritative
  local live-subject count. Triggered by every count-changing local
  operation (subject create/delete, invite accept/revoke) and by the
  periodic sweep in api/scheduler.go.

PROTOCOL:
  1. No subscription item ref  -> skipped (trial/pending is normal)
  2. Mode metered              -> absolute "set" usage record
  3. Mode licensed or unknown  -> direct quantity set
     3a. Rejected with ErrMeteredPrice -> record the learned mode,
         fall back to a usage record, once, inline
  4. Any transient error       -> failed outcome; local state untouched

FAILURE SEMANTICS:
  Best-effort and eventually consistent. A failed sync is logged and
  surfaced, never propagated as an error to the triggering operation,
  and never retried in a tight loop - the next trigger or the sweep
  converges it.

CONCURRENCY:
  Quantity sets are idempotent so concurrent syncs are safe; a
  per-account mutex still serializes them to avoid redundant external
  calls. Calls run under a bounded timeout so a slow processor cannot
  stall ingestion paths.

SEE ALSO:
  - provider.go:      Typed error contract
  - api/scheduler.go: Periodic sweep
*/
package billing

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// DefaultTimeout bounds one external billing call.
const DefaultTimeout = 10 * time.Second

// AccountStore persists billing accounts. Implemented by store/sqlite.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	CreateAccount(ctx context.Context, a Account) error

	// SetMode records the billing mode learned from a capability probe
	// so the fallback happens at most once per account.
	SetMode(ctx context.Context, id string, mode Mode) error
}

// Syncer reconciles billed quantities through a Provider.
type Syncer struct {
	Provider Provider
	Accounts AccountStore
	Timeout  time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSyncer creates a Syncer with the default call timeout.
func NewSyncer(provider Provider, accounts AccountStore) *Syncer {
	return &Syncer{
		Provider: provider,
		Accounts: accounts,
		Timeout:  DefaultTimeout,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Sync sets the account's external billed quantity to count. Never
// returns an error: every failure is folded into the Outcome so callers
// on ingestion paths cannot accidentally treat billing as a
// precondition.
func (s *Syncer) Sync(ctx context.Context, account Account, count int64) Outcome {
	if !account.Billed() {
		return Outcome{Status: OutcomeSkipped, Reason: "no subscription item", Mode: account.Mode}
	}

	lock := s.accountLock(account.ID)
	lock.Lock()
	defer lock.Unlock()

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome := s.reconcile(ctx, account, count)
	if outcome.Status == OutcomeFailed {
		log.Printf("[Billing] account=%s count=%d %s", account.ID, count, outcome)
	} else {
		log.Printf("[Billing] account=%s count=%d mode=%s %s", account.ID, count, outcome.Mode, outcome.Status)
	}
	return outcome
}

func (s *Syncer) reconcile(ctx context.Context, account Account, count int64) Outcome {
	if account.Mode == ModeMetered {
		return s.recordUsage(ctx, account, count)
	}

	// Licensed or unprobed: attempt the direct set first.
	err := s.Provider.SetQuantity(ctx, account.SubscriptionItemRef, count)
	if err == nil {
		if account.Mode == ModeUnknown {
			s.learnMode(ctx, account.ID, ModeLicensed)
		}
		return Outcome{Status: OutcomeSuccess, Mode: ModeLicensed}
	}

	if errors.Is(err, ErrMeteredPrice) {
		// Permanent mode mismatch: learn it, fall back once.
		s.learnMode(ctx, account.ID, ModeMetered)
		return s.recordUsage(ctx, account, count)
	}

	// Transient (network, auth, rate limit, timeout): defer to the next
	// trigger or sweep.
	return Outcome{Status: OutcomeFailed, Reason: err.Error(), Mode: account.Mode}
}

func (s *Syncer) recordUsage(ctx context.Context, account Account, count int64) Outcome {
	if err := s.Provider.RecordUsage(ctx, account.SubscriptionItemRef, count, time.Now()); err != nil {
		return Outcome{Status: OutcomeFailed, Reason: err.Error(), Mode: ModeMetered}
	}
	return Outcome{Status: OutcomeSuccess, Mode: ModeMetered}
}

func (s *Syncer) learnMode(ctx context.Context, accountID string, mode Mode) {
	if s.Accounts == nil {
		return
	}
	if err := s.Accounts.SetMode(ctx, accountID, mode); err != nil {
		log.Printf("[Billing] account=%s failed to persist mode %s: %v", accountID, mode, err)
	}
}

func (s *Syncer) accountLock(accountID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := s.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[accountID] = lock
	}
	return lock
}
