/*
scheduler.go - Periodic billing reconciliation sweep

PURPOSE:
  Recomputes the live-subject count for every billing account and
  resyncs the external billed quantity on a fixed interval. The sweep
  covers drift the per-operation triggers can't see: failed trigger
  syncs, out-of-band edits made directly in the external processor,
  and restores from backup.

DESIGN:
  - Runs a background goroutine with configurable sweep interval
  - Sweeps immediately on start, then on each tick
  - Unconditional: every account is resynced, converged by the
    idempotent "set" semantics even when nothing changed

CONFIGURATION:
  - SweepInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewBillingScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: SyncBilling endpoint (manual sweep)
  - billing/sync.go: Reconciliation protocol
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// BillingScheduler handles the periodic billed-quantity sweep.
type BillingScheduler struct {
	Handler       *Handler
	SweepInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBillingScheduler creates a new scheduler.
func NewBillingScheduler(handler *Handler) *BillingScheduler {
	return &BillingScheduler{
		Handler:       handler,
		SweepInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (bs *BillingScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	bs.ticker = time.NewTicker(bs.SweepInterval)
	bs.wg.Add(1)

	go bs.run()

	log.Printf("[Scheduler] Started with sweep interval: %v", bs.SweepInterval)
}

// Stop stops the scheduler.
func (bs *BillingScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (bs *BillingScheduler) run() {
	defer bs.wg.Done()

	// Sweep immediately on start
	bs.sweep()

	for {
		select {
		case <-bs.ticker.C:
			bs.sweep()
		case <-bs.stop:
			return
		}
	}
}

func (bs *BillingScheduler) sweep() {
	ctx := context.Background()

	outcomes, err := bs.Handler.SyncAllAccounts(ctx)
	if err != nil {
		log.Printf("[Scheduler] Sweep failed: %v", err)
		return
	}

	var failed int
	for _, o := range outcomes {
		if o.Status == "failed" {
			failed++
		}
	}
	log.Printf("[Scheduler] Sweep complete: %d accounts, %d failed", len(outcomes), failed)
}
