/*
overlay.go - Liveness-freshness display overlay

PURPOSE:
  Fuses the reconstructed final state with the independent liveness
  signal to produce the status shown on live dashboards. A subject
  whose client stopped pinging is displayed Offline regardless of what
  the event log last said.

KEY INSIGHT:
  This is a read-time freshness judgment, NEVER a retroactive
  reclassification. A subject who stops pinging mid-interval still
  accrues present/away/break seconds for whatever state they were last
  in (per timeline.go); only the displayed live status flips to
  Offline. The two are designed to diverge.

SEE ALSO:
  - timeline.go: The historical buckets this overlay never touches
*/
package activity

import "time"

// LivenessTimeout is how stale a last-seen timestamp may be before the
// subject is displayed Offline.
const LivenessTimeout = 120 * time.Second

// DisplayStatus returns the live status to display for a subject.
// lastSeen is the zero time when the subject has never pinged. Read-only;
// no side effects.
func DisplayStatus(finalState Status, lastSeen, now time.Time, timeout time.Duration) Status {
	if timeout <= 0 {
		timeout = LivenessTimeout
	}
	if lastSeen.IsZero() || now.Sub(lastSeen) > timeout {
		return StatusOffline
	}
	return finalState
}
