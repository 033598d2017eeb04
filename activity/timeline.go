/*
timeline.go - Interval reconstruction from status events

PURPOSE:
  Walks a subject's chronologically sorted events in a window and emits
  bucketed durations {present, away, break} plus the final state. This
  is the central calculation that answers "what did this subject do
  between T0 and T1?".

KEY INSIGHT:
  Each inter-event interval belongs to the PREVIOUS state - the state
  that was actually active during that interval - not to the state the
  event transitions into. The tail interval from the last event to the
  window end belongs to the final state.

GAP CLAMP:
  In scoring mode a single interval is clamped to ScoringGapClamp
  (2 hours). Without it, one missed terminal event (laptop lid closed,
  client killed) would inflate a bucket across a multi-day silence and
  dominate every score in the trailing period. Live "today" views run
  unclamped, matching what the dashboard has always shown.

WINDOW FILTERING:
  Restricting events to [T0, T1] is the CALLER's responsibility. Keeping
  the walk window-agnostic makes the same function reusable for daily
  views, trailing score periods, and arbitrary report ranges.

PURITY:
  Reconstruct is a pure function of (events, end, clamp). Identical
  inputs always yield identical output; nothing mutable is read or
  written, so concurrent calls need no synchronization.

SEE ALSO:
  - types.go:  Status classification, Timeline
  - errors.go: ErrEventsUnsorted, ErrMixedSubjects
  - score.go:  Scoring-mode caller
*/
package activity

import "time"

// ScoringGapClamp is the maximum duration attributable to a single
// inter-event interval in scoring and report mode.
const ScoringGapClamp = 2 * time.Hour

// =============================================================================
// SEQUENCE VALIDATION
// =============================================================================

// ValidateSequence checks the ordering and single-subject invariants a
// slice must satisfy before reconstruction. Events must be
// monotonically nondecreasing by (timestamp, sequence) and belong to
// one subject.
func ValidateSequence(events []StatusEvent) error {
	for i := 1; i < len(events); i++ {
		if events[i].SubjectID != events[0].SubjectID {
			return ErrMixedSubjects
		}
		if events[i].Before(events[i-1]) {
			return ErrEventsUnsorted
		}
	}
	return nil
}

// =============================================================================
// RECONSTRUCTION
// =============================================================================

// Reconstruct walks sorted events and attributes elapsed time to
// buckets, closing the window at end. A clamp of 0 disables gap
// clamping (live mode); pass ScoringGapClamp for scoring mode.
//
// Negative deltas (violated ordering already rejected by
// ValidateSequence, or clock skew placing an event past the window end)
// contribute zero, never a negative duration.
func Reconstruct(events []StatusEvent, end time.Time, clamp time.Duration) (Timeline, error) {
	if err := ValidateSequence(events); err != nil {
		return Timeline{}, err
	}

	tl := Timeline{FinalState: StatusOffline}
	var lastAt time.Time

	for _, ev := range events {
		if !lastAt.IsZero() {
			accrue(&tl, ev.At.Sub(lastAt), clamp)
		}
		tl.FinalState = ev.Status
		lastAt = ev.At
	}

	// Tail interval: last event to window end, attributed to the state
	// still active at the end.
	if !lastAt.IsZero() {
		accrue(&tl, end.Sub(lastAt), clamp)
	}

	return tl, nil
}

// accrue adds delta to the bucket of the currently tracked final state.
func accrue(tl *Timeline, delta, clamp time.Duration) {
	if delta < 0 {
		return
	}
	if clamp > 0 && delta > clamp {
		delta = clamp
	}
	switch tl.FinalState.Classify() {
	case BucketPresent:
		tl.Present += delta
	case BucketBreak:
		tl.Break += delta
	case BucketAway:
		tl.Away += delta
	}
	// BucketOffline: elapsed time while offline is simply untracked.
}

// =============================================================================
// DAY HELPERS - "today" is the UTC calendar day
// =============================================================================

// StartOfDayUTC truncates t to UTC midnight. Day boundaries are fixed
// UTC midnight for every subject; this is the single place that rule
// lives.
func StartOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ActiveDays returns the distinct UTC calendar dates containing at
// least one event, in ascending order.
func ActiveDays(events []StatusEvent) []time.Time {
	var days []time.Time
	for _, ev := range events {
		day := StartOfDayUTC(ev.At)
		if len(days) == 0 || days[len(days)-1].Before(day) {
			days = append(days, day)
		}
	}
	return days
}

// Transitions filters a sorted event slice down to actual state
// changes: the first event plus every event whose status differs from
// its predecessor. Used for history views where repeated heartbeat
// statuses are noise.
func Transitions(events []StatusEvent) []StatusEvent {
	var out []StatusEvent
	var last Status
	for _, ev := range events {
		if len(out) == 0 || ev.Status != last {
			out = append(out, ev)
			last = ev.Status
		}
	}
	return out
}
