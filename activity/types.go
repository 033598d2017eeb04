/*
Package activity provides the core activity-timeline engine.

PURPOSE:
  This package contains the domain types and algorithms for turning a
  sparse, append-only stream of status-change events plus a periodic
  liveness signal into continuous per-subject time accounting: present,
  away and break seconds, a display status, a composite performance
  score, and batch reports over arbitrary date ranges.

KEY CONCEPTS IN THIS FILE (types.go):
  - Status: A status code from the open wire vocabulary
  - StatusEvent: An immutable, timestamped status transition
  - LivenessRecord: The most recent "still reachable" signal per subject
  - Subject: The tracked individual/device
  - Timeline: Bucketed durations reconstructed for a window

DESIGN PRINCIPLES:
  1. Immutability: StatusEvents are never mutated or reordered
  2. Purity: Reconstruction and scoring are pure functions of their inputs
  3. Open vocabulary: Unrecognized status codes degrade to Offline,
     never to an error, so future codes don't break old history
  4. Two independent state sources: the event log answers "what was the
     subject doing", the liveness signal answers "is it still reachable";
     they are fused only at display time

USAGE:
  events, _ := store.LoadRange(ctx, "emp-7", dayStart, now)
  tl, err := activity.Reconstruct(events, now, 0)
  // tl.Present, tl.Break, tl.Away, tl.FinalState

SEE ALSO:
  - timeline.go: Reconstruction algorithm and window helpers
  - overlay.go:  Liveness-freshness display overlay
  - score.go:    Composite performance score
  - report.go:   Batch range reports
*/
package activity

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS - Open wire vocabulary
// =============================================================================

// Status is a status code as it appears on the wire. The vocabulary is
// open: codes outside the known set are carried through verbatim and
// classified as Offline.
type Status string

const (
	StatusWorkStart  Status = "WORK_START"
	StatusPresent    Status = "Present"
	StatusBreakStart Status = "BREAK_START"
	StatusBreakEnd   Status = "BREAK_END"
	StatusAway       Status = "Away"

	// StatusOffline is never sent by clients; it is the default state
	// before any event and the classification of unrecognized codes.
	StatusOffline Status = "Offline"
)

// Bucket is the time-accounting category a status accrues into.
type Bucket int

const (
	BucketOffline Bucket = iota
	BucketPresent
	BucketBreak
	BucketAway
)

// Classify maps a status code to its accounting bucket.
// WORK_START, Present and BREAK_END are all present-equivalent: they
// mark the subject as actively working until the next transition.
func (s Status) Classify() Bucket {
	switch s {
	case StatusWorkStart, StatusPresent, StatusBreakEnd:
		return BucketPresent
	case StatusBreakStart:
		return BucketBreak
	case StatusAway:
		return BucketAway
	default:
		return BucketOffline
	}
}

// Known reports whether the code is part of the recognized vocabulary.
func (s Status) Known() bool {
	switch s {
	case StatusWorkStart, StatusPresent, StatusBreakStart, StatusBreakEnd, StatusAway, StatusOffline:
		return true
	}
	return false
}

// =============================================================================
// STATUS EVENT - Immutable, append-only
// =============================================================================

// StatusEvent is a single discrete status transition. Events are
// append-only: once recorded they are never mutated or reordered.
// Seq is the store-assigned tie-break key for events sharing a
// timestamp; ordering is by (At, Seq).
type StatusEvent struct {
	SubjectID string
	Status    Status
	At        time.Time
	Seq       int64
}

// Before reports whether e orders strictly before other by (At, Seq).
func (e StatusEvent) Before(other StatusEvent) bool {
	if e.At.Equal(other.At) {
		return e.Seq < other.Seq
	}
	return e.At.Before(other.At)
}

// =============================================================================
// LIVENESS RECORD - Last-writer-wins heartbeat
// =============================================================================

// LivenessRecord is the most recent "still reachable" signal for a
// subject. One row per subject, overwritten in place by each ping.
// Settings is an opaque payload forwarded for the client; this core
// never interprets it.
type LivenessRecord struct {
	SubjectID string
	LastSeen  time.Time
	Settings  string
}

// =============================================================================
// SUBJECT
// =============================================================================

// Subject is the tracked individual/device whose activity is
// reconstructed. AccountID links the subject to a billing account and
// may be empty for unbilled subjects.
type Subject struct {
	ID            string
	Name          string
	Department    string
	AccountID     string
	ActivationKey string
	CreatedAt     time.Time
}

// =============================================================================
// TIMELINE - Bucketed durations for a window
// =============================================================================

// Timeline holds the reconstructed durations for one subject over one
// window. Ephemeral: recomputed per query, never stored.
type Timeline struct {
	Present time.Duration
	Away    time.Duration
	Break   time.Duration

	// FinalState is the state active at the window end (Offline when
	// the window contains no events).
	FinalState Status
}

// Tracked returns the total time attributed to any bucket.
func (t Timeline) Tracked() time.Duration {
	return t.Present + t.Away + t.Break
}

// PresentHours returns the present time in hours as a decimal quantity,
// rounded to two places for display.
func (t Timeline) PresentHours() decimal.Decimal { return hours(t.Present) }

// AwayHours returns the away time in hours as a decimal quantity.
func (t Timeline) AwayHours() decimal.Decimal { return hours(t.Away) }

// BreakHours returns the break time in hours as a decimal quantity.
func (t Timeline) BreakHours() decimal.Decimal { return hours(t.Break) }

func hours(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d / time.Second)).
		Div(decimal.NewFromInt(3600)).
		Round(2)
}
