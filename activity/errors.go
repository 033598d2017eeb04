/*
errors.go - Centralized error types for the activity engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Reconstruction feeds financially-relevant scoring and billing numbers,
  so malformed input is rejected loudly rather than silently walked.

ERROR CATEGORIES:
  1. Malformed input - unsorted events, mixed subjects, bad windows
  2. Not found        - missing subjects/records in store lookups

Missing data is NOT an error category here: zero events produce zero
buckets and the N/A score sentinel, never an error (no data is not the
same thing as bad data).

USAGE:
  if activity.IsMalformedInput(err) {
      // reject before any scoring or billing math runs
  }

SEE ALSO:
  - timeline.go: ValidateSequence returns these
  - store.go:    Store implementations return ErrSubjectNotFound
*/
package activity

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEventsUnsorted is returned when an event slice is not
	// monotonically nondecreasing by (timestamp, sequence).
	ErrEventsUnsorted = errors.New("events not sorted by (timestamp, sequence)")

	// ErrMixedSubjects is returned when an event slice contains events
	// for more than one subject.
	ErrMixedSubjects = errors.New("events mix multiple subjects")

	// ErrInvalidWindow is returned when a window end precedes its start.
	ErrInvalidWindow = errors.New("invalid window: end before start")

	// ErrSubjectNotFound is returned when a referenced subject doesn't exist.
	ErrSubjectNotFound = errors.New("subject not found")

	// ErrAccountNotFound is returned when a referenced billing account doesn't exist.
	ErrAccountNotFound = errors.New("billing account not found")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsMalformedInput reports whether the error indicates input that must
// be rejected before reconstruction.
func IsMalformedInput(err error) bool {
	return errors.Is(err, ErrEventsUnsorted) ||
		errors.Is(err, ErrMixedSubjects) ||
		errors.Is(err, ErrInvalidWindow)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSubjectNotFound) ||
		errors.Is(err, ErrAccountNotFound)
}
