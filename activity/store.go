/*
store.go - Persistence interfaces for events, liveness and subjects

PURPOSE:
  Defines the interface between the engine and the database. The event
  store is APPEND-ONLY; the liveness store is last-writer-wins. Different
  implementations can use SQLite or in-memory storage.

APPEND-ONLY CONTRACT:
  EventStore has Append and read methods only. No Update, no Delete,
  ever. History is immutable; corrections happen by appending new
  transitions.

LAST-WRITER-WINS:
  LivenessStore.Touch overwrites the single last-seen row per subject.
  A stale duplicate ping losing the race is harmless; the next ping
  corrects it within one heartbeat interval.

SEQUENCE ASSIGNMENT:
  Append assigns the tie-break sequence for events sharing a timestamp
  and returns the stored event. Callers must never fabricate sequences.

IMPLEMENTATIONS:
  - store/sqlite:          Production SQLite
  - activity/store.Memory: In-memory for testing/dev

SEE ALSO:
  - timeline.go: Consumer of sorted event slices
  - store/memory.go: In-memory implementation
*/
package activity

import (
	"context"
	"time"
)

// =============================================================================
// EVENT STORE - Append-only
// =============================================================================

// EventStore persists status events. IMPORTANT: append-only. No Update,
// no Delete.
type EventStore interface {
	// AppendEvent persists an event, assigns its tie-break sequence and
	// returns the stored copy.
	AppendEvent(ctx context.Context, ev StatusEvent) (StatusEvent, error)

	// LoadRange returns the subject's events with At in [from, to),
	// ordered by (At, Seq). to may be far in the future to mean "all
	// since from".
	LoadRange(ctx context.Context, subjectID string, from, to time.Time) ([]StatusEvent, error)
}

// =============================================================================
// LIVENESS STORE - Last-writer-wins
// =============================================================================

// LivenessStore persists the single most-recent reachability signal per
// subject.
type LivenessStore interface {
	// Touch records that the subject was reachable at the given time,
	// overwriting any previous record.
	Touch(ctx context.Context, subjectID string, at time.Time) error

	// LastSeen returns the subject's record. ok is false when the
	// subject has never pinged.
	LastSeen(ctx context.Context, subjectID string) (rec LivenessRecord, ok bool, err error)
}

// =============================================================================
// SUBJECT STORE
// =============================================================================

// SubjectStore persists subjects.
type SubjectStore interface {
	CreateSubject(ctx context.Context, s Subject) error
	GetSubject(ctx context.Context, id string) (*Subject, error)

	// GetSubjectByKey looks a subject up by activation key; nil when no
	// subject holds the key.
	GetSubjectByKey(ctx context.Context, activationKey string) (*Subject, error)

	// ListSubjects returns all subjects, optionally filtered by
	// department (empty means all).
	ListSubjects(ctx context.Context, department string) ([]Subject, error)

	DeleteSubject(ctx context.Context, id string) error

	// CountByAccount returns the number of live subjects under a
	// billing account. This is the authoritative billed-quantity input.
	CountByAccount(ctx context.Context, accountID string) (int64, error)
}
