/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

INTERFACES IMPLEMENTED:
  activity.EventStore:    Append-only status event stream
  activity.LivenessStore: Last-writer-wins heartbeat row per subject
  activity.SubjectStore:  Subject records and per-account counts
  billing.AccountStore:   Billing accounts and learned billing modes

APPEND-ONLY ENFORCEMENT:
  status_events has INSERT and SELECT paths only. No UPDATE statements,
  no DELETE statements. The autoincrement primary key doubles as the
  tie-break sequence for events sharing a timestamp.

LAST-WRITER-WINS:
  liveness is a single row per subject maintained with an UPSERT; each
  ping overwrites the previous last_seen.

KEY TABLES:
  subjects:         Tracked individuals/devices
  status_events:    Immutable status transition stream
  liveness:         Most recent reachability signal per subject
  billing_accounts: External billing refs and learned billing mode

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/presence.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - activity/store.go: Interface definitions
  - activity/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/presence-engine/activity"
	"github.com/warp/presence-engine/billing"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Subjects (tracked individuals/devices)
	CREATE TABLE IF NOT EXISTS subjects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		account_id TEXT NOT NULL DEFAULT '',
		activation_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_subjects_account
		ON subjects(account_id);
	CREATE INDEX IF NOT EXISTS idx_subjects_department
		ON subjects(department);

	-- Status events (append-only; seq is the tie-break sequence)
	CREATE TABLE IF NOT EXISTS status_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		subject_id TEXT NOT NULL,
		status TEXT NOT NULL,
		at TEXT NOT NULL
	);

	-- Hot path: window reconstruction per subject
	CREATE INDEX IF NOT EXISTS idx_events_subject_at
		ON status_events(subject_id, at, seq);

	-- Liveness (one row per subject, overwritten in place)
	CREATE TABLE IF NOT EXISTS liveness (
		subject_id TEXT PRIMARY KEY,
		last_seen TEXT NOT NULL,
		settings TEXT NOT NULL DEFAULT ''
	);

	-- Billing accounts
	CREATE TABLE IF NOT EXISTS billing_accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		customer_ref TEXT NOT NULL DEFAULT '',
		subscription_item_ref TEXT NOT NULL DEFAULT '',
		billing_mode TEXT NOT NULL DEFAULT ''
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EVENT STORE - Append-only
// =============================================================================

// AppendEvent persists a status event. The store assigns the tie-break
// sequence. Append-only: there is no update or delete path for events.
func (s *Store) AppendEvent(ctx context.Context, ev activity.StatusEvent) (activity.StatusEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO status_events (subject_id, status, at) VALUES (?, ?, ?)`,
		ev.SubjectID,
		string(ev.Status),
		ev.At.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return activity.StatusEvent{}, fmt.Errorf("failed to append event: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return activity.StatusEvent{}, fmt.Errorf("failed to read event sequence: %w", err)
	}

	ev.Seq = seq
	ev.At = ev.At.UTC().Truncate(time.Second)
	return ev, nil
}

// LoadRange returns a subject's events with at in [from, to), ordered
// by (at, seq).
func (s *Store) LoadRange(ctx context.Context, subjectID string, from, to time.Time) ([]activity.StatusEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, subject_id, status, at
		FROM status_events
		WHERE subject_id = ? AND at >= ? AND at < ?
		ORDER BY at ASC, seq ASC
	`,
		subjectID,
		from.UTC().Format(time.RFC3339),
		to.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []activity.StatusEvent
	for rows.Next() {
		var ev activity.StatusEvent
		var status, at string
		if err := rows.Scan(&ev.Seq, &ev.SubjectID, &status, &at); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Status = activity.Status(status)
		ev.At, err = time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event time %q: %w", at, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// =============================================================================
// LIVENESS STORE - Last-writer-wins
// =============================================================================

// Touch overwrites the subject's last-seen timestamp.
func (s *Store) Touch(ctx context.Context, subjectID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO liveness (subject_id, last_seen) VALUES (?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET last_seen = excluded.last_seen
	`,
		subjectID,
		at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to touch liveness: %w", err)
	}
	return nil
}

// LastSeen returns the subject's liveness record; ok is false when the
// subject has never pinged.
func (s *Store) LastSeen(ctx context.Context, subjectID string) (activity.LivenessRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lastSeen, settings string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_seen, settings FROM liveness WHERE subject_id = ?`,
		subjectID,
	).Scan(&lastSeen, &settings)
	if err == sql.ErrNoRows {
		return activity.LivenessRecord{}, false, nil
	}
	if err != nil {
		return activity.LivenessRecord{}, false, fmt.Errorf("failed to load liveness: %w", err)
	}

	t, err := time.Parse(time.RFC3339, lastSeen)
	if err != nil {
		return activity.LivenessRecord{}, false, fmt.Errorf("failed to parse last_seen %q: %w", lastSeen, err)
	}
	return activity.LivenessRecord{SubjectID: subjectID, LastSeen: t, Settings: settings}, true, nil
}

// =============================================================================
// SUBJECT STORE
// =============================================================================

// CreateSubject persists a subject.
func (s *Store) CreateSubject(ctx context.Context, subject activity.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subjects (id, name, department, account_id, activation_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		subject.ID,
		subject.Name,
		subject.Department,
		subject.AccountID,
		nullString(subject.ActivationKey),
		subject.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create subject: %w", err)
	}
	return nil
}

// GetSubject returns a subject by id, or nil when absent.
func (s *Store) GetSubject(ctx context.Context, id string) (*activity.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.querySubject(ctx, `WHERE id = ?`, id)
}

// GetSubjectByKey returns the subject holding an activation key, or nil.
func (s *Store) GetSubjectByKey(ctx context.Context, activationKey string) (*activity.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.querySubject(ctx, `WHERE activation_key = ?`, activationKey)
}

func (s *Store) querySubject(ctx context.Context, where string, args ...any) (*activity.Subject, error) {
	query := `
		SELECT id, name, department, account_id, COALESCE(activation_key, ''), created_at
		FROM subjects ` + where

	var subject activity.Subject
	var createdAt string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&subject.ID,
		&subject.Name,
		&subject.Department,
		&subject.AccountID,
		&subject.ActivationKey,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}

	subject.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at %q: %w", createdAt, err)
	}
	return &subject, nil
}

// ListSubjects returns all subjects, optionally filtered by department.
func (s *Store) ListSubjects(ctx context.Context, department string) ([]activity.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, department, account_id, COALESCE(activation_key, ''), created_at
		FROM subjects
	`
	var args []any
	if department != "" {
		query += ` WHERE department = ?`
		args = append(args, department)
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []activity.Subject
	for rows.Next() {
		var subject activity.Subject
		var createdAt string
		if err := rows.Scan(&subject.ID, &subject.Name, &subject.Department,
			&subject.AccountID, &subject.ActivationKey, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subject.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at %q: %w", createdAt, err)
		}
		subjects = append(subjects, subject)
	}
	return subjects, rows.Err()
}

// DeleteSubject removes a subject record. Its event history is
// retained: status_events stays append-only.
func (s *Store) DeleteSubject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subject: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return activity.ErrSubjectNotFound
	}
	return nil
}

// CountByAccount returns the number of live subjects under an account.
func (s *Store) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subjects WHERE account_id = ?`,
		accountID,
	).Scan(&count)
	return count, err
}

// =============================================================================
// BILLING ACCOUNT STORE
// =============================================================================

// CreateAccount persists a billing account.
func (s *Store) CreateAccount(ctx context.Context, a billing.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO billing_accounts (id, name, customer_ref, subscription_item_ref, billing_mode)
		VALUES (?, ?, ?, ?, ?)
	`,
		a.ID, a.Name, a.CustomerRef, a.SubscriptionItemRef, string(a.Mode),
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccount returns a billing account by id, or nil when absent.
func (s *Store) GetAccount(ctx context.Context, id string) (*billing.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a billing.Account
	var mode string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, customer_ref, subscription_item_ref, billing_mode
		FROM billing_accounts WHERE id = ?
	`, id).Scan(&a.ID, &a.Name, &a.CustomerRef, &a.SubscriptionItemRef, &mode)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	a.Mode = billing.Mode(mode)
	return &a, nil
}

// ListAccounts returns all billing accounts.
func (s *Store) ListAccounts(ctx context.Context) ([]billing.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, customer_ref, subscription_item_ref, billing_mode
		FROM billing_accounts ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []billing.Account
	for rows.Next() {
		var a billing.Account
		var mode string
		if err := rows.Scan(&a.ID, &a.Name, &a.CustomerRef, &a.SubscriptionItemRef, &mode); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		a.Mode = billing.Mode(mode)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SetMode records the billing mode learned from a capability probe.
func (s *Store) SetMode(ctx context.Context, id string, mode billing.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE billing_accounts SET billing_mode = ? WHERE id = ?`,
		string(mode), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set billing mode: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return activity.ErrAccountNotFound
	}
	return nil
}

// nullString converts empty strings to NULL for UNIQUE columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
